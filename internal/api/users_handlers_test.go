package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"vidtube/internal/media"
	"vidtube/internal/models"
)

func TestRegisterCreatesUser(t *testing.T) {
	h, uploader := newTestHandler(t)

	req := newMultipartRequest(t, http.MethodPost, "/api/users/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
		"fullName": "Alice Example",
	}, map[string]string{
		"avatar":     "avatar.png",
		"coverImage": "cover.jpg",
	})
	rr := httptest.NewRecorder()
	h.Users(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %q)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var user models.User
	decodeSuccess(t, rr, &user)
	if user.Username != "alice" {
		t.Fatalf("username = %q, want alice", user.Username)
	}
	if user.AvatarURL == "" || user.CoverImageURL == "" {
		t.Fatalf("expected avatar and cover URLs, got %q and %q", user.AvatarURL, user.CoverImageURL)
	}
	if len(uploader.uploads) != 2 {
		t.Fatalf("uploads = %d, want 2", len(uploader.uploads))
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string]string
		want   int
	}{
		{
			name:   "missing fullName",
			fields: map[string]string{"username": "bob", "email": "bob@example.com", "password": "password123"},
			files:  map[string]string{"avatar": "a.png"},
			want:   http.StatusBadRequest,
		},
		{
			name:   "short password",
			fields: map[string]string{"username": "bob", "email": "bob@example.com", "password": "short", "fullName": "Bob"},
			files:  map[string]string{"avatar": "a.png"},
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing avatar",
			fields: map[string]string{"username": "bob", "email": "bob@example.com", "password": "password123", "fullName": "Bob"},
			want:   http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newMultipartRequest(t, http.MethodPost, "/api/users/register", tc.fields, tc.files)
			rr := httptest.NewRecorder()
			h.Users(rr, req)
			requireErrorEnvelope(t, rr, tc.want)
		})
	}
}

func TestRegisterDuplicateCleansUpAssets(t *testing.T) {
	h, uploader := newTestHandler(t)
	createTestUser(t, h, "carol")

	req := newMultipartRequest(t, http.MethodPost, "/api/users/register", map[string]string{
		"username": "carol",
		"email":    "other@example.com",
		"password": "password123",
		"fullName": "Carol Two",
	}, map[string]string{"avatar": "a.png"})
	rr := httptest.NewRecorder()
	h.Users(rr, req)

	requireErrorEnvelope(t, rr, http.StatusConflict)
	if len(uploader.deletedKeys()) != 1 {
		t.Fatalf("deleted assets = %d, want the orphaned avatar removed", len(uploader.deletedKeys()))
	}
}

func TestLoginSetsCookiesAndReturnsTokens(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestUser(t, h, "dave")

	req := newJSONRequest(t, http.MethodPost, "/api/users/login", map[string]string{
		"username": "dave",
		"password": testPassword,
	})
	rr := httptest.NewRecorder()
	h.Users(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp struct {
		User         models.User `json:"user"`
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
	}
	decodeSuccess(t, rr, &resp)
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected both tokens in response body")
	}
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cookie := responseCookie(rr, name)
		if cookie == nil || cookie.Value == "" {
			t.Fatalf("missing %s cookie", name)
		}
		if !cookie.HttpOnly {
			t.Fatalf("%s cookie is not HttpOnly", name)
		}
	}

	userID, err := h.Tokens.ParseAccessToken(resp.AccessToken)
	if err != nil || userID != resp.User.ID {
		t.Fatalf("access token subject = %q, err = %v, want %q", userID, err, resp.User.ID)
	}
}

func TestLoginByEmail(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestUser(t, h, "erin")

	req := newJSONRequest(t, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "erin@example.com",
		"password": testPassword,
	})
	rr := httptest.NewRecorder()
	h.Users(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestUser(t, h, "frank")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"wrong password", map[string]string{"username": "frank", "password": "wrong-password"}},
		{"unknown user", map[string]string{"username": "nobody", "password": testPassword}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newJSONRequest(t, http.MethodPost, "/api/users/login", tc.body)
			rr := httptest.NewRecorder()
			h.Users(rr, req)
			if msg := requireErrorEnvelope(t, rr, http.StatusUnauthorized); msg != "invalid credentials" {
				t.Fatalf("message = %q, want the generic credentials error", msg)
			}
		})
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestUser(t, h, "grace")

	login := newJSONRequest(t, http.MethodPost, "/api/users/login", map[string]string{
		"username": "grace", "password": testPassword,
	})
	loginRR := httptest.NewRecorder()
	h.Users(loginRR, login)
	var loginResp struct {
		RefreshToken string `json:"refreshToken"`
	}
	decodeSuccess(t, loginRR, &loginResp)

	refresh := newJSONRequest(t, http.MethodPost, "/api/users/refresh-token", map[string]string{
		"refreshToken": loginResp.RefreshToken,
	})
	refreshRR := httptest.NewRecorder()
	h.Users(refreshRR, refresh)
	if refreshRR.Code != http.StatusOK {
		t.Fatalf("refresh status = %d (body %q)", refreshRR.Code, refreshRR.Body.String())
	}
	var refreshResp struct {
		RefreshToken string `json:"refreshToken"`
	}
	decodeSuccess(t, refreshRR, &refreshResp)
	if refreshResp.RefreshToken == loginResp.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// the superseded token must be rejected
	replay := newJSONRequest(t, http.MethodPost, "/api/users/refresh-token", map[string]string{
		"refreshToken": loginResp.RefreshToken,
	})
	replayRR := httptest.NewRecorder()
	h.Users(replayRR, replay)
	requireErrorEnvelope(t, replayRR, http.StatusUnauthorized)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestUser(t, h, "heidi")

	login := newJSONRequest(t, http.MethodPost, "/api/users/login", map[string]string{
		"username": "heidi", "password": testPassword,
	})
	loginRR := httptest.NewRecorder()
	h.Users(loginRR, login)
	var loginResp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	decodeSuccess(t, loginRR, &loginResp)

	logout := newJSONRequest(t, http.MethodPost, "/api/users/logout", nil,
		&http.Cookie{Name: accessTokenCookie, Value: loginResp.AccessToken})
	logoutRR := httptest.NewRecorder()
	h.Users(logoutRR, logout)
	if logoutRR.Code != http.StatusOK {
		t.Fatalf("logout status = %d (body %q)", logoutRR.Code, logoutRR.Body.String())
	}
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		cookie := responseCookie(logoutRR, name)
		if cookie == nil || cookie.MaxAge != -1 {
			t.Fatalf("%s cookie was not cleared", name)
		}
	}

	refresh := newJSONRequest(t, http.MethodPost, "/api/users/refresh-token", map[string]string{
		"refreshToken": loginResp.RefreshToken,
	})
	refreshRR := httptest.NewRecorder()
	h.Users(refreshRR, refresh)
	requireErrorEnvelope(t, refreshRR, http.StatusUnauthorized)
}

func TestCurrentUserRequiresAuth(t *testing.T) {
	h, _ := newTestHandler(t)
	user := createTestUser(t, h, "ivan")

	rr := httptest.NewRecorder()
	h.Users(rr, httptest.NewRequest(http.MethodGet, "/api/users/current", nil))
	requireErrorEnvelope(t, rr, http.StatusUnauthorized)

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/current", nil)
	req.AddCookie(accessCookie(t, h, user.ID))
	h.Users(rr, req)
	var got models.User
	decodeSuccess(t, rr, &got)
	if got.ID != user.ID {
		t.Fatalf("current user = %q, want %q", got.ID, user.ID)
	}
}

func TestBearerHeaderAuthenticates(t *testing.T) {
	h, _ := newTestHandler(t)
	user := createTestUser(t, h, "judy")

	token, _, err := h.Tokens.IssueAccessToken(user.ID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/users/current", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.Users(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rr.Code, rr.Body.String())
	}
}

func TestUpdateAccount(t *testing.T) {
	h, _ := newTestHandler(t)
	user := createTestUser(t, h, "mallory")
	cookie := accessCookie(t, h, user.ID)

	req := newJSONRequest(t, http.MethodPatch, "/api/users/update-account", map[string]string{
		"email": "new@example.com", "fullName": "New Name",
	}, cookie)
	rr := httptest.NewRecorder()
	h.Users(rr, req)
	var updated models.User
	decodeSuccess(t, rr, &updated)
	if updated.Email != "new@example.com" || updated.FullName != "New Name" {
		t.Fatalf("update not applied: %+v", updated)
	}

	req = newJSONRequest(t, http.MethodPatch, "/api/users/update-account", map[string]string{
		"email": "", "fullName": "x",
	}, cookie)
	rr = httptest.NewRecorder()
	h.Users(rr, req)
	requireErrorEnvelope(t, rr, http.StatusBadRequest)
}

func TestChangePassword(t *testing.T) {
	h, _ := newTestHandler(t)
	user := createTestUser(t, h, "oscar")
	cookie := accessCookie(t, h, user.ID)

	req := newJSONRequest(t, http.MethodPost, "/api/users/change-password", map[string]string{
		"oldPassword": "wrong", "newPassword": "newpassword1", "confirmPassword": "newpassword1",
	}, cookie)
	rr := httptest.NewRecorder()
	h.Users(rr, req)
	if msg := requireErrorEnvelope(t, rr, http.StatusBadRequest); msg != "old password is incorrect" {
		t.Fatalf("message = %q", msg)
	}

	req = newJSONRequest(t, http.MethodPost, "/api/users/change-password", map[string]string{
		"oldPassword": testPassword, "newPassword": "newpassword1", "confirmPassword": "different",
	}, cookie)
	rr = httptest.NewRecorder()
	h.Users(rr, req)
	requireErrorEnvelope(t, rr, http.StatusBadRequest)

	req = newJSONRequest(t, http.MethodPost, "/api/users/change-password", map[string]string{
		"oldPassword": testPassword, "newPassword": "newpassword1", "confirmPassword": "newpassword1",
	}, cookie)
	rr = httptest.NewRecorder()
	h.Users(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("change-password status = %d (body %q)", rr.Code, rr.Body.String())
	}

	// old password no longer works, new one does
	login := newJSONRequest(t, http.MethodPost, "/api/users/login", map[string]string{
		"username": "oscar", "password": testPassword,
	})
	loginRR := httptest.NewRecorder()
	h.Users(loginRR, login)
	requireErrorEnvelope(t, loginRR, http.StatusUnauthorized)

	login = newJSONRequest(t, http.MethodPost, "/api/users/login", map[string]string{
		"username": "oscar", "password": "newpassword1",
	})
	loginRR = httptest.NewRecorder()
	h.Users(loginRR, login)
	if loginRR.Code != http.StatusOK {
		t.Fatalf("login with new password status = %d", loginRR.Code)
	}
}

func TestUpdateAvatarDeletesOldAssetAfterSuccess(t *testing.T) {
	h, uploader := newTestHandler(t)
	user := createTestUser(t, h, "peggy")
	cookie := accessCookie(t, h, user.ID)

	req := newMultipartRequest(t, http.MethodPatch, "/api/users/avatar", nil,
		map[string]string{"avatar": "new-avatar.png"}, cookie)
	rr := httptest.NewRecorder()
	h.Users(rr, req)

	var updated models.User
	decodeSuccess(t, rr, &updated)
	if updated.AvatarURL == user.AvatarURL {
		t.Fatalf("avatar URL unchanged")
	}
	deletes := uploader.deletedKeys()
	if len(deletes) != 1 || deletes[0] != "avatars/peggy" {
		t.Fatalf("deleted keys = %v, want the previous avatar", deletes)
	}
}

func TestUpdateAvatarKeepsOldAssetWhenUploadFails(t *testing.T) {
	h, uploader := newTestHandler(t)
	uploader.failKind = "avatars"
	user := createTestUser(t, h, "quentin")
	cookie := accessCookie(t, h, user.ID)

	req := newMultipartRequest(t, http.MethodPatch, "/api/users/avatar", nil,
		map[string]string{"avatar": "new-avatar.png"}, cookie)
	rr := httptest.NewRecorder()
	h.Users(rr, req)

	requireErrorEnvelope(t, rr, http.StatusInternalServerError)
	if len(uploader.deletedKeys()) != 0 {
		t.Fatalf("previous avatar was deleted despite failed upload")
	}
}

func TestRegisterDeletesAvatarWhenCoverUploadFails(t *testing.T) {
	h, uploader := newTestHandler(t)
	uploader.failKind = media.KindCover

	req := newMultipartRequest(t, http.MethodPost, "/api/users/register", map[string]string{
		"username": "carla",
		"email":    "carla@example.com",
		"password": "password123",
		"fullName": "Carla Example",
	}, map[string]string{
		"avatar":     "a.png",
		"coverImage": "c.jpg",
	})
	rr := httptest.NewRecorder()
	h.Users(rr, req)

	requireErrorEnvelope(t, rr, http.StatusInternalServerError)
	deletes := uploader.deletedKeys()
	if len(deletes) != 1 || deletes[0] != "avatars/asset-1" {
		t.Fatalf("deletes = %v, want just the avatar asset", deletes)
	}
}
