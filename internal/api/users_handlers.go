package api

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"vidtube/internal/media"
	"vidtube/internal/models"
	"vidtube/internal/observability/logging"
	"vidtube/internal/storage"
)

// Users dispatches /api/users/* to the account endpoints.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	switch action {
	case "register":
		h.register(w, r)
	case "login":
		h.login(w, r)
	case "logout":
		h.logout(w, r)
	case "refresh-token":
		h.refreshToken(w, r)
	case "current":
		h.currentUser(w, r)
	case "update-account":
		h.updateAccount(w, r)
	case "change-password":
		h.changePassword(w, r)
	case "avatar":
		h.updateAvatar(w, r)
	case "cover-image":
		h.updateCoverImage(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form required")
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	fullName := strings.TrimSpace(r.FormValue("fullName"))
	if username == "" || email == "" || password == "" || fullName == "" {
		writeError(w, http.StatusBadRequest, "username, email, password, and fullName are required")
		return
	}
	if len(password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	avatarPath, found, err := saveUploadedFile(r, "avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer removeStaged(avatarPath)
	if !found {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	avatar, err := h.Media.Upload(r.Context(), avatarPath, media.KindAvatar)
	if err != nil {
		logging.WithContext(r.Context(), h.Logger).Error("avatar upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "avatar upload failed")
		return
	}

	coverImageURL := ""
	coverPath, found, err := saveUploadedFile(r, "coverImage")
	if err != nil {
		h.deleteAssetByURL(r, avatar.URL)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer removeStaged(coverPath)
	if found {
		cover, uploadErr := h.Media.Upload(r.Context(), coverPath, media.KindCover)
		if uploadErr != nil {
			h.deleteAssetByURL(r, avatar.URL)
			logging.WithContext(r.Context(), h.Logger).Error("cover upload failed", "error", uploadErr)
			writeError(w, http.StatusInternalServerError, "cover image upload failed")
			return
		}
		coverImageURL = cover.URL
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.deleteAssetByURL(r, avatar.URL)
		h.deleteAssetByURL(r, coverImageURL)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.Store.CreateUser(r.Context(), storage.CreateUserParams{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  string(hash),
		AvatarURL:     avatar.URL,
		CoverImageURL: coverImageURL,
	})
	if err != nil {
		h.deleteAssetByURL(r, avatar.URL)
		h.deleteAssetByURL(r, coverImageURL)
		h.writeStoreError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, user, "user registered")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username or email and password are required")
		return
	}

	user, err := h.Store.FindUserByLogin(r.Context(), identifier)
	if err != nil {
		// same response for unknown user and wrong password
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issueTokens(w, r, user, http.StatusOK, "login successful")
}

// issueTokens mints an access/refresh pair, persists the refresh token, and
// sets both cookies.
func (h *Handler) issueTokens(w http.ResponseWriter, r *http.Request, user models.User, status int, message string) {
	accessToken, accessExpiry, err := h.Tokens.IssueAccessToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	refreshToken, refreshExpiry, err := h.Tokens.IssueRefreshToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.Store.SetRefreshToken(r.Context(), user.ID, refreshToken, refreshExpiry); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	setTokenCookies(w, r, accessToken, accessExpiry, refreshToken, refreshExpiry)
	writeData(w, status, tokenResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, message)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Store.ClearRefreshToken(r.Context(), user.ID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	clearTokenCookies(w, r)
	writeData(w, http.StatusOK, nil, "logged out")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	token := ""
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" && r.Body != nil {
		var req refreshRequest
		if err := decodeJSON(r, &req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	userID, err := h.Tokens.ParseRefreshToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	// rotation: only the most recently issued refresh token is accepted
	if user.RefreshToken == "" || user.RefreshToken != token {
		writeError(w, http.StatusUnauthorized, "refresh token is expired or revoked")
		return
	}

	h.issueTokens(w, r, user, http.StatusOK, "token refreshed")
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, user, "current user")
}

type updateAccountRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w, http.MethodPatch)
		return
	}
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || fullName == "" {
		writeError(w, http.StatusBadRequest, "email and fullName are required")
		return
	}

	updated, err := h.Store.UpdateUser(r.Context(), user.ID, storage.UserUpdate{
		Email:    &email,
		FullName: &fullName,
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated, "account updated")
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "oldPassword and newPassword are required")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "newPassword and confirmPassword do not match")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		writeError(w, http.StatusBadRequest, "old password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.Store.SetUserPassword(r.Context(), user.ID, string(hash)); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "password changed")
}

func (h *Handler) updateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateUserImage(w, r, "avatar", media.KindAvatar)
}

func (h *Handler) updateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateUserImage(w, r, "coverImage", media.KindCover)
}

// updateUserImage replaces an avatar or cover image. The previous remote
// asset is deleted only after the new upload and the user update have both
// succeeded, so a failed request never leaves the account without an image.
func (h *Handler) updateUserImage(w http.ResponseWriter, r *http.Request, field string, kind media.Kind) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w, http.MethodPatch)
		return
	}
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form required")
		return
	}

	path, found, err := saveUploadedFile(r, field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer removeStaged(path)
	if !found {
		writeError(w, http.StatusBadRequest, field+" file is required")
		return
	}

	asset, err := h.Media.Upload(r.Context(), path, kind)
	if err != nil {
		logging.WithContext(r.Context(), h.Logger).Error("image upload failed", "field", field, "error", err)
		writeError(w, http.StatusInternalServerError, "image upload failed")
		return
	}

	previousURL := user.AvatarURL
	update := storage.UserUpdate{}
	if kind == media.KindAvatar {
		update.AvatarURL = &asset.URL
	} else {
		previousURL = user.CoverImageURL
		update.CoverImageURL = &asset.URL
	}

	updated, err := h.Store.UpdateUser(r.Context(), user.ID, update)
	if err != nil {
		h.deleteAssetByURL(r, asset.URL)
		h.writeStoreError(w, r, err)
		return
	}

	h.deleteAssetByURL(r, previousURL)
	writeData(w, http.StatusOK, updated, field+" updated")
}

// deleteAssetByURL best-effort removes a remote asset; failures are logged
// and never surfaced to the client.
func (h *Handler) deleteAssetByURL(r *http.Request, url string) {
	if url == "" {
		return
	}
	key := h.Media.KeyFromURL(url)
	if key == "" {
		return
	}
	if err := h.Media.Delete(r.Context(), key); err != nil {
		logging.WithContext(r.Context(), h.Logger).Warn("asset delete failed", "key", key, "error", err)
	}
}

// requireOwner writes a 403 when the requester does not own the entity.
func requireOwner(w http.ResponseWriter, requesterID, ownerID string) bool {
	if requesterID != ownerID {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}
