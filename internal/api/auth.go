package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vidtube/internal/models"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

type contextKey string

const userContextKey contextKey = "user"

// ContextWithUser stores the authenticated user on the context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user stored on the context.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// ExtractToken pulls the access token from the accessToken cookie or an
// Authorization: Bearer header, preferring the cookie.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

var errUnauthorized = errors.New("unauthorized")

// Authenticate resolves the requester from the access token. It returns
// errUnauthorized for missing, invalid, or expired credentials.
func (h *Handler) Authenticate(r *http.Request) (models.User, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.User{}, errUnauthorized
	}
	userID, err := h.Tokens.ParseAccessToken(token)
	if err != nil {
		return models.User{}, errUnauthorized
	}
	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		return models.User{}, errUnauthorized
	}
	return user, nil
}

// requireUser authenticates the request and writes a 401 when it fails.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := h.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return models.User{}, false
	}
	return user, true
}
