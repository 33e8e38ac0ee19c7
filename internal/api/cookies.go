package api

import (
	"net/http"
	"time"
)

func setAuthCookie(w http.ResponseWriter, r *http.Request, name, token string, expires time.Time) {
	if token == "" {
		return
	}
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
	})
}

func clearAuthCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
	})
}

func setTokenCookies(w http.ResponseWriter, r *http.Request, accessToken string, accessExpiry time.Time, refreshToken string, refreshExpiry time.Time) {
	setAuthCookie(w, r, accessTokenCookie, accessToken, accessExpiry)
	setAuthCookie(w, r, refreshTokenCookie, refreshToken, refreshExpiry)
}

func clearTokenCookies(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w, r, accessTokenCookie)
	clearAuthCookie(w, r, refreshTokenCookie)
}
