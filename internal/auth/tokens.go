// Package auth issues and verifies the JWT access and refresh tokens used by
// the HTTP API. Access and refresh tokens are signed with independent secrets
// so a leaked access secret cannot mint refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidToken covers malformed, mis-signed, and wrong-type tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken reports a token whose expiry has passed.
	ErrExpiredToken = errors.New("token expired")
)

type tokenType string

const (
	tokenTypeAccess  tokenType = "access"
	tokenTypeRefresh tokenType = "refresh"
)

type claims struct {
	TokenType tokenType `json:"tokenType"`
	jwt.RegisteredClaims
}

// Config holds the signing material and lifetimes for both token kinds.
type Config struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Clock           func() time.Time
}

// Manager signs and parses access and refresh tokens.
type Manager struct {
	cfg Config
}

// NewManager validates the config and returns a token manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, fmt.Errorf("access token secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("refresh token secret required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{cfg: cfg}, nil
}

// RefreshTokenTTL reports the configured refresh token lifetime so callers can
// align persisted expiries and cookie lifetimes with the token itself.
func (m *Manager) RefreshTokenTTL() time.Duration {
	return m.cfg.RefreshTokenTTL
}

// AccessTokenTTL reports the configured access token lifetime.
func (m *Manager) AccessTokenTTL() time.Duration {
	return m.cfg.AccessTokenTTL
}

// IssueAccessToken signs a short-lived access token for the user.
func (m *Manager) IssueAccessToken(userID string) (string, time.Time, error) {
	return m.issue(userID, tokenTypeAccess, m.cfg.AccessSecret, m.cfg.AccessTokenTTL)
}

// IssueRefreshToken signs a refresh token for the user.
func (m *Manager) IssueRefreshToken(userID string) (string, time.Time, error) {
	return m.issue(userID, tokenTypeRefresh, m.cfg.RefreshSecret, m.cfg.RefreshTokenTTL)
}

func (m *Manager) issue(userID string, typ tokenType, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := m.cfg.Clock()
	expiresAt := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies an access token and returns the subject user ID.
func (m *Manager) ParseAccessToken(raw string) (string, error) {
	return m.parse(raw, tokenTypeAccess, m.cfg.AccessSecret)
}

// ParseRefreshToken verifies a refresh token and returns the subject user ID.
func (m *Manager) ParseRefreshToken(raw string) (string, error) {
	return m.parse(raw, tokenTypeRefresh, m.cfg.RefreshSecret)
}

func (m *Manager) parse(raw string, typ tokenType, secret []byte) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.cfg.Clock))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	parsedClaims, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if parsedClaims.TokenType != typ {
		return "", fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	if parsedClaims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return parsedClaims.Subject, nil
}
