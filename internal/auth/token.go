// Package auth issues and verifies JWTs and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrInvalidToken covers malformed, expired, wrongly signed and wrong-type tokens.
var ErrInvalidToken = errors.New("invalid token")

// Config token settings.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims JWT claims. Subject is the user id.
type Claims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// Issued is a signed token with its id and expiry.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenManager signs access and refresh tokens with separate HS256 secrets.
type TokenManager struct {
	cfg Config
	now func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(cfg Config) *TokenManager {
	return &TokenManager{cfg: cfg, now: time.Now}
}

// AccessTTL is the lifetime of access tokens.
func (m *TokenManager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// IssueAccess signs an access token.
func (m *TokenManager) IssueAccess(userID uint, role string) (*Issued, error) {
	return m.issue(userID, role, TypeAccess, m.cfg.AccessTTL, []byte(m.cfg.AccessSecret))
}

// IssueRefresh signs a refresh token. The returned ID is its jti.
func (m *TokenManager) IssueRefresh(userID uint, role string) (*Issued, error) {
	return m.issue(userID, role, TypeRefresh, m.cfg.RefreshTTL, []byte(m.cfg.RefreshSecret))
}

func (m *TokenManager) issue(userID uint, role, typ string, ttl time.Duration, secret []byte) (*Issued, error) {
	now := m.now()
	jti := uuid.NewString()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return &Issued{Token: signed, ID: jti, ExpiresAt: exp}, nil
}

// ParseAccess verifies an access token.
func (m *TokenManager) ParseAccess(token string) (*Claims, error) {
	return m.parse(token, TypeAccess, []byte(m.cfg.AccessSecret))
}

// ParseRefresh verifies a refresh token.
func (m *TokenManager) ParseRefresh(token string) (*Claims, error) {
	return m.parse(token, TypeRefresh, []byte(m.cfg.RefreshSecret))
}

func (m *TokenManager) parse(token, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, typ)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
