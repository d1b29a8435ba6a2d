// Package auth validates the manager-side JWT bearer tokens. Candidate
// routes never use these; they are keyed by the assessment token alone.
package auth

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErr "hushhire/pkg/errors"
)

// Config holds JWT validation settings.
type Config struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

// Claims are the manager token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and validates manager tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewManager creates a token manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, stderrors.New("jwt secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: ttl}, nil
}

// Issue signs a token for a manager.
func (m *Manager) Issue(managerID int64, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(managerID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token failed: %w", err)
	}
	return raw, expiresAt, nil
}

// Validate parses a bearer token and returns the manager id and role.
func (m *Manager) Validate(raw string) (int64, string, error) {
	if raw == "" {
		return 0, "", appErr.New(appErr.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", appErr.New(appErr.TokenExpired)
		}
		return 0, "", appErr.New(appErr.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, "", appErr.New(appErr.TokenInvalid)
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return 0, "", appErr.New(appErr.TokenInvalid)
	}
	managerID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || managerID <= 0 {
		return 0, "", appErr.New(appErr.TokenInvalid)
	}
	return managerID, claims.Role, nil
}
