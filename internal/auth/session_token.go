package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errMissingTokenUser = errors.New("session token: user id required")

// SessionTokenConfig describes a locally minted session, used for seeding
// development environments that have no TAuth instance.
type SessionTokenConfig struct {
	SigningSecret []byte
	Issuer        string
	UserID        string
	Email         string
	DisplayName   string
	Roles         []string
	TTL           time.Duration
	Now           time.Time
}

// NewSessionToken signs an HS256 token shaped like the ones TAuth issues.
func NewSessionToken(cfg SessionTokenConfig) (string, error) {
	if len(cfg.SigningSecret) == 0 {
		return "", ErrMissingSessionSigningKey
	}
	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		return "", errMissingTokenUser
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:          userID,
		UserEmail:       cfg.Email,
		UserDisplayName: cfg.DisplayName,
		UserRoles:       cfg.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(cfg.SigningSecret)
}
