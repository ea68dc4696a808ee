package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samigerges/workflow-sub001/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultProvider  = "default"
	maxVoterIDLength = 190
	queryIdentity    = "provider = ? AND subject = ?"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for voter identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service maps provider-specific logins onto stable voter identifiers.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// ResolveVoterID returns the voter identifier for the session claims, registering
// the provider+subject pair on first sight. The voter id is the canonical
// "provider:subject" string, so logins from different providers never share one.
func (s *Service) ResolveVoterID(ctx context.Context, claims auth.SessionClaims) (string, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	canonicalID := canonicalVoterID(provider, subject)
	if len(canonicalID) > maxVoterIDLength {
		return "", fmt.Errorf("%w: voter id exceeds %d characters", ErrInvalidIdentity, maxVoterIDLength)
	}
	if cached, ok := s.cache.Load(canonicalID); ok {
		if voterID, ok := cached.(string); ok {
			return voterID, nil
		}
	}

	db := s.db.WithContext(ctx)
	var identity Identity
	err := db.Where(queryIdentity, provider, subject).Take(&identity).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      canonicalID,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			AvatarURL:   normalize(claims.UserAvatarURL),
			LastSeenAt:  s.now(),
		}
		if err := db.Create(&identity).Error; err != nil {
			return "", fmt.Errorf("users: register identity: %w", err)
		}
		s.logger.Info("voter identity registered",
			zap.String("provider", provider),
			zap.String("voter_id", identity.UserID))
	case err != nil:
		return "", fmt.Errorf("users: load identity: %w", err)
	default:
		s.refreshProfile(db, identity, claims)
	}

	s.cache.Store(canonicalID, identity.UserID)
	return identity.UserID, nil
}

func (s *Service) refreshProfile(db *gorm.DB, identity Identity, claims auth.SessionClaims) {
	updates := map[string]interface{}{"last_seen_at": s.now()}
	if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
		updates["user_email"] = email
	}
	if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
		updates["user_display_name"] = display
	}
	if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != identity.AvatarURL {
		updates["user_avatar_url"] = avatar
	}
	err := db.Model(&Identity{}).
		Where(queryIdentity, identity.Provider, identity.Subject).
		Updates(updates).
		Error
	if err != nil {
		s.logger.Warn("voter profile refresh failed", zap.String("voter_id", identity.UserID), zap.Error(err))
	}
}

func canonicalVoterID(provider, subject string) string {
	return provider + ":" + subject
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				provider = normalize(segments[0])
				subject = normalize(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}

	return provider, subject
}
