// Package auth issues and checks bearer sessions and subscription
// entitlements.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
	"tradestein/internal/security"
	"tradestein/internal/store"
)

// DefaultSessionTTL is how long an issued token stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Options configures a Service.
type Options struct {
	SessionTTL time.Duration
	Audit      *security.AuditLogger
	Logger     zerolog.Logger
	Validator  *security.InputValidator
}

// Service manages profiles, bearer sessions and entitlements.
type Service struct {
	profiles  store.ProfileStore
	hasher    *security.TokenHasher
	ttl       time.Duration
	audit     *security.AuditLogger
	logger    zerolog.Logger
	validator *security.InputValidator
	now       func() time.Time
}

// NewService creates an auth service backed by profiles.
func NewService(profiles store.ProfileStore, hasher *security.TokenHasher, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Validator == nil {
		opts.Validator = security.NewInputValidator(false)
	}
	return &Service{
		profiles:  profiles,
		hasher:    hasher,
		ttl:       opts.SessionTTL,
		audit:     opts.Audit,
		logger:    opts.Logger,
		validator: opts.Validator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an inactive profile for email.
func (s *Service) Register(ctx context.Context, email, username string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, err
	}

	p := &models.Profile{
		Email:              email,
		Username:           strings.TrimSpace(username),
		SubscriptionStatus: models.SubscriptionInactive,
	}
	if err := s.profiles.CreateProfile(ctx, p); err != nil {
		s.audit.LogAuth(ctx, security.AuditRegister, "", false, err.Error())
		return nil, err
	}

	s.audit.LogAuth(ctx, security.AuditRegister, p.ID, true, "")
	s.logger.Info().Str("user_id", p.ID).Msg("Profile registered")
	return p, nil
}

// IssueToken creates a new session for userID and returns the raw token.
// The token is not stored and cannot be recovered later.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, time.Time, error) {
	if _, err := s.profiles.GetProfile(ctx, userID); err != nil {
		return "", time.Time{}, err
	}

	token, err := security.NewToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	session := models.Session{
		TokenHash: s.hasher.Hash(token),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.profiles.CreateSession(ctx, session); err != nil {
		return "", time.Time{}, err
	}

	s.audit.LogAuth(ctx, security.AuditTokenIssued, userID, true, "")
	return token, session.ExpiresAt, nil
}

// Authenticate resolves a bearer token to its user id. Expired sessions are
// deleted and reported as ErrSessionExpired.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.ErrNotAuthenticated
	}

	hash := s.hasher.Hash(token)
	session, err := s.profiles.GetSession(ctx, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotAuthenticated) {
			s.audit.LogAuth(ctx, security.AuditAuthFailed, "", false, "unknown token")
		}
		return "", err
	}

	if session.Expired(s.now()) {
		if err := s.profiles.DeleteSession(ctx, hash); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to delete expired session")
		}
		s.audit.LogAuth(ctx, security.AuditSessionExpired, session.UserID, false, "")
		return "", apperrors.ErrSessionExpired
	}

	return session.UserID, nil
}

// Revoke deletes the session behind token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if err := s.profiles.DeleteSession(ctx, s.hasher.Hash(strings.TrimSpace(token))); err != nil {
		return err
	}
	s.audit.LogAuth(ctx, security.AuditTokenRevoked, "", true, "")
	return nil
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// RequireActive returns ErrSubscriptionInactive unless userID has an active
// subscription.
func (s *Service) RequireActive(ctx context.Context, userID string) error {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !p.IsActive() {
		s.audit.Log(ctx, security.AuditEvent{
			EventType: security.AuditEntitlementDenied,
			UserID:    userID,
			Action:    string(p.SubscriptionStatus),
		})
		return apperrors.ErrSubscriptionInactive
	}
	return nil
}

// SetSubscription records a billing state change for userID.
func (s *Service) SetSubscription(ctx context.Context, userID string, status models.SubscriptionStatus, subscriptionID string) error {
	if err := s.profiles.SetSubscription(ctx, userID, status, subscriptionID); err != nil {
		return err
	}
	s.audit.LogSubscription(ctx, userID, string(status))
	s.logger.Info().Str("user_id", userID).Str("status", string(status)).Msg("Subscription updated")
	return nil
}

// PurgeExpired removes every expired session.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.profiles.PurgeExpiredSessions(ctx, s.now())
}

type ctxKey struct{}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFrom returns the authenticated user id carried by ctx.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
