package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

const profileColumns = "id, email, username, bio, avatar_url, subscription_status, subscription_id, created_at, updated_at"

func scanProfile(row rowScanner) (models.Profile, error) {
	var p models.Profile
	var username, bio, avatar, subID sql.NullString
	var status string
	if err := row.Scan(&p.ID, &p.Email, &username, &bio, &avatar, &status, &subID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.Username = username.String
	p.Bio = bio.String
	p.AvatarURL = avatar.String
	p.SubscriptionStatus = models.SubscriptionStatus(status)
	p.SubscriptionID = subID.String
	return p, nil
}

// CreateProfile inserts a profile. New profiles start inactive unless a
// status is given. Emails are compared case-insensitively.
func (s *SQLiteStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.SubscriptionStatus == "" {
		profile.SubscriptionStatus = models.SubscriptionInactive
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	now := s.now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO profiles ("+profileColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		profile.ID, profile.Email, nullString(profile.Username), nullString(profile.Bio),
		nullString(profile.AvatarURL), string(profile.SubscriptionStatus),
		nullString(profile.SubscriptionID), profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrEmailTaken
		}
		return storeErr("create", "profile", err)
	}

	s.notifier.Notify(profile.ID, models.EventProfileChanged, profile.ID)
	return nil
}

// GetProfile returns the profile with id.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.getProfile(ctx, "id", id)
}

// GetProfileByEmail returns the profile registered under email.
func (s *SQLiteStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.getProfile(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLiteStore) getProfile(ctx context.Context, column, value string) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE "+column+" = ?", value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrProfileNotFound
	}
	if err != nil {
		return nil, storeErr("get", "profile", err)
	}
	return &p, nil
}

// ListProfiles returns profiles with the given status, or all profiles when
// status is empty.
func (s *SQLiteStore) ListProfiles(ctx context.Context, status models.SubscriptionStatus) ([]models.Profile, error) {
	query := "SELECT " + profileColumns + " FROM profiles"
	var args []interface{}
	if status != "" {
		query += " WHERE subscription_status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list", "profiles", err)
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, storeErr("scan", "profile", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SetSubscription records a billing state change.
func (s *SQLiteStore) SetSubscription(ctx context.Context, userID string, status models.SubscriptionStatus, subscriptionID string) error {
	if !status.Valid() {
		return apperrors.NewValidationError("subscription_status", status, "must be active, inactive or cancelled")
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET subscription_status = ?, subscription_id = COALESCE(?, subscription_id), updated_at = ? WHERE id = ?",
		string(status), nullString(subscriptionID), s.now(), userID)
	if err != nil {
		return storeErr("update", "profile", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrProfileNotFound
	}

	s.notifier.Notify(userID, models.EventProfileChanged, userID)
	return nil
}

// UpdateProfile applies the non-nil fields of u and returns the result.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, userID string, u models.ProfileUpdate) (*models.Profile, error) {
	if u.Empty() {
		return s.GetProfile(ctx, userID)
	}

	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"username", u.Username},
		{"bio", u.Bio},
		{"avatar_url", u.AvatarURL},
	} {
		if f.value != nil {
			sets = append(sets, f.column+" = ?")
			args = append(args, nullString(strings.TrimSpace(*f.value)))
		}
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), userID)

	res, err := s.db.ExecContext(ctx, "UPDATE profiles SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, storeErr("update", "profile", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.ErrProfileNotFound
	}

	s.notifier.Notify(userID, models.EventProfileChanged, userID)
	return s.GetProfile(ctx, userID)
}

// CreateSession stores an issued session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session models.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		session.TokenHash, session.UserID, session.ExpiresAt.UTC(), session.CreatedAt.UTC())
	if err != nil {
		return storeErr("create", "session", err)
	}
	return nil
}

// GetSession looks a session up by token hash. Unknown hashes are reported
// as ErrNotAuthenticated; expiry is left to the caller.
func (s *SQLiteStore) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRowContext(ctx,
		"SELECT token_hash, user_id, expires_at, created_at FROM sessions WHERE token_hash = ?", tokenHash).
		Scan(&sess.TokenHash, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotAuthenticated
	}
	if err != nil {
		return nil, storeErr("get", "session", err)
	}
	return &sess, nil
}

// DeleteSession revokes a session. Revoking an unknown session is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = ?", tokenHash); err != nil {
		return storeErr("delete", "session", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired at or before now.
func (s *SQLiteStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, storeErr("purge", "sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
