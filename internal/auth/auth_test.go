package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
	"tradestein/internal/security"
	"tradestein/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, security.NewTokenHasher("test-salt", 1000), Options{
		SessionTTL: time.Hour,
		Logger:     zerolog.Nop(),
	})
	return svc, db
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, " Trader@Example.com ", "trader")
	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", p.Email)
	assert.Equal(t, models.SubscriptionInactive, p.SubscriptionStatus)

	_, err = svc.Register(ctx, "trader@example.com", "again")
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)

	_, err = svc.Register(ctx, "not-an-email", "")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	token, expires, err := svc.IssueToken(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expires.After(time.Now()))

	userID, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, userID)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	_, err = svc.Authenticate(ctx, "forged")
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)

	require.NoError(t, svc.Revoke(ctx, token))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestIssueTokenUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.IssueToken(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrProfileNotFound)
}

func TestExpiredSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, "late@example.com", "")
	require.NoError(t, err)
	token, _, err := svc.IssueToken(ctx, p.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)

	// The expired session is removed on first use.
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestPurgeExpired(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, "purge@example.com", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _, err := svc.IssueToken(ctx, p.ID)
		require.NoError(t, err)
	}

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	n, err = svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestRequireActive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, "sub@example.com", "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RequireActive(ctx, p.ID), apperrors.ErrSubscriptionInactive)

	require.NoError(t, svc.SetSubscription(ctx, p.ID, models.SubscriptionActive, "sub_1"))
	assert.NoError(t, svc.RequireActive(ctx, p.ID))

	require.NoError(t, svc.SetSubscription(ctx, p.ID, models.SubscriptionCancelled, ""))
	assert.ErrorIs(t, svc.RequireActive(ctx, p.ID), apperrors.ErrSubscriptionInactive)

	assert.ErrorIs(t, svc.RequireActive(ctx, "ghost"), apperrors.ErrProfileNotFound)
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserIDFrom(context.Background())
	assert.False(t, ok)

	id, ok := UserIDFrom(WithUserID(context.Background(), "u1"))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}
