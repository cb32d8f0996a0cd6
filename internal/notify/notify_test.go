package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradestein/internal/scheduler"
)

func fastNotifier(channels ...Channel) *MultiNotifier {
	mn := NewMultiNotifier(zerolog.Nop(), channels...)
	mn.retry.InitialDelay = time.Millisecond
	mn.retry.MaxDelay = time.Millisecond
	return mn
}

func TestWebhookDeliversDigest(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mn := fastNotifier(NewWebhookNotifier(srv.URL))
	require.True(t, mn.Enabled())

	err := mn.SendDigest(context.Background(), scheduler.Digest{
		UserID: "u1", Date: "2026-10-16", Trades: 3, PnL: 125.5, WinRate: 66.7, ActiveStreak: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, NotificationDigest, got.Type)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Journal digest - 2026-10-16", got.Title)
	assert.Contains(t, got.Message, "P&L: +$125.50")
	assert.Contains(t, got.Message, "Win rate: 66.7%")
	assert.Contains(t, got.Message, "streak: 4 days")
	assert.EqualValues(t, 3, got.Data["trades"])
	assert.False(t, got.Timestamp.IsZero())
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := fastNotifier(NewWebhookNotifier(srv.URL)).Send(context.Background(), Notification{Type: NotificationInfo})
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := fastNotifier(NewWebhookNotifier(srv.URL)).Send(context.Background(), Notification{Type: NotificationInfo})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook returned status 404")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTelegramFormatsHTML(t *testing.T) {
	var body map[string]interface{}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("123:abc", "42")
	tg.baseURL = srv.URL
	err := fastNotifier(tg).SendError(context.Background(), errors.New("a < b"), "digest")
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "HTML", body["parse_mode"])
	assert.Contains(t, body["text"], "a &lt; b")
}

func TestDisabledChannelsAreSkipped(t *testing.T) {
	mn := fastNotifier(NewWebhookNotifier(""), NewTelegramNotifier("", "42"))
	assert.False(t, mn.Enabled())
	assert.NoError(t, mn.Send(context.Background(), Notification{Type: NotificationInfo}))
}

func TestDigestWithoutTrades(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	require.NoError(t, fastNotifier(NewWebhookNotifier(srv.URL)).SendDigest(context.Background(), scheduler.Digest{Date: "2026-10-16"}))
	assert.Contains(t, got.Message, "No trades logged today.")
}
