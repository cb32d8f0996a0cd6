// Package integration exercises the journal end to end: configuration, store,
// auth, HTTP API, realtime stream, AI relay, CSV backup and the scheduled
// digest.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradestein/internal/analytics"
	"tradestein/internal/auth"
	"tradestein/internal/backup"
	"tradestein/internal/config"
	"tradestein/internal/insights"
	"tradestein/internal/models"
	"tradestein/internal/notify"
	"tradestein/internal/resilience"
	"tradestein/internal/scheduler"
	"tradestein/internal/security"
	"tradestein/internal/server"
	"tradestein/internal/store"
	"tradestein/internal/stream"
)

// scriptedLLM answers every completion with a fixed reply and records the
// requests it saw.
type scriptedLLM struct {
	mu       sync.Mutex
	reply    string
	requests []insights.CompletionRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req insights.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.reply, nil
}

// digestHook collects webhook deliveries.
type digestHook struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (h *digestHook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var n notify.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.notes = append(h.notes, n)
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type system struct {
	cfg   *config.Config
	store *store.SQLiteStore
	auth  *auth.Service
	hub   *stream.Hub
	llm   *scriptedLLM
	sched *scheduler.Scheduler
	hook  *digestHook
	api   *httptest.Server
}

// newSystem assembles the services the way serve does, on a fresh config
// directory.
func newSystem(t *testing.T) *system {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "TELEGRAM_BOT_TOKEN", "TRADESTEIN_TOKEN_SALT", "TRADESTEIN_DB", "PORT", "TRADESTEIN_PORT"} {
		t.Setenv(key, "")
	}

	hook := &digestHook{}
	hookSrv := httptest.NewServer(hook)
	t.Cleanup(hookSrv.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[logging]
console = false
file = false

[security]
pbkdf2_iterations = 1000

[notifications]
webhook_url = "`+hookSrv.URL+`"
`), 0644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateForServe())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hub := stream.NewHub()
	hub.Start(ctx)
	t.Cleanup(hub.Stop)
	st.SetNotifier(hub)

	validator := security.NewInputValidator(cfg.Security.StrictValidation)
	authSvc := auth.NewService(st,
		security.NewTokenHasher(cfg.Credentials.TokenSalt, cfg.Security.PBKDF2Iterations),
		auth.Options{SessionTTL: cfg.Security.SessionTTL, Logger: zerolog.Nop(), Validator: validator})

	llm := &scriptedLLM{reply: `{"summary":"Solid week","strengths":["patience"],"weaknesses":[],"recommendations":["size down on Mondays"],"nextActions":["review losers"]}`}
	relay := insights.NewRelay(llm, insights.Options{
		ReportModel: cfg.AI.ReportModel,
		ChatModel:   cfg.AI.ChatModel,
		Window:      cfg.AI.Window,
		Timeout:     cfg.AI.Timeout,
	})

	health := resilience.NewHealthChecker()
	health.Register("database", resilience.DatabaseHealthCheck(st.Ping))
	health.Register("openai", resilience.CircuitHealthCheck(relay.Breaker()))

	srv := server.New(server.Deps{
		Store:     st,
		Auth:      authSvc,
		Hub:       hub,
		Relay:     relay,
		Backup:    backup.NewService(st, validator, cfg.Store.ImportBatchSize, zerolog.Nop()),
		Health:    health,
		Validator: validator,
		Logger:    zerolog.Nop(),
	}, server.Options{
		AIRate:  cfg.Server.AIRatePerMinute / 60,
		AIBurst: cfg.Server.AIBurst,
	})
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	sched := scheduler.New(ctx, authSvc, st, srv, zerolog.Nop())
	sched.SetDigestSink(notify.NewMultiNotifier(zerolog.Nop(), notify.NewWebhookNotifier(cfg.Notify.WebhookURL)))

	return &system{cfg: cfg, store: st, auth: authSvc, hub: hub, llm: llm, sched: sched, hook: hook, api: api}
}

func (s *system) call(t *testing.T, method, path, token, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.api.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *system) callJSON(t *testing.T, method, path, token string, in, out interface{}) int {
	t.Helper()
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		require.NoError(t, err)
	}
	resp := s.call(t, method, path, token, "application/json", body)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestJournalWorkflow(t *testing.T) {
	sys := newSystem(t)
	ctx := context.Background()

	profile, err := sys.auth.Register(ctx, "trader@example.com", "trader")
	require.NoError(t, err)
	token, _, err := sys.auth.IssueToken(ctx, profile.ID)
	require.NoError(t, err)

	// Analytics are gated until the subscription is active.
	assert.Equal(t, http.StatusPaymentRequired, sys.callJSON(t, http.MethodGet, "/api/analytics/summary", token, nil, nil))
	require.NoError(t, sys.auth.SetSubscription(ctx, profile.ID, models.SubscriptionActive, "sub_42"))

	wsURL := "ws" + strings.TrimPrefix(sys.api.URL, "http") + "/api/trades/stream?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return sys.hub.TotalSubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	today := analytics.Today(time.Now())
	yesterday := analytics.Today(time.Now().AddDate(0, 0, -1))
	inputs := []map[string]interface{}{
		{"date": yesterday, "ticker": "eurusd", "pnl": 150, "final_rr": 3, "entry_time": "08:15"},
		{"date": today, "ticker": "GBPUSD", "pnl": "-50", "amount_risked": 50, "entry_time": "13:40"},
		{"date": today, "ticker": "EURUSD", "pnl": 25.5, "entry_time": "18:05", "emotions": "calm"},
	}
	var created []models.Trade
	for _, in := range inputs {
		var tr models.Trade
		require.Equal(t, http.StatusCreated, sys.callJSON(t, http.MethodPost, "/api/trades", token, in, &tr))
		created = append(created, tr)
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventTradesChanged, ev.Kind)
	assert.Equal(t, created[0].ID, ev.EntityID)

	var summary struct {
		Summary analytics.Summary `json:"summary"`
		Today   struct {
			PnL   float64 `json:"pnl"`
			Count int     `json:"count"`
		} `json:"today"`
	}
	require.Equal(t, http.StatusOK, sys.callJSON(t, http.MethodGet, "/api/analytics/summary", token, nil, &summary))
	assert.InDelta(t, 125.5, summary.Summary.TotalPnL, 1e-9)
	assert.Equal(t, 3, summary.Summary.TradeCount)
	require.NotNil(t, summary.Summary.BestTicker)
	assert.Equal(t, "EURUSD", *summary.Summary.BestTicker)
	assert.InDelta(t, 175.5, summary.Summary.BestTickerPnL, 1e-9)
	// (3 + -1 + 0) / 3
	assert.InDelta(t, 2.0/3.0, summary.Summary.AvgRR, 1e-9)
	assert.Equal(t, 2, summary.Today.Count)

	var sessions struct {
		Buckets analytics.Buckets `json:"buckets"`
	}
	require.Equal(t, http.StatusOK, sys.callJSON(t, http.MethodGet, "/api/analytics/buckets/session", token, nil, &sessions))
	assert.Equal(t, []string{models.SessionMorning, models.SessionMidday, models.SessionAfternoon}, sessions.Buckets.Keys())

	var report insights.Report
	require.Equal(t, http.StatusOK, sys.callJSON(t, http.MethodPost, "/api/ai-insights", token, map[string]string{"ask": "What about Mondays?"}, &report))
	assert.Equal(t, "Solid week", report.Summary)
	assert.Equal(t, 3, report.Metrics.WindowSize)
	require.Len(t, sys.llm.requests, 1)
	assert.True(t, sys.llm.requests[0].JSON)

	// Backup, delete, restore.
	resp := sys.call(t, http.MethodGet, "/api/backup/export", token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	csv, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusNoContent, sys.callJSON(t, http.MethodDelete, "/api/trades/"+created[1].ID, token, nil, nil))

	resp = sys.call(t, http.MethodPost, "/api/backup/import", token, "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var imported backup.ImportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&imported))
	assert.Equal(t, 3, imported.Rows)
	assert.Equal(t, 3, imported.Imported)

	var restored models.Trade
	require.Equal(t, http.StatusOK, sys.callJSON(t, http.MethodGet, "/api/trades/"+created[1].ID, token, nil, &restored))
	assert.Equal(t, -50.0, restored.PnL)

	// Nightly digest goes to the webhook.
	digests, err := sys.sched.RunDigestNow()
	require.NoError(t, err)
	require.Len(t, digests, 1)
	assert.Equal(t, 2, digests[0].Trades)
	assert.Equal(t, 2, digests[0].ActiveStreak)

	sys.hook.mu.Lock()
	defer sys.hook.mu.Unlock()
	require.Len(t, sys.hook.notes, 1)
	assert.Equal(t, notify.NotificationDigest, sys.hook.notes[0].Type)
	assert.Equal(t, profile.ID, sys.hook.notes[0].UserID)
}

func TestLogoutRevokesStreamAndAPI(t *testing.T) {
	sys := newSystem(t)
	ctx := context.Background()

	profile, err := sys.auth.Register(ctx, "leaver@example.com", "")
	require.NoError(t, err)
	token, _, err := sys.auth.IssueToken(ctx, profile.ID)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, sys.callJSON(t, http.MethodGet, "/api/subscription", token, nil, nil))
	require.Equal(t, http.StatusNoContent, sys.callJSON(t, http.MethodPost, "/api/auth/logout", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, sys.callJSON(t, http.MethodGet, "/api/trades", token, nil, nil))

	purged, err := sys.sched.RunPurgeNow()
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)
}
