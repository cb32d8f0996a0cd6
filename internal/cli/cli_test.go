package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

type cliEnv struct {
	dir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "TRADESTEIN_TOKEN_SALT", "TRADESTEIN_DB", "PORT", "TRADESTEIN_PORT", "TRADESTEIN_USER"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[logging]
console = false
file = false

[security]
pbkdf2_iterations = 1000
`), 0644))
	return &cliEnv{dir: dir}
}

// run executes one CLI invocation against the env's config directory.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := &App{Logger: zerolog.Nop()}
	defer app.Close()

	var out bytes.Buffer
	root := NewRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *cliEnv) mustJSON(t *testing.T, v interface{}, args ...string) {
	t.Helper()
	out, err := e.run(t, append(args, "--json")...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

// activeUser registers email with an active subscription and selects it.
func (e *cliEnv) activeUser(t *testing.T, email string) string {
	t.Helper()
	var p models.Profile
	e.mustJSON(t, &p, "user", "create", email)
	_, err := e.run(t, "user", "subscription", "active", "--user", email, "--id", "sub_1")
	require.NoError(t, err)
	t.Setenv("TRADESTEIN_USER", email)
	return p.ID
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Tradestein v"+Version)
}

func TestConfigPathAndValidate(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.dir, "config.toml"), strings.TrimSpace(out))

	var res map[string]bool
	env.mustJSON(t, &res, "config", "validate")
	assert.True(t, res["valid"])
	assert.False(t, res["openai"])

	out, err = env.run(t, "config", "show", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, `"TokenSalt": ""`)
}

func TestAuthRequiresTokenSalt(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "credentials.toml"), []byte("token_salt = \"short\"\n"), 0600))

	_, err := env.run(t, "user", "create", "trader@example.com")
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestFirstRunTokenSurvivesRestart(t *testing.T) {
	env := newCLIEnv(t)
	_, err := os.Stat(filepath.Join(env.dir, "credentials.toml"))
	require.True(t, os.IsNotExist(err))

	var p models.Profile
	env.mustJSON(t, &p, "user", "create", "trader@example.com")

	var issued struct {
		Token string `json:"token"`
	}
	env.mustJSON(t, &issued, "user", "token", "--user", p.ID)
	require.NotEmpty(t, issued.Token)

	// A later process reloads the generated salt and accepts the token.
	app := &App{Logger: zerolog.Nop()}
	defer app.Close()
	root := NewRootCmd(app)
	root.SetArgs([]string{"--config", env.dir, "config", "path"})
	root.SetOut(&bytes.Buffer{})
	require.NoError(t, root.Execute())
	authSvc, err := app.Auth()
	require.NoError(t, err)
	userID, err := authSvc.Authenticate(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, userID)
}

func TestTradeLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	userID := env.activeUser(t, "trader@example.com")

	var created models.Trade
	env.mustJSON(t, &created, "trade", "add",
		"--date", "2026-10-12", "--ticker", " eurusd ", "--pnl", "120.5",
		"--rr", "2", "--entry", "09:30", "--right", "waited for confirmation")
	assert.Equal(t, userID, created.UserID)
	assert.Equal(t, "EURUSD", created.Ticker)
	assert.Equal(t, 120.5, created.PnL)
	require.NotNil(t, created.FinalRR)

	var edited models.Trade
	env.mustJSON(t, &edited, "trade", "edit", created.ID, "--pnl", "-40")
	assert.Equal(t, -40.0, edited.PnL)
	assert.Equal(t, "waited for confirmation", edited.DoneRight, "unset flags keep their value")
	assert.Equal(t, "09:30", edited.EntryTime)

	var listed []models.Trade
	env.mustJSON(t, &listed, "trade", "list", "--ticker", "EURUSD")
	require.Len(t, listed, 1)
	assert.Equal(t, -40.0, listed[0].PnL)

	out, err := env.run(t, "trade", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "Morning")

	_, err = env.run(t, "trade", "delete", created.ID)
	require.NoError(t, err)
	_, err = env.run(t, "trade", "show", created.ID)
	assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
}

func TestTradeAddValidation(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	_, err := env.run(t, "trade", "add", "--pnl", "10")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	_, err = env.run(t, "trade", "add", "--ticker", "ES", "--date", "12/10/2026")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}

func TestCommandsRequireUser(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "trade", "list")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	_, err = env.run(t, "trade", "list", "--user", "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrProfileNotFound)
}

func TestStatsGatedBySubscription(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "user", "create", "free@example.com")
	require.NoError(t, err)

	_, err = env.run(t, "stats", "summary", "--user", "free@example.com")
	assert.ErrorIs(t, err, apperrors.ErrSubscriptionInactive)

	_, err = env.run(t, "backup", "export", "--user", "free@example.com")
	assert.ErrorIs(t, err, apperrors.ErrSubscriptionInactive)
}

func TestStats(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	for _, args := range [][]string{
		{"--date", "2026-10-12", "--ticker", "EURUSD", "--pnl", "100", "--rr", "2", "--entry", "09:00"},
		{"--date", "2026-10-13", "--ticker", "GBPUSD", "--pnl", "-50", "--risked", "50", "--entry", "13:00"},
		{"--date", "2026-10-13", "--ticker", "EURUSD", "--pnl", "30", "--entry", "17:30"},
	} {
		_, err := env.run(t, append([]string{"trade", "add"}, args...)...)
		require.NoError(t, err)
	}

	var summary struct {
		Summary struct {
			TotalPnL   float64 `json:"totalPnl"`
			TradeCount int     `json:"tradeCount"`
			BestTicker string  `json:"bestTicker"`
		} `json:"summary"`
	}
	env.mustJSON(t, &summary, "stats", "summary")
	assert.Equal(t, 80.0, summary.Summary.TotalPnL)
	assert.Equal(t, 3, summary.Summary.TradeCount)
	assert.Equal(t, "EURUSD", summary.Summary.BestTicker)

	env.mustJSON(t, &summary, "stats", "summary", "--pair", "gbpusd")
	assert.Equal(t, -50.0, summary.Summary.TotalPnL)

	var buckets struct {
		Buckets []struct {
			Key string  `json:"key"`
			PnL float64 `json:"pnl"`
		} `json:"buckets"`
	}
	env.mustJSON(t, &buckets, "stats", "buckets", "weekday")
	require.Len(t, buckets.Buckets, 7)
	assert.Equal(t, "Sunday", buckets.Buckets[0].Key)
	assert.Equal(t, 100.0, buckets.Buckets[1].PnL)
	assert.Equal(t, -20.0, buckets.Buckets[2].PnL)

	_, err := env.run(t, "stats", "buckets", "hour")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	var curve []struct {
		Cumulative float64 `json:"cumulativePnl"`
	}
	env.mustJSON(t, &curve, "stats", "equity", "--daily")
	require.Len(t, curve, 2)
	assert.Equal(t, 80.0, curve[1].Cumulative)

	var streak map[string]int
	env.mustJSON(t, &streak, "stats", "streak")
	assert.Equal(t, 2, streak["current"])
	assert.Equal(t, 2, streak["max"])

	out, err := env.run(t, "stats", "calendar", "--month", "2026-10")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-10")
	assert.Contains(t, out, "2026-W42")

	_, err = env.run(t, "stats", "calendar", "--month", "October")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}

func TestGoals(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	var goal models.Goal
	env.mustJSON(t, &goal, "goal", "add", "Journal", "every", "trade", "--deadline", "2026-12-31")
	assert.Equal(t, "Journal every trade", goal.Title)

	var updated models.Goal
	env.mustJSON(t, &updated, "goal", "progress", goal.ID, "100")
	assert.True(t, updated.Completed)

	var list struct {
		Goals []models.Goal `json:"goals"`
		Stats struct {
			Completed int `json:"completed"`
		} `json:"stats"`
	}
	env.mustJSON(t, &list, "goal", "list", "--sort", "progress")
	require.Len(t, list.Goals, 1)
	assert.Equal(t, 1, list.Stats.Completed)

	_, err := env.run(t, "goal", "list", "--sort", "title")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	_, err = env.run(t, "goal", "delete", goal.ID)
	require.NoError(t, err)
}

func TestNotes(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	var first models.Note
	env.mustJSON(t, &first, "note", "add", "FOMC", "replay", "--content", "Faded the first spike.")
	assert.Equal(t, "FOMC replay", first.Title)

	body := filepath.Join(env.dir, "replay.md")
	require.NoError(t, os.WriteFile(body, []byte("Chased the breakout.\n\n"), 0644))
	var second models.Note
	env.mustJSON(t, &second, "note", "add", "--file", body)
	assert.Equal(t, "Chased the breakout.", second.Content)
	assert.Equal(t, "Untitled", second.DisplayTitle())

	_, err := env.run(t, "note", "add")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	var edited models.Note
	env.mustJSON(t, &edited, "note", "edit", first.ID, "--content", "Should have waited for the retest.")
	assert.Equal(t, "FOMC replay", edited.Title)
	assert.Equal(t, "Should have waited for the retest.", edited.Content)

	var list struct {
		Notes []models.Note `json:"notes"`
	}
	env.mustJSON(t, &list, "note", "list")
	require.Len(t, list.Notes, 2)
	assert.Equal(t, first.ID, list.Notes[0].ID)

	out, err := env.run(t, "note", "show", first.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Should have waited for the retest.")

	_, err = env.run(t, "note", "delete", second.ID)
	require.NoError(t, err)
	_, err = env.run(t, "note", "show", second.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoteNotFound)
}

func TestUserProfile(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	var p models.Profile
	env.mustJSON(t, &p, "user", "profile", "--username", "tape reader", "--bio", "Index futures", "--avatar-url", "https://cdn.example.com/me.png")
	assert.Equal(t, "tape reader", p.Username)
	assert.Equal(t, "Index futures", p.Bio)
	assert.Equal(t, "https://cdn.example.com/me.png", p.AvatarURL)

	env.mustJSON(t, &p, "user", "profile", "--avatar-url", "")
	assert.Empty(t, p.AvatarURL)
	assert.Equal(t, "Index futures", p.Bio)

	_, err := env.run(t, "user", "profile", "--avatar-url", "ftp://example.com/me.png")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	out, err := env.run(t, "user", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "tape reader")
}

func TestStoreOpenFailureIsReported(t *testing.T) {
	env := newCLIEnv(t)
	blocker := filepath.Join(env.dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	t.Setenv("TRADESTEIN_DB", filepath.Join(blocker, "journal.db"))

	for _, args := range [][]string{
		{"stats", "summary", "--user", "trader@example.com"},
		{"goal", "list", "--user", "trader@example.com"},
		{"note", "list", "--user", "trader@example.com"},
	} {
		_, err := env.run(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "creating data directory", args)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	var created models.Trade
	env.mustJSON(t, &created, "trade", "add", "--date", "2026-10-12", "--ticker", "EURUSD", "--pnl", "100")

	file := filepath.Join(t.TempDir(), "trades.csv")
	_, err := env.run(t, "backup", "export", "-o", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,user_id,date,ticker"))

	_, err = env.run(t, "trade", "delete", created.ID)
	require.NoError(t, err)

	var res struct {
		Rows     int `json:"rows"`
		Imported int `json:"imported"`
	}
	env.mustJSON(t, &res, "backup", "import", file)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 1, res.Imported)

	var restored models.Trade
	env.mustJSON(t, &restored, "trade", "show", created.ID)
	assert.Equal(t, 100.0, restored.PnL)
}

func TestUserToken(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	var tok map[string]interface{}
	env.mustJSON(t, &tok, "user", "token")
	assert.NotEmpty(t, tok["token"])

	var sub map[string]interface{}
	env.mustJSON(t, &sub, "user", "subscription")
	assert.Equal(t, true, sub["active"])

	_, err := env.run(t, "user", "subscription", "paused")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}

func TestInsightsWithoutKey(t *testing.T) {
	env := newCLIEnv(t)
	env.activeUser(t, "trader@example.com")

	_, err := env.run(t, "insights", "--json")
	assert.ErrorIs(t, err, apperrors.ErrInsightsUnavailable)
}
