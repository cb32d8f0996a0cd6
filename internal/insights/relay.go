package insights

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/logging"
	"tradestein/internal/models"
	"tradestein/internal/resilience"
	"tradestein/pkg/utils"
)

// Defaults for the relay.
const (
	DefaultReportModel = "gpt-4o-mini"
	DefaultChatModel   = "gpt-4o"
	DefaultWindow      = 50
	DefaultTimeout     = 60 * time.Second

	reportTemperature = 0.6
	chatTemperature   = 0.3
	chatMaxTokens     = 900
	maxChatTurns      = 40
)

// Metrics are the headline numbers of a report.
type Metrics struct {
	WindowSize    int     `json:"windowSize"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"winRate"`
	AvgPnL        float64 `json:"avgPnl"`
	TotalPnL      float64 `json:"totalPnl"`
	BestTicker    *string `json:"bestTicker"`
	BestTickerPnL float64 `json:"bestTickerPnl"`
}

// Report is the structured coaching report produced by Insights.
type Report struct {
	Summary         string   `json:"summary"`
	Metrics         Metrics  `json:"metrics"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	NextActions     []string `json:"nextActions"`
}

// rawMetrics mirrors Metrics with every field optional so that values the
// model left out can be told apart from zeros.
type rawMetrics struct {
	WindowSize    *float64 `json:"windowSize"`
	Wins          *float64 `json:"wins"`
	Losses        *float64 `json:"losses"`
	WinRate       *float64 `json:"winRate"`
	AvgPnL        *float64 `json:"avgPnl"`
	TotalPnL      *float64 `json:"totalPnl"`
	BestTicker    *string  `json:"bestTicker"`
	BestTickerPnL *float64 `json:"bestTickerPnl"`
}

type rawReport struct {
	Summary         string      `json:"summary"`
	Metrics         *rawMetrics `json:"metrics"`
	Strengths       []string    `json:"strengths"`
	Weaknesses      []string    `json:"weaknesses"`
	Recommendations []string    `json:"recommendations"`
	NextActions     []string    `json:"nextActions"`
}

// Options configures a Relay.
type Options struct {
	ReportModel string
	ChatModel   string
	// Window is how many of the most recent trades are sent for a report.
	Window  int
	Timeout time.Duration
	Retry   utils.RetryConfig
	Breaker *resilience.CircuitBreaker
	Logger  zerolog.Logger
}

// Relay forwards journal data to an LLMClient.
type Relay struct {
	client  LLMClient
	opts    Options
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewRelay creates a relay. A nil client yields a relay whose calls fail with
// ErrInsightsUnavailable.
func NewRelay(client LLMClient, opts Options) *Relay {
	if opts.ReportModel == "" {
		opts.ReportModel = DefaultReportModel
	}
	if opts.ChatModel == "" {
		opts.ChatModel = DefaultChatModel
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = utils.DefaultRetryConfig()
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = IsRetryable
	}

	breaker := opts.Breaker
	if breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.IsFailure = func(err error) bool {
			return IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
		}
		breaker = resilience.NewCircuitBreaker("openai", cfg)
	}

	return &Relay{
		client:  client,
		opts:    opts,
		breaker: breaker,
		logger:  opts.Logger.With().Str("component", "insights").Logger(),
	}
}

// Breaker exposes the relay's circuit breaker for health reporting.
func (r *Relay) Breaker() *resilience.CircuitBreaker {
	return r.breaker
}

// Available reports whether a model client is configured.
func (r *Relay) Available() bool {
	return r.client != nil
}

// Window returns the number of trades sent for a report.
func (r *Relay) Window() int {
	return r.opts.Window
}

// Insights asks the model for a report over the most recent trades. ask is
// an optional free-text question. Metrics the model omits are computed
// locally from the same window.
func (r *Relay) Insights(ctx context.Context, trades []models.Trade, ask string) (*Report, error) {
	window := recentTrades(trades, r.opts.Window)

	payload, err := json.Marshal(newReportPayload(window, ask))
	if err != nil {
		return nil, apperrors.NewInsightError(r.opts.ReportModel, "encode", err)
	}

	content, err := r.complete(ctx, "insights", CompletionRequest{
		Model: r.opts.ReportModel,
		Messages: []Message{
			{Role: RoleSystem, Content: reportSystemPrompt},
			{Role: RoleUser, Content: string(payload)},
		},
		Temperature: reportTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	report, err := decodeReport(content, window)
	if err != nil {
		return nil, apperrors.NewInsightError(r.opts.ReportModel, "decode", err)
	}

	r.logger.Info().
		Int("window", len(window)).
		Bool("ask", ask != "").
		Msg("Insight report generated")
	return report, nil
}

// Chat continues a coaching conversation. The journal digest of trades is
// prepended as system context; history must end with a user turn.
func (r *Relay) Chat(ctx context.Context, trades []models.Trade, history []Message) (string, error) {
	turns, err := sanitizeHistory(history)
	if err != nil {
		return "", err
	}

	messages := make([]Message, 0, len(turns)+2)
	messages = append(messages,
		Message{Role: RoleSystem, Content: chatSystemPrompt},
		Message{Role: RoleSystem, Content: journalDigest(sortedByDate(trades))},
	)
	messages = append(messages, turns...)

	reply, err := r.complete(ctx, "chat", CompletionRequest{
		Model:       r.opts.ChatModel,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "No response."
	}
	return reply, nil
}

// complete runs one completion through the circuit breaker with retries.
func (r *Relay) complete(ctx context.Context, op string, req CompletionRequest) (string, error) {
	if r.client == nil {
		return "", apperrors.ErrInsightsUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	content, err := resilience.ExecuteWithResult(r.breaker, ctx, func(ctx context.Context) (string, error) {
		return utils.RetryWithResult(ctx, r.opts.Retry, func() (string, error) {
			return r.client.Complete(ctx, req)
		})
	})
	if err != nil {
		r.logger.Warn().
			Str("op", op).
			Str("model", req.Model).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("Completion failed")
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyConcurrent) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			err = apperrors.ErrTimeout
		}
		return "", apperrors.NewInsightError(req.Model, op, err)
	}

	logging.LogAPICall(r.logger, op, req.Model, time.Since(start), nil)
	return content, nil
}

// sortedByDate returns a date-ordered copy of trades; same-day trades keep
// their relative order.
func sortedByDate(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// recentTrades returns the last n trades by date.
func recentTrades(trades []models.Trade, n int) []models.Trade {
	sorted := sortedByDate(trades)
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// sanitizeHistory keeps the user and assistant turns of a client-supplied
// conversation. Client system turns are dropped.
func sanitizeHistory(history []Message) ([]Message, error) {
	turns := make([]Message, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case RoleUser, RoleAssistant:
			turns = append(turns, Message{Role: m.Role, Content: content})
		}
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return nil, apperrors.NewValidationError("messages", len(history), "conversation must end with a user message")
	}
	if len(turns) > maxChatTurns {
		turns = turns[len(turns)-maxChatTurns:]
	}
	return turns, nil
}

// decodeReport parses the model's JSON and fills missing metrics from window.
func decodeReport(content string, window []models.Trade) (*Report, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		content = "{}"
	}

	var raw rawReport
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}

	s := analytics.Summarize(window)
	m := raw.Metrics
	if m == nil {
		m = &rawMetrics{}
	}

	report := &Report{
		Summary:         raw.Summary,
		Strengths:       nonNil(raw.Strengths),
		Weaknesses:      nonNil(raw.Weaknesses),
		Recommendations: nonNil(raw.Recommendations),
		NextActions:     nonNil(raw.NextActions),
		Metrics: Metrics{
			WindowSize:    int(orDefault(m.WindowSize, float64(len(window)))),
			Wins:          int(orDefault(m.Wins, float64(s.WinCount))),
			Losses:        int(orDefault(m.Losses, float64(s.LossCount))),
			WinRate:       orDefault(m.WinRate, s.WinRate),
			AvgPnL:        orDefault(m.AvgPnL, s.AvgPnL),
			TotalPnL:      orDefault(m.TotalPnL, s.TotalPnL),
			BestTickerPnL: orDefault(m.BestTickerPnL, s.BestTickerPnL),
		},
	}

	switch {
	case m.BestTicker != nil && *m.BestTicker != "":
		report.Metrics.BestTicker = m.BestTicker
	case s.BestTicker != nil:
		report.Metrics.BestTicker = s.BestTicker
	}
	return report, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return analytics.ToFiniteNumber(*v, def)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
