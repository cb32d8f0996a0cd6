// Package notify delivers journal notifications to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradestein/internal/scheduler"
	"tradestein/pkg/utils"
)

// Channel is one notification destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType       `json:"type"`
	UserID    string                 `json:"user_id,omitempty"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationDigest NotificationType = "digest"
	NotificationError  NotificationType = "error"
	NotificationInfo   NotificationType = "info"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []Channel
	retry    utils.RetryConfig
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewMultiNotifier creates a notifier fanning out to channels.
func NewMultiNotifier(logger zerolog.Logger, channels ...Channel) *MultiNotifier {
	retry := utils.DefaultRetryConfig()
	retry.InitialDelay = 500 * time.Millisecond
	retry.Retryable = isTransient
	return &MultiNotifier{
		channels: channels,
		retry:    retry,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Enabled reports whether any channel is enabled.
func (mn *MultiNotifier) Enabled() bool {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			return true
		}
	}
	return false
}

// Send sends a notification to all enabled channels, retrying transient
// failures per channel.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		err := utils.Retry(ctx, mn.retry, func() error {
			return ch.Send(ctx, n)
		})
		if err != nil {
			mn.logger.Warn().Err(err).Str("channel", ch.Name()).Str("type", string(n.Type)).Msg("Notification failed")
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendDigest sends a user's end-of-day journal digest.
func (mn *MultiNotifier) SendDigest(ctx context.Context, d scheduler.Digest) error {
	title := fmt.Sprintf("Journal digest - %s", d.Date)

	var sb strings.Builder
	if d.Trades == 0 {
		sb.WriteString("No trades logged today.\n")
	} else {
		sb.WriteString(fmt.Sprintf("Trades: %d\n", d.Trades))
		sb.WriteString(fmt.Sprintf("P&L: %s\n", utils.FormatPnL(d.PnL)))
		sb.WriteString(fmt.Sprintf("Win rate: %s\n", utils.FormatRate(d.WinRate)))
	}
	sb.WriteString(fmt.Sprintf("Journaling streak: %d days", d.ActiveStreak))

	return mn.Send(ctx, Notification{
		Type:    NotificationDigest,
		UserID:  d.UserID,
		Title:   title,
		Message: sb.String(),
		Data: map[string]interface{}{
			"date":          d.Date,
			"trades":        d.Trades,
			"pnl":           d.PnL,
			"win_rate":      d.WinRate,
			"active_streak": d.ActiveStreak,
		},
	})
}

// SendError sends an error notification.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   "Error occurred",
		Message: fmt.Sprintf("Context: %s\nError: %v", errContext, err),
		Data: map[string]interface{}{
			"context": errContext,
			"error":   err.Error(),
		},
	})
}

// statusError is a non-2xx reply from a channel endpoint.
type statusError struct {
	channel string
	code    int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.channel, e.code)
}

// isTransient retries network failures, 429 and 5xx replies.
func isTransient(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func postJSON(ctx context.Context, client *http.Client, channel, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Tradestein/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending %s: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{channel: channel, code: resp.StatusCode}
	}
	return nil
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier. An empty url disables it.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		enabled: url != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send posts the notification as JSON.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}
	return postJSON(ctx, w.client, w.Name(), w.url, n)
}

// TelegramNotifier sends notifications via Telegram bot.
type TelegramNotifier struct {
	baseURL  string
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramNotifier creates a new TelegramNotifier. It is disabled unless
// both botToken and chatID are set.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL:  "https://api.telegram.org",
		botToken: botToken,
		chatID:   chatID,
		enabled:  botToken != "" && chatID != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// Send sends a notification via Telegram.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if !t.enabled {
		return nil
	}

	// HTML parse mode
	text := fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(n.Title), escapeHTML(n.Message))
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	return postJSON(ctx, t.client, t.Name(), url, map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
