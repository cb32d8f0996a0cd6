package security

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"tradestein/internal/logging"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Authentication events
	AuditRegister       AuditEventType = "REGISTER"
	AuditTokenIssued    AuditEventType = "TOKEN_ISSUED"
	AuditTokenRevoked   AuditEventType = "TOKEN_REVOKED"
	AuditAuthFailed     AuditEventType = "AUTH_FAILED"
	AuditSessionExpired AuditEventType = "SESSION_EXPIRED"

	// Entitlement events
	AuditSubscriptionChanged AuditEventType = "SUBSCRIPTION_CHANGED"
	AuditEntitlementDenied   AuditEventType = "ENTITLEMENT_DENIED"

	// Journal events
	AuditTradeCreated   AuditEventType = "TRADE_CREATED"
	AuditTradeUpdated   AuditEventType = "TRADE_UPDATED"
	AuditTradeDeleted   AuditEventType = "TRADE_DELETED"
	AuditTradesImported AuditEventType = "TRADES_IMPORTED"
	AuditTradesExported AuditEventType = "TRADES_EXPORTED"

	// AI events
	AuditInsightRequest AuditEventType = "AI_INSIGHT_REQUEST"

	// Security events
	AuditInputValidation AuditEventType = "INPUT_VALIDATION"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	UserID    string                 `json:"user_id,omitempty"`
	EntityID  string                 `json:"entity_id,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// AuditLogger appends audit events as JSON lines. A nil *AuditLogger
// discards events.
type AuditLogger struct {
	writer    io.WriteCloser
	mu        sync.Mutex
	sessionID string
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "tradestein", "audit"),
		MaxSize:    50,
		MaxBackups: 30,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewAuditLogger creates an audit logger writing to a rotated file.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	// Ensure audit directory exists with restricted permissions
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return NewAuditLoggerWithWriter(writer), nil
}

// NewAuditLoggerWithWriter creates an audit logger writing to w.
func NewAuditLoggerWithWriter(w io.WriteCloser) *AuditLogger {
	return &AuditLogger{
		writer:    w,
		sessionID: generateSessionID(),
	}
}

// Log logs an audit event.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if al == nil {
		return nil
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = time.Now().UTC()
	event.SessionID = al.sessionID
	if reqID, ok := ctx.Value(logging.RequestIDKey).(string); ok {
		event.RequestID = reqID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}

	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}

	return nil
}

// LogAuth logs a registration, token or authentication event.
func (al *AuditLogger) LogAuth(ctx context.Context, eventType AuditEventType, userID string, success bool, errorMsg string) error {
	return al.Log(ctx, AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		ErrorMsg:  errorMsg,
	})
}

// LogTrade logs a trade mutation.
func (al *AuditLogger) LogTrade(ctx context.Context, eventType AuditEventType, userID, tradeID, ticker string) error {
	return al.Log(ctx, AuditEvent{
		EventType: eventType,
		UserID:    userID,
		EntityID:  tradeID,
		Success:   true,
		Details: map[string]interface{}{
			"ticker": ticker,
		},
	})
}

// LogBackup logs a CSV import or export.
func (al *AuditLogger) LogBackup(ctx context.Context, eventType AuditEventType, userID string, rows int, err error) error {
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Success:   err == nil,
		Details: map[string]interface{}{
			"rows": rows,
		},
	}
	if err != nil {
		event.ErrorMsg = err.Error()
	}
	return al.Log(ctx, event)
}

// LogSubscription logs a subscription status change.
func (al *AuditLogger) LogSubscription(ctx context.Context, userID, status string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditSubscriptionChanged,
		UserID:    userID,
		Action:    status,
		Success:   true,
	})
}

// LogInsightRequest logs a call to the insight relay.
func (al *AuditLogger) LogInsightRequest(ctx context.Context, userID, kind string, trades int, err error) error {
	event := AuditEvent{
		EventType: AuditInsightRequest,
		UserID:    userID,
		Action:    kind,
		Success:   err == nil,
		Details: map[string]interface{}{
			"trades": trades,
		},
	}
	if err != nil {
		event.ErrorMsg = MaskSensitive(err.Error())
	}
	return al.Log(ctx, event)
}

// LogInputValidation logs an input validation failure.
func (al *AuditLogger) LogInputValidation(ctx context.Context, userID, field, value, reason string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditInputValidation,
		UserID:    userID,
		Success:   false,
		ErrorMsg:  reason,
		Details: map[string]interface{}{
			"field": field,
			"value": MaskSensitive(value),
		},
	})
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	return al.writer.Close()
}

// generateSessionID generates a unique session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
