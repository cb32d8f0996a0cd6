package security

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// secretKeys are field names whose whole value is a credential.
var secretKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"token_salt":    true,
	"api_key":       true,
	"bot_token":     true,
	"password":      true,
}

type redaction struct {
	re      *regexp.Regexp
	replace func(groups []string) string
}

// redactions rewrite credentials embedded in free text: query strings,
// bearer headers, OpenAI keys, Telegram bot URLs and email addresses.
var redactions = []redaction{
	{
		re: regexp.MustCompile(`(?i)\b(token|api_key|key|access_token)=([^&\s"']+)`),
		replace: func(g []string) string {
			return g[1] + "=" + MaskCredential(g[2])
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(bearer)\s+([A-Za-z0-9._~+/=-]+)`),
		replace: func(g []string) string {
			return g[1] + " " + MaskCredential(g[2])
		},
	},
	{
		re: regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}`),
		replace: func(g []string) string {
			return MaskCredential(g[0])
		},
	},
	{
		re: regexp.MustCompile(`/bot(\d+):([A-Za-z0-9_-]+)`),
		replace: func(g []string) string {
			return "/bot" + g[1] + ":" + MaskCredential(g[2])
		},
	},
	{
		re: regexp.MustCompile(`\b([A-Za-z0-9._%+-])[A-Za-z0-9._%+-]*@([A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`),
		replace: func(g []string) string {
			return g[1] + "***@" + g[2]
		},
	},
}

// Redact masks credentials and email local parts found in s.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			return r.replace(r.re.FindStringSubmatch(match))
		})
	}
	return s
}

// SafeLogger is a zerolog front that redacts every string it is handed.
// Request and error logs in the HTTP layer go through it.
type SafeLogger struct {
	logger zerolog.Logger
}

// NewSafeLogger wraps logger.
func NewSafeLogger(logger zerolog.Logger) *SafeLogger {
	return &SafeLogger{logger: logger}
}

func (sl *SafeLogger) Debug() *SafeEvent { return sl.at(zerolog.DebugLevel) }
func (sl *SafeLogger) Info() *SafeEvent  { return sl.at(zerolog.InfoLevel) }
func (sl *SafeLogger) Warn() *SafeEvent  { return sl.at(zerolog.WarnLevel) }
func (sl *SafeLogger) Error() *SafeEvent { return sl.at(zerolog.ErrorLevel) }

func (sl *SafeLogger) at(level zerolog.Level) *SafeEvent {
	return &SafeEvent{event: sl.logger.WithLevel(level)}
}

// SafeEvent is a zerolog event that redacts string payloads. A nil inner
// event (level disabled) is handled by zerolog itself.
type SafeEvent struct {
	event *zerolog.Event
}

func (se *SafeEvent) Str(key, val string) *SafeEvent {
	if secretKeys[strings.ToLower(key)] {
		val = MaskCredential(strings.TrimPrefix(strings.TrimPrefix(val, "Bearer "), "bearer "))
	} else {
		val = Redact(val)
	}
	se.event = se.event.Str(key, val)
	return se
}

func (se *SafeEvent) Int(key string, val int) *SafeEvent {
	se.event = se.event.Int(key, val)
	return se
}

func (se *SafeEvent) Dur(key string, val time.Duration) *SafeEvent {
	se.event = se.event.Dur(key, val)
	return se
}

func (se *SafeEvent) Err(err error) *SafeEvent {
	if err != nil {
		se.event = se.event.Err(errors.New(Redact(err.Error())))
	}
	return se
}

func (se *SafeEvent) Msg(msg string) {
	se.event.Msg(Redact(msg))
}
