package security

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

// Validation patterns
var (
	// API key patterns for detection (not validation)
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret|secret[_-]?key|access[_-]?token|auth[_-]?token|bearer)[=:\s]+["']?([A-Za-z0-9_\-\.]{20,})["']?`),
		regexp.MustCompile(`(?i)(sk-[A-Za-z0-9_-]{20,})`), // OpenAI keys
		regexp.MustCompile(`(?i)([A-Za-z0-9]{32,})`),      // Generic long tokens
	}

	// SQL injection patterns
	sqlInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|select\s+\*|drop\s+table|insert\s+into|delete\s+from)`),
		regexp.MustCompile(`(?i)(or\s+1\s*=\s*1|and\s+1\s*=\s*1)`),
	}

	// Script injection patterns, relevant for text rendered by a web client
	scriptInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)javascript:`),
	}
)

// Field limits
const (
	MaxTextLength  = 5000
	MaxTitleLength = 200
	MaxURLLength   = 2048
	// MaxTickerLength is counted in runes.
	MaxTickerLength   = 64
	MaxNoteLength     = 20000
	MaxUsernameLength = 50
)

// InputValidator validates journal input before it is stored.
type InputValidator struct {
	strictMode bool
}

// NewInputValidator creates a new input validator. Strict mode also rejects
// free text that looks like an injection attempt.
func NewInputValidator(strictMode bool) *InputValidator {
	return &InputValidator{strictMode: strictMode}
}

// ValidateTicker validates a normalised ticker. Tickers are free text such
// as "S&P 500" or "ÖMX30"; only blank, control characters, lower case and
// excessive length are rejected.
func (v *InputValidator) ValidateTicker(ticker string) error {
	if strings.TrimSpace(ticker) == "" {
		return apperrors.NewValidationError("ticker", ticker, "ticker cannot be empty")
	}
	if utf8.RuneCountInString(ticker) > MaxTickerLength {
		return apperrors.NewValidationError("ticker", ticker, fmt.Sprintf("ticker too long (max %d characters)", MaxTickerLength))
	}
	if ticker != strings.ToUpper(strings.TrimSpace(ticker)) {
		return apperrors.NewValidationError("ticker", ticker, "ticker must be trimmed and upper-case")
	}
	for _, r := range ticker {
		if unicode.IsControl(r) {
			return apperrors.NewValidationError("ticker", ticker, "ticker contains control characters")
		}
	}
	return nil
}

// ValidateDate validates a required YYYY-MM-DD date.
func (v *InputValidator) ValidateDate(field, date string) error {
	if date == "" {
		return apperrors.NewValidationError(field, date, "date is required")
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return apperrors.NewValidationError(field, date, "date must be YYYY-MM-DD")
	}
	return nil
}

// ValidateTime validates an optional HH:MM wall-clock time.
func (v *InputValidator) ValidateTime(field, t string) error {
	if t == "" {
		return nil
	}
	if _, err := time.Parse(models.TimeLayout, t); err != nil {
		return apperrors.NewValidationError(field, t, "time must be HH:MM")
	}
	return nil
}

// ValidateText validates free-form text input.
func (v *InputValidator) ValidateText(field, text string, maxLen int) error {
	if len(text) > maxLen {
		return apperrors.NewValidationError(field, preview(text), fmt.Sprintf("text too long (max %d characters)", maxLen))
	}

	if v.strictMode && v.containsInjection(text) {
		return apperrors.NewValidationError(field, MaskSensitive(text), "potentially dangerous content detected")
	}

	return nil
}

func preview(text string) string {
	if len(text) <= 50 {
		return text
	}
	return text[:50] + "..."
}

// ValidateEmail validates an email address.
func (v *InputValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperrors.NewValidationError("email", email, "invalid email address")
	}
	return nil
}

// ValidateTrade checks a normalised trade.
func (v *InputValidator) ValidateTrade(t models.Trade) error {
	if err := v.ValidateDate("date", t.Date); err != nil {
		return err
	}
	if err := v.ValidateTicker(t.Ticker); err != nil {
		return err
	}
	if err := v.ValidateTime("entry_time", t.EntryTime); err != nil {
		return err
	}
	if err := v.ValidateTime("exit_time", t.ExitTime); err != nil {
		return err
	}

	texts := map[string]string{
		"confluences":     t.Confluences,
		"done_right":      t.DoneRight,
		"done_wrong":      t.DoneWrong,
		"what_to_improve": t.WhatToImprove,
		"emotions":        t.Emotions,
	}
	for _, field := range []string{"confluences", "done_right", "done_wrong", "what_to_improve", "emotions"} {
		if err := v.ValidateText(field, texts[field], MaxTextLength); err != nil {
			return err
		}
	}

	if len(t.EntryChart) > MaxURLLength {
		return apperrors.NewValidationError("entry_chart", "", "chart reference too long")
	}
	if len(t.HTFChart) > MaxURLLength {
		return apperrors.NewValidationError("htf_chart", "", "chart reference too long")
	}
	return nil
}

// ValidateGoal checks a goal before it is created.
func (v *InputValidator) ValidateGoal(g models.Goal) error {
	if strings.TrimSpace(g.Title) == "" {
		return apperrors.NewValidationError("title", g.Title, "title is required")
	}
	if err := v.ValidateText("title", g.Title, MaxTitleLength); err != nil {
		return err
	}
	if err := v.ValidateText("description", g.Description, MaxTextLength); err != nil {
		return err
	}
	if g.Deadline != "" {
		return v.ValidateDate("deadline", g.Deadline)
	}
	return nil
}

// ValidateNote checks a replay note. A note needs a title or some content.
func (v *InputValidator) ValidateNote(n models.Note) error {
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Content) == "" {
		return apperrors.NewValidationError("content", "", "note needs a title or content")
	}
	if err := v.ValidateText("title", n.Title, MaxTitleLength); err != nil {
		return err
	}
	return v.ValidateText("content", n.Content, MaxNoteLength)
}

// ValidateProfileUpdate checks the fields present in u.
func (v *InputValidator) ValidateProfileUpdate(u models.ProfileUpdate) error {
	if u.Empty() {
		return apperrors.NewValidationError("profile", "", "nothing to update")
	}
	if u.Username != nil {
		name := strings.TrimSpace(*u.Username)
		if utf8.RuneCountInString(name) > MaxUsernameLength {
			return apperrors.NewValidationError("username", name, fmt.Sprintf("username too long (max %d characters)", MaxUsernameLength))
		}
		if err := v.ValidateText("username", name, MaxTitleLength); err != nil {
			return err
		}
	}
	if u.Bio != nil {
		if err := v.ValidateText("bio", *u.Bio, MaxTextLength); err != nil {
			return err
		}
	}
	if u.AvatarURL != nil && strings.TrimSpace(*u.AvatarURL) != "" {
		return v.validateAvatar(strings.TrimSpace(*u.AvatarURL))
	}
	return nil
}

func (v *InputValidator) validateAvatar(raw string) error {
	if len(raw) > MaxURLLength {
		return apperrors.NewValidationError("avatar_url", "", "avatar url too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.NewValidationError("avatar_url", raw, "avatar url must be an http(s) address")
	}
	return nil
}

// containsInjection checks for SQL or script injection patterns.
func (v *InputValidator) containsInjection(input string) bool {
	for _, pattern := range sqlInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	for _, pattern := range scriptInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// SanitizeText removes control characters except newlines and tabs.
func SanitizeText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// MaskSensitive masks sensitive data in a string.
func MaskSensitive(input string) string {
	result := input

	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if len(match) > 8 {
				return match[:4] + strings.Repeat("*", len(match)-8) + match[len(match)-4:]
			}
			return strings.Repeat("*", len(match))
		})
	}

	return result
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// ContainsSensitiveData checks if a string contains sensitive data patterns.
func ContainsSensitiveData(input string) bool {
	for _, pattern := range apiKeyPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
