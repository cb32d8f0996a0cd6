// Package config provides configuration management for the journal server
// and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Store       StoreConfig     `mapstructure:"store"`
	AI          AIConfig        `mapstructure:"ai"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Security    SecurityConfig  `mapstructure:"security"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Notify      NotifyConfig    `mapstructure:"notifications"`
	Credentials Credentials     `mapstructure:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Host            string  `mapstructure:"host"`
	Port            int     `mapstructure:"port"`
	AIRatePerMinute float64 `mapstructure:"ai_rate_per_minute"`
	AIBurst         int     `mapstructure:"ai_burst"`
	MaxBodyBytes    int64   `mapstructure:"max_body_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path            string `mapstructure:"path"`
	ImportBatchSize int    `mapstructure:"import_batch_size"`
}

// AIConfig holds insight relay configuration.
type AIConfig struct {
	ReportModel string        `mapstructure:"report_model"`
	ChatModel   string        `mapstructure:"chat_model"`
	Window      int           `mapstructure:"window"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseURL     string        `mapstructure:"base_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	PBKDF2Iterations int           `mapstructure:"pbkdf2_iterations"`
	AuditEnabled     bool          `mapstructure:"audit_enabled"`
	StrictValidation bool          `mapstructure:"strict_validation"`
}

// SchedulerConfig holds six-field cron specs for housekeeping jobs. An empty
// spec disables the job.
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	PurgeSessions string `mapstructure:"purge_sessions"`
	Digest        string `mapstructure:"digest"`
	PruneLimiters string `mapstructure:"prune_limiters"`
}

// NotifyConfig selects where nightly digests are delivered.
type NotifyConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
}

// Credentials holds secrets kept out of config.toml.
type Credentials struct {
	OpenAI    OpenAICredentials   `mapstructure:"openai"`
	Telegram  TelegramCredentials `mapstructure:"telegram"`
	TokenSalt string              `mapstructure:"token_salt"`
}

// TelegramCredentials holds the digest bot token.
type TelegramCredentials struct {
	BotToken string `mapstructure:"bot_token"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/tradestein"
	}
	return filepath.Join(home, ".config", "tradestein")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and defaults apply. A .env file in configDir is
// loaded first; variables already set in the environment win.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	cfg := &Config{Dir: configDir}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(configDir string) {
	path := filepath.Join(configDir, ".env")
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.ai_rate_per_minute", 12.0)
	v.SetDefault("server.ai_burst", 5)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("store.path", filepath.Join(configDir, "journal.db"))
	v.SetDefault("store.import_batch_size", 200)

	v.SetDefault("ai.report_model", "gpt-4o-mini")
	v.SetDefault("ai.chat_model", "gpt-4o")
	v.SetDefault("ai.window", 50)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.base_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "tradestein.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("security.session_ttl", "720h")
	v.SetDefault("security.pbkdf2_iterations", 10000)
	v.SetDefault("security.audit_enabled", true)
	v.SetDefault("security.strict_validation", false)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.purge_sessions", "0 0 * * * *")
	v.SetDefault("scheduler.digest", "0 0 22 * * *")
	v.SetDefault("scheduler.prune_limiters", "0 */10 * * * *")

	v.SetDefault("notifications.webhook_url", "")
	v.SetDefault("notifications.telegram_chat_id", "")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// Config file not found: write the template and read it back.
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading generated config: %w", err)
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		if err := createTemplateCredentials(configDir); err != nil {
			return err
		}
		// The generated salt must be used from the first run on.
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading generated credentials: %w", err)
		}
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) error {
	// OpenAI credentials
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Credentials.Telegram.BotToken = v
	}

	if v := os.Getenv("TRADESTEIN_TOKEN_SALT"); v != "" {
		cfg.Credentials.TokenSalt = v
	}

	if v := os.Getenv("TRADESTEIN_DB"); v != "" {
		cfg.Store.Path = v
	}

	// PORT is honoured for hosting platforms that set it.
	for _, key := range []string{"PORT", "TRADESTEIN_PORT"} {
		if v := os.Getenv(key); v != "" {
			port, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			cfg.Server.Port = port
		}
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.AIRatePerMinute <= 0 {
		return fmt.Errorf("server.ai_rate_per_minute must be positive")
	}
	if c.Server.AIBurst < 1 {
		return fmt.Errorf("server.ai_burst must be at least 1")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.AI.Window < 1 {
		return fmt.Errorf("ai.window must be at least 1")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	if c.AI.MaxRetries < 1 {
		return fmt.Errorf("ai.max_retries must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn or error)", c.Logging.Level)
	}
	if c.Security.SessionTTL < time.Minute {
		return fmt.Errorf("security.session_ttl must be at least 1m")
	}
	if c.Security.PBKDF2Iterations < 1000 {
		return fmt.Errorf("security.pbkdf2_iterations must be at least 1000")
	}
	if u := c.Notify.WebhookURL; u != "" && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		return fmt.Errorf("notifications.webhook_url must be an http(s) URL")
	}
	return nil
}

// ValidateForServe checks the settings that only the server needs.
func (c *Config) ValidateForServe() error {
	if len(c.Credentials.TokenSalt) < 16 {
		return fmt.Errorf("token salt must be at least 16 characters (set token_salt in credentials.toml or TRADESTEIN_TOKEN_SALT)")
	}
	return nil
}

// HasOpenAI reports whether an OpenAI key is configured.
func (c *Config) HasOpenAI() bool {
	return c.Credentials.OpenAI.APIKey != ""
}
