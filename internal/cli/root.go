// Package cli provides the command-line interface for the trading journal.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradestein/internal/auth"
	"tradestein/internal/config"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/logging"
	"tradestein/internal/security"
	"tradestein/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
)

// consoleLogAnnotation marks commands whose logs go to the console.
const consoleLogAnnotation = "console-log"

// commandTimeout bounds a single non-serve command.
const commandTimeout = 2 * time.Minute

// App holds the application dependencies. The store and services are
// opened on first use so commands like version stay cheap.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Validator *security.InputValidator

	store *store.SQLiteStore
	audit *security.AuditLogger
	auth  *auth.Service
}

// Execute runs the CLI with ctx and releases opened resources afterwards.
func Execute(ctx context.Context, args []string) error {
	app := &App{Logger: zerolog.Nop()}
	defer app.Close()

	rootCmd := NewRootCmd(app)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tradestein",
		Short: "Tradestein - trading journal and performance analytics",
		Long: `Tradestein records trades with their reflections and turns the journal
into performance analytics: P&L summaries, session and weekday breakdowns,
equity curves, streaks, calendars and AI coaching.

Run 'tradestein serve' to expose the HTTP API, or use the commands below
against the local database. Most commands act on the profile given by
--user (id or email) or TRADESTEIN_USER.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradestein)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("user", "", "profile id or email to act as (default: $TRADESTEIN_USER)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newUserCmd(app))
	rootCmd.AddCommand(newTradeCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
	rootCmd.AddCommand(newGoalCmd(app))
	rootCmd.AddCommand(newNoteCmd(app))
	rootCmd.AddCommand(newBackupCmd(app))
	rootCmd.AddCommand(newInsightsCmd(app))

	return rootCmd
}

// init loads configuration and builds the logger for cmd.
func (a *App) init(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	a.Config = cfg

	debug, _ := cmd.Flags().GetBool("debug")
	lc := logConfig(cfg)
	lc.Console = lc.Console && (debug || cmd.Annotations[consoleLogAnnotation] == "true")
	a.Logger = logging.New(lc)
	if debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	a.Validator = security.NewInputValidator(cfg.Security.StrictValidation)
	return nil
}

func logConfig(cfg *config.Config) logging.LogConfig {
	return logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		NoColor:    color.NoColor,
	}
}

// Store opens the SQLite store on first use.
func (a *App) Store() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Config.Store.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	a.store = st
	return st, nil
}

// Audit opens the audit trail when enabled. A nil logger discards events.
func (a *App) Audit() *security.AuditLogger {
	if a.audit != nil || !a.Config.Security.AuditEnabled {
		return a.audit
	}
	cfg := security.DefaultAuditConfig()
	cfg.LogDir = filepath.Join(a.Config.Dir, "audit")
	audit, err := security.NewAuditLogger(cfg)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Audit trail unavailable")
		return nil
	}
	a.audit = audit
	return audit
}

// Auth builds the auth service over the store.
func (a *App) Auth() (*auth.Service, error) {
	if a.auth != nil {
		return a.auth, nil
	}
	// Tokens hashed with a missing or short salt would not survive a restart.
	if err := a.Config.ValidateForServe(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	hasher := security.NewTokenHasher(a.Config.Credentials.TokenSalt, a.Config.Security.PBKDF2Iterations)
	a.auth = auth.NewService(st, hasher, auth.Options{
		SessionTTL: a.Config.Security.SessionTTL,
		Audit:      a.Audit(),
		Logger:     a.Logger,
		Validator:  a.Validator,
	})
	return a.auth, nil
}

// UserID resolves --user (or TRADESTEIN_USER) to a profile id. Values
// containing "@" are looked up by email.
func (a *App) UserID(ctx context.Context, cmd *cobra.Command) (string, error) {
	ref, _ := cmd.Flags().GetString("user")
	if ref == "" {
		ref = os.Getenv("TRADESTEIN_USER")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", apperrors.NewValidationError("user", "", "no profile selected; pass --user or set TRADESTEIN_USER")
	}

	st, err := a.Store()
	if err != nil {
		return "", err
	}
	if strings.Contains(ref, "@") {
		p, err := st.GetProfileByEmail(ctx, ref)
		if err != nil {
			return "", err
		}
		return p.ID, nil
	}
	p, err := st.GetProfile(ctx, ref)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// Close releases the store and audit log.
func (a *App) Close() error {
	var firstErr error
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			firstErr = err
		}
		a.audit = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.store = nil
	}
	return firstErr
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, commandTimeout)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Tradestein v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redactedConfig(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.Config.Dir)
			if output.IsJSON() {
				output.JSON(map[string]string{"dir": app.Config.Dir, "path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if err := app.Config.ValidateForServe(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"valid": true, "openai": app.Config.HasOpenAI()})
			}
			output.Success("✓ Configuration is valid")
			if !app.Config.HasOpenAI() {
				output.Warning("No OpenAI API key configured; AI insights are disabled")
			}
			return nil
		},
	})

	return cmd
}

// redactedConfig returns a copy with secrets masked.
func redactedConfig(cfg *config.Config) config.Config {
	c := *cfg
	c.Credentials.OpenAI.APIKey = security.MaskCredential(c.Credentials.OpenAI.APIKey)
	c.Credentials.TokenSalt = security.MaskCredential(c.Credentials.TokenSalt)
	c.Credentials.Telegram.BotToken = security.MaskCredential(c.Credentials.Telegram.BotToken)
	return c
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr())
	output.Printf("  AI rate:         %.1f/min (burst %d)\n", cfg.Server.AIRatePerMinute, cfg.Server.AIBurst)
	output.Println()

	output.Bold("Store")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Printf("  Import batch:    %d\n", cfg.Store.ImportBatchSize)
	output.Println()

	output.Bold("AI")
	output.Printf("  Report model:    %s\n", cfg.AI.ReportModel)
	output.Printf("  Chat model:      %s\n", cfg.AI.ChatModel)
	output.Printf("  Window:          %d trades\n", cfg.AI.Window)
	output.Printf("  Timeout:         %s\n", cfg.AI.Timeout)
	output.Printf("  API key:         %s\n", security.MaskCredential(cfg.Credentials.OpenAI.APIKey))
	output.Println()

	output.Bold("Security")
	output.Printf("  Session TTL:     %s\n", FormatDuration(cfg.Security.SessionTTL))
	output.Printf("  Audit trail:     %v\n", cfg.Security.AuditEnabled)
	output.Printf("  Strict input:    %v\n", cfg.Security.StrictValidation)
	output.Println()

	output.Bold("Scheduler")
	output.Printf("  Enabled:         %v\n", cfg.Scheduler.Enabled)
	output.Printf("  Purge sessions:  %s\n", orDash(cfg.Scheduler.PurgeSessions))
	output.Printf("  Digest:          %s\n", orDash(cfg.Scheduler.Digest))
	output.Printf("  Prune limiters:  %s\n", orDash(cfg.Scheduler.PruneLimiters))
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Webhook:         %s\n", orDash(security.MaskSensitive(cfg.Notify.WebhookURL)))
	output.Printf("  Telegram:        %v\n", cfg.Credentials.Telegram.BotToken != "" && cfg.Notify.TelegramChatID != "")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
