package cli

import (
	"github.com/spf13/cobra"

	"tradestein/internal/backup"
	"tradestein/internal/notify"
	"tradestein/internal/resilience"
	"tradestein/internal/scheduler"
	"tradestein/internal/server"
	"tradestein/internal/stream"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the journal API with realtime change events over WebSocket,
AI insights and scheduled housekeeping (session purge, nightly digest).

Stops gracefully on SIGINT or SIGTERM.`,
		Example: `  tradestein serve
  tradestein serve --addr 0.0.0.0:8080`,
		Annotations: map[string]string{consoleLogAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := app.Config
			if err := cfg.ValidateForServe(); err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			authSvc, err := app.Auth()
			if err != nil {
				return err
			}

			hub := stream.NewHub()
			hub.Start(ctx)
			defer hub.Stop()
			st.SetNotifier(hub)

			relay := app.Relay()
			if !cfg.HasOpenAI() {
				app.Logger.Warn().Msg("OPENAI_API_KEY not set; AI endpoints will return 503")
			}

			health := resilience.NewHealthChecker()
			health.Register("database", resilience.DatabaseHealthCheck(st.Ping))
			health.Register("openai", resilience.CircuitHealthCheck(relay.Breaker()))

			srv := server.New(server.Deps{
				Store:     st,
				Auth:      authSvc,
				Hub:       hub,
				Relay:     relay,
				Backup:    backup.NewService(st, app.Validator, cfg.Store.ImportBatchSize, app.Logger),
				Health:    health,
				Audit:     app.Audit(),
				Validator: app.Validator,
				Logger:    app.Logger,
			}, server.Options{
				AIRate:       cfg.Server.AIRatePerMinute / 60,
				AIBurst:      cfg.Server.AIBurst,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
			})

			if cfg.Scheduler.Enabled {
				sched := scheduler.New(ctx, authSvc, st, srv, app.Logger)
				notifier := notify.NewMultiNotifier(app.Logger,
					notify.NewWebhookNotifier(cfg.Notify.WebhookURL),
					notify.NewTelegramNotifier(cfg.Credentials.Telegram.BotToken, cfg.Notify.TelegramChatID),
				)
				if notifier.Enabled() {
					sched.SetDigestSink(notifier)
				}
				if err := sched.RegisterAll(scheduler.Schedules{
					PurgeSessions: cfg.Scheduler.PurgeSessions,
					Digest:        cfg.Scheduler.Digest,
					PruneLimiters: cfg.Scheduler.PruneLimiters,
				}); err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = cfg.Server.Addr()
			}
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	return cmd
}
