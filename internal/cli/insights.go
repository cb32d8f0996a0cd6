package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"tradestein/internal/insights"
	"tradestein/internal/store"
	"tradestein/pkg/utils"
)

// Relay builds the insight relay. Without an API key the relay reports
// ErrInsightsUnavailable on every call.
func (a *App) Relay() *insights.Relay {
	var client insights.LLMClient
	if a.Config.HasOpenAI() {
		client = insights.NewOpenAIClient(a.Config.Credentials.OpenAI.APIKey, a.Config.AI.BaseURL)
		a.Logger.Debug().Str("model", a.Config.AI.ReportModel).Msg("OpenAI client initialized")
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = a.Config.AI.MaxRetries
	return insights.NewRelay(client, insights.Options{
		ReportModel: a.Config.AI.ReportModel,
		ChatModel:   a.Config.AI.ChatModel,
		Window:      a.Config.AI.Window,
		Timeout:     a.Config.AI.Timeout,
		Retry:       retry,
		Logger:      a.Logger,
	})
}

func newInsightsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Generate an AI performance report",
		Long: `Send the most recent trades to the AI coach and print a structured
report: summary, metrics, strengths, weaknesses, recommendations and next
actions. Requires an active subscription and an OpenAI API key.`,
		Example: `  tradestein insights
  tradestein insights --ask "Why do I keep losing on Mondays?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			authSvc, err := app.Auth()
			if err != nil {
				return err
			}
			if err := authSvc.RequireActive(ctx, userID); err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			trades, err := st.ListTrades(ctx, userID, store.TradeFilter{})
			if err != nil {
				return err
			}

			ask, _ := cmd.Flags().GetString("ask")
			relay := app.Relay()
			if !output.IsJSON() {
				output.Dim("Analyzing %d trades...", min(len(trades), relay.Window()))
			}
			report, err := relay.Insights(ctx, trades, ask)
			app.Audit().LogInsightRequest(ctx, userID, "insights", min(len(trades), relay.Window()), err)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			renderReport(output, report)
			return nil
		},
	}

	cmd.Flags().String("ask", "", "question for the coach to focus on")
	return cmd
}

func renderReport(output *Output, r *insights.Report) {
	output.Println()
	output.Bold("AI Insights")
	if r.Summary != "" {
		output.Println(r.Summary)
	}
	output.Println()

	m := r.Metrics
	output.Bold("Metrics")
	output.Printf("  Trades:      %d (%d W / %d L)\n", m.WindowSize, m.Wins, m.Losses)
	output.Printf("  Total P&L:   %s\n", pnlCell(output, m.TotalPnL))
	output.Printf("  Avg P&L:     %s\n", pnlCell(output, m.AvgPnL))
	output.Printf("  Win rate:    %s\n", utils.FormatRate(m.WinRate))
	if m.BestTicker != nil && *m.BestTicker != "" {
		output.Printf("  Best ticker: %s\n", *m.BestTicker)
	}

	sections := []struct {
		title string
		items []string
	}{
		{"Strengths", r.Strengths},
		{"Weaknesses", r.Weaknesses},
		{"Recommendations", r.Recommendations},
		{"Next actions", r.NextActions},
	}
	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		output.Println()
		output.Bold(sec.title)
		for _, item := range sec.items {
			output.Printf("  • %s\n", strings.TrimSpace(item))
		}
	}
}
