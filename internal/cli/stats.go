package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
	"tradestein/internal/store"
	"tradestein/pkg/utils"
)

const barWidth = 24

func newStatsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Performance analytics",
		Long: `Analytics over the journal. Requires an active subscription.

The summary, buckets and equity commands accept --pair, --session and
--weekday filters; "All" or an empty value matches everything.`,
	}

	cmd.PersistentFlags().String("pair", "", "only this ticker")
	cmd.PersistentFlags().String("session", "", "only this session (Morning, Midday, Afternoon/NY, Overnight, Unknown)")
	cmd.PersistentFlags().String("weekday", "", "only this weekday")

	cmd.AddCommand(newStatsSummaryCmd(app))
	cmd.AddCommand(newStatsBucketsCmd(app))
	cmd.AddCommand(newStatsEquityCmd(app))
	cmd.AddCommand(newStatsStreakCmd(app))
	cmd.AddCommand(newStatsCalendarCmd(app))
	return cmd
}

// journal returns the user's whole journal and the filtered view after
// checking the subscription.
func (a *App) journal(cmd *cobra.Command) (all, filtered []models.Trade, err error) {
	ctx := cmd.Context()
	userID, err := a.UserID(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	authSvc, err := a.Auth()
	if err != nil {
		return nil, nil, err
	}
	if err := authSvc.RequireActive(ctx, userID); err != nil {
		return nil, nil, err
	}

	st, err := a.Store()
	if err != nil {
		return nil, nil, err
	}
	all, err = st.ListTrades(ctx, userID, store.TradeFilter{})
	if err != nil {
		return nil, nil, err
	}

	pair, _ := cmd.Flags().GetString("pair")
	session, _ := cmd.Flags().GetString("session")
	weekday, _ := cmd.Flags().GetString("weekday")
	filtered = analytics.Filter(all, analytics.TradeFilter{Pair: pair, Session: session, Weekday: weekday})
	return all, filtered, nil
}

func newStatsSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Totals, win rate, averages and highlights",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			all, trades, err := app.journal(cmd)
			if err != nil {
				return err
			}

			summary := analytics.Summarize(trades)
			highlights := analytics.Highlight(trades)
			today := analytics.Today(time.Now())
			todayPnL, todayCount := analytics.DailyPnL(all, today)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"summary":    summary,
					"highlights": highlights,
					"today":      map[string]interface{}{"date": today, "pnl": todayPnL, "count": todayCount},
				})
			}

			output.Bold("Performance Summary")
			output.Printf("  Total P&L:     %s\n", pnlCell(output, summary.TotalPnL))
			output.Printf("  Trades:        %d (%s W / %s L)\n", summary.TradeCount,
				output.Green(fmt.Sprint(summary.WinCount)), output.Red(fmt.Sprint(summary.LossCount)))
			output.Printf("  Win rate:      %s\n", utils.FormatRate(summary.WinRate))
			output.Printf("  Avg P&L:       %s\n", pnlCell(output, summary.AvgPnL))
			output.Printf("  Avg R:R:       %.2f", summary.AvgRR)
			output.Println(output.DimText(fmt.Sprintf("  (%d of %d trades rated)", summary.RatedCount, summary.TradeCount)))
			if summary.BestTicker != nil {
				output.Printf("  Best ticker:   %s %s\n", *summary.BestTicker, pnlCell(output, summary.BestTickerPnL))
			}
			output.Println()

			output.Bold("Highlights")
			output.Printf("  Weakest ticker: %s\n", orDash(highlights.WeakestTicker))
			output.Printf("  Best weekday:   %s\n", orDash(highlights.BestWeekday))
			output.Printf("  Avg winner:     %s\n", utils.FormatCurrency(highlights.AvgWinSize))
			output.Printf("  Consistency:    %d/100\n", highlights.ConsistencyScore)
			output.Println()

			output.Printf("Today (%s): %s over %d trades\n", today, pnlCell(output, todayPnL), todayCount)
			return nil
		},
	}
}

func newStatsBucketsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "buckets <pair|session|weekday>",
		Short:     "P&L grouped by ticker, session or weekday",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pair", "session", "weekday"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dim, ok := analytics.ParseDimension(args[0])
			if !ok {
				return apperrors.NewValidationError("dimension", args[0], "must be pair, session or weekday")
			}
			_, trades, err := app.journal(cmd)
			if err != nil {
				return err
			}

			buckets := analytics.BucketBy(trades, dim)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"dimension": dim, "buckets": buckets})
			}
			renderBuckets(output, capitalize(string(dim)), buckets)
			return nil
		},
	}
}

func renderBuckets(output *Output, title string, buckets analytics.Buckets) {
	var maxAbs float64
	for _, b := range buckets {
		maxAbs = math.Max(maxAbs, math.Abs(b.PnL))
	}
	table := NewTable(output, title, "Trades", "P&L", "")
	for _, b := range buckets {
		table.AddRow(b.Key, fmt.Sprint(b.Count), pnlCell(output, b.PnL), output.Signed(b.PnL, Bar(b.PnL, maxAbs, barWidth)))
	}
	table.Render()
}

func newStatsEquityCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equity",
		Short: "Cumulative P&L curve",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			_, trades, err := app.journal(cmd)
			if err != nil {
				return err
			}

			daily, _ := cmd.Flags().GetBool("daily")
			curve := analytics.EquityCurve(trades, daily)
			if output.IsJSON() {
				return output.JSON(curve)
			}
			if len(curve) == 0 {
				output.Info("No trades to chart.")
				return nil
			}

			var maxAbs float64
			for _, p := range curve {
				maxAbs = math.Max(maxAbs, math.Abs(p.Cumulative))
			}
			table := NewTable(output, "Date", "P&L", "Equity", "")
			for _, p := range curve {
				table.AddRow(p.Date, pnlCell(output, p.PnL), pnlCell(output, p.Cumulative),
					output.Signed(p.Cumulative, Bar(p.Cumulative, maxAbs, barWidth)))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Bool("daily", false, "one point per day instead of per trade")
	return cmd
}

func newStatsStreakCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Consecutive journaling days",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			all, _, err := app.journal(cmd)
			if err != nil {
				return err
			}

			dates := analytics.DistinctDates(all)
			streak := analytics.CurrentAndMaxStreak(dates)
			active := analytics.ActiveStreak(dates, analytics.Today(time.Now()))
			if output.IsJSON() {
				return output.JSON(map[string]int{"current": streak.Current, "max": streak.Max, "active": active})
			}

			output.Printf("Current streak: %d days\n", streak.Current)
			output.Printf("Longest streak: %d days\n", streak.Max)
			if active == 0 && streak.Current > 0 {
				output.Warning("Streak lapsed: no trades logged today or yesterday")
			} else if active > 0 {
				output.Success("Active streak: %d days", active)
			}
			return nil
		},
	}
}

func newStatsCalendarCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calendar",
		Short:   "Monthly P&L calendar",
		Example: `  tradestein stats calendar --month 2026-09`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			now := time.Now()
			year, month := now.Year(), now.Month()
			if v, _ := cmd.Flags().GetString("month"); v != "" {
				var err error
				if year, month, err = analytics.ParseMonth(v); err != nil {
					return apperrors.NewValidationError("month", v, err.Error())
				}
			}

			all, _, err := app.journal(cmd)
			if err != nil {
				return err
			}
			view := analytics.Calendar(all, year, month)
			if output.IsJSON() {
				return output.JSON(view)
			}
			renderCalendar(output, view)
			return nil
		},
	}
	cmd.Flags().String("month", "", "month YYYY-MM (default: current month)")
	return cmd
}

// renderCalendar prints the month as a Sunday-first grid followed by the
// weekly totals.
func renderCalendar(output *Output, view analytics.MonthView) {
	output.Bold("%s  %s over %d trades", view.Month, pnlCell(output, view.TotalPnL), view.TotalTrades)

	headers := make([]string, len(models.Weekdays))
	for i, wd := range models.Weekdays {
		headers[i] = wd[:3]
	}
	table := NewTable(output, headers...)

	row := make([]string, 7)
	col := 0
	if len(view.Days) > 0 {
		for i, wd := range models.Weekdays {
			if wd == view.Days[0].Weekday {
				col = i
			}
		}
	}
	for _, d := range view.Days {
		cell := d.Date[len(d.Date)-2:]
		if d.Count > 0 {
			cell += " " + pnlCell(output, d.PnL)
		}
		row[col] = cell
		col++
		if col == 7 {
			table.AddRow(row...)
			row = make([]string, 7)
			col = 0
		}
	}
	if col > 0 {
		table.AddRow(row...)
	}
	table.Render()

	if len(view.WeeklyPnL) > 0 {
		output.Println()
		renderBuckets(output, "Week", view.WeeklyPnL)
	}
	if view.BestWeek != "" {
		output.Printf("Best week: %s %s\n", view.BestWeek, pnlCell(output, view.BestWeekPnL))
	}
	if view.MostProfitableWeekday != "" {
		output.Printf("Most profitable weekday: %s\n", view.MostProfitableWeekday)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
