package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/logging"
	"tradestein/internal/models"
	"tradestein/internal/security"
	"tradestein/internal/store"
	"tradestein/pkg/utils"
)

func newTradeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Record and manage journal trades",
		Long:  "Record trades with their reflections, list the journal, edit and delete entries.",
	}

	cmd.AddCommand(newTradeAddCmd(app))
	cmd.AddCommand(newTradeListCmd(app))
	cmd.AddCommand(newTradeShowCmd(app))
	cmd.AddCommand(newTradeEditCmd(app))
	cmd.AddCommand(newTradeDeleteCmd(app))
	return cmd
}

// tradeFlags registers the editable trade fields on fs.
func tradeFlags(fs *pflag.FlagSet) {
	fs.String("date", "", "trade date YYYY-MM-DD (default: today)")
	fs.String("ticker", "", "instrument traded, e.g. EURUSD")
	fs.String("entry", "", "entry time HH:MM")
	fs.String("exit", "", "exit time HH:MM")
	fs.String("pnl", "", "realised profit or loss")
	fs.String("rr", "", "final risk:reward multiple")
	fs.String("risked", "", "amount risked (derives R:R when --rr is absent)")
	fs.String("confluences", "", "reasons for taking the trade")
	fs.String("right", "", "what went right")
	fs.String("wrong", "", "what went wrong")
	fs.String("improve", "", "what to improve")
	fs.String("emotions", "", "emotional state")
	fs.String("entry-chart", "", "entry chart link")
	fs.String("htf-chart", "", "higher timeframe chart link")
}

// applyTradeFlags overlays the flags that were set on in.
func applyTradeFlags(fs *pflag.FlagSet, in *models.TradeInput) {
	set := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	setAny := func(name string, dst *interface{}) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}

	set("date", &in.Date)
	set("ticker", &in.Ticker)
	set("entry", &in.EntryTime)
	set("exit", &in.ExitTime)
	setAny("pnl", &in.PnL)
	setAny("rr", &in.FinalRR)
	setAny("risked", &in.AmountRisked)
	set("confluences", &in.Confluences)
	set("right", &in.DoneRight)
	set("wrong", &in.DoneWrong)
	set("improve", &in.WhatToImprove)
	set("emotions", &in.Emotions)
	set("entry-chart", &in.EntryChart)
	set("htf-chart", &in.HTFChart)
}

// inputFromTrade is the editable view of an existing trade.
func inputFromTrade(t *models.Trade) models.TradeInput {
	return models.TradeInput{
		Date:          t.Date,
		Ticker:        t.Ticker,
		EntryTime:     t.EntryTime,
		ExitTime:      t.ExitTime,
		PnL:           t.PnL,
		FinalRR:       t.FinalRR,
		AmountRisked:  t.AmountRisked,
		Confluences:   t.Confluences,
		DoneRight:     t.DoneRight,
		DoneWrong:     t.DoneWrong,
		WhatToImprove: t.WhatToImprove,
		Emotions:      t.Emotions,
		EntryChart:    t.EntryChart,
		HTFChart:      t.HTFChart,
	}
}

func newTradeAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a trade",
		Example: `  tradestein trade add --ticker EURUSD --pnl 120 --rr 2 --entry 09:30 --exit 10:05
  tradestein trade add --date 2026-10-16 --ticker NAS100 --pnl -50 --risked 50 --wrong "chased entry"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}

			var in models.TradeInput
			applyTradeFlags(cmd.Flags(), &in)
			if strings.TrimSpace(in.Ticker) == "" {
				return apperrors.NewValidationError("ticker", "", "--ticker is required")
			}
			trade := analytics.NormalizeTrade(in, userID, time.Now())
			if err := app.Validator.ValidateTrade(trade); err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.CreateTrade(ctx, &trade); err != nil {
				return err
			}
			app.Audit().LogTrade(ctx, security.AuditTradeCreated, userID, trade.ID, trade.Ticker)
			logging.LogTradeEvent(app.Logger, "created", userID, trade.ID, trade.Ticker)

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade recorded: %s %s %s", trade.Date, trade.Ticker, pnlCell(output, trade.PnL))
			output.Dim("ID %s", trade.ID)
			return nil
		},
	}
	tradeFlags(cmd.Flags())
	return cmd
}

func newTradeListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal trades",
		Example: `  tradestein trade list --from 2026-10-01
  tradestein trade list --ticker eurusd --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			filter, err := tradeFilterFromFlags(cmd, app.Validator)
			if err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			trades, err := st.ListTrades(ctx, userID, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No trades recorded.")
				output.Dim("Tip: add one with 'tradestein trade add --ticker EURUSD --pnl 100'")
				return nil
			}

			table := NewTable(output, "Date", "Time", "Ticker", "Session", "P&L", "R:R", "ID")
			var total float64
			for i := range trades {
				t := &trades[i]
				total += t.PnL
				rr := "-"
				if v, ok := analytics.EffectiveRR(*t); ok {
					rr = utils.FormatRR(&v)
				}
				table.AddRow(
					t.Date,
					FormatHoldTime(t.EntryTime, t.ExitTime),
					t.Ticker,
					analytics.SessionOf(t.EntryTime),
					pnlCell(output, t.PnL),
					rr,
					shortID(t.ID),
				)
			}
			table.Render()
			output.Println()
			output.Printf("%d trades, total %s\n", len(trades), pnlCell(output, total))
			return nil
		},
	}
	cmd.Flags().String("from", "", "first date YYYY-MM-DD")
	cmd.Flags().String("to", "", "last date YYYY-MM-DD")
	cmd.Flags().String("ticker", "", "only this ticker")
	cmd.Flags().Int("limit", 0, "maximum trades (0 for all)")
	return cmd
}

func tradeFilterFromFlags(cmd *cobra.Command, v *security.InputValidator) (store.TradeFilter, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	ticker, _ := cmd.Flags().GetString("ticker")
	limit, _ := cmd.Flags().GetInt("limit")

	f := store.TradeFilter{
		From:   strings.TrimSpace(from),
		To:     strings.TrimSpace(to),
		Ticker: analytics.NormalizeTicker(ticker),
		Limit:  limit,
	}
	if f.From != "" {
		if err := v.ValidateDate("from", f.From); err != nil {
			return f, err
		}
	}
	if f.To != "" {
		if err := v.ValidateDate("to", f.To); err != nil {
			return f, err
		}
	}
	if f.Limit < 0 {
		return f, apperrors.NewValidationError("limit", limit, "limit must be non-negative")
	}
	return f, nil
}

func newTradeShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a trade with its reflections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			t, err := st.GetTrade(ctx, userID, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(t)
			}

			weekday, _ := analytics.WeekdayOf(t.Date)
			output.Bold("%s %s", t.Ticker, t.Date)
			output.Printf("  Weekday:   %s\n", orDash(weekday))
			output.Printf("  Session:   %s\n", analytics.SessionOf(t.EntryTime))
			output.Printf("  Time:      %s\n", FormatHoldTime(t.EntryTime, t.ExitTime))
			output.Printf("  P&L:       %s\n", pnlCell(output, t.PnL))
			if v, ok := analytics.EffectiveRR(*t); ok {
				output.Printf("  R:R:       %s\n", utils.FormatRR(&v))
			}
			if t.AmountRisked != nil {
				output.Printf("  Risked:    %s\n", utils.FormatCurrency(*t.AmountRisked))
			}

			notes := []struct{ label, text string }{
				{"Confluences", t.Confluences},
				{"Done right", t.DoneRight},
				{"Done wrong", t.DoneWrong},
				{"Improve", t.WhatToImprove},
				{"Emotions", t.Emotions},
				{"Entry chart", t.EntryChart},
				{"HTF chart", t.HTFChart},
			}
			for _, n := range notes {
				if n.text != "" {
					output.Printf("  %-10s %s\n", n.label+":", n.text)
				}
			}
			output.Dim("Recorded %s", FormatDateTime(t.CreatedAt))
			return nil
		},
	}
}

func newTradeEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a recorded trade",
		Long:  "Change the given fields of a trade. Fields without a flag keep their value.",
		Example: `  tradestein trade edit 3f2c... --pnl 80 --improve "wait for the retest"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			existing, err := st.GetTrade(ctx, userID, args[0])
			if err != nil {
				return err
			}

			in := inputFromTrade(existing)
			applyTradeFlags(cmd.Flags(), &in)
			trade := analytics.NormalizeTrade(in, userID, time.Now())
			trade.ID = existing.ID
			if err := app.Validator.ValidateTrade(trade); err != nil {
				return err
			}
			if err := st.UpdateTrade(ctx, &trade); err != nil {
				return err
			}
			app.Audit().LogTrade(ctx, security.AuditTradeUpdated, userID, trade.ID, trade.Ticker)
			logging.LogTradeEvent(app.Logger, "updated", userID, trade.ID, trade.Ticker)

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade updated: %s %s %s", trade.Date, trade.Ticker, pnlCell(output, trade.PnL))
			return nil
		},
	}
	tradeFlags(cmd.Flags())
	return cmd
}

func newTradeDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.DeleteTrade(ctx, userID, args[0]); err != nil {
				return err
			}
			app.Audit().LogTrade(ctx, security.AuditTradeDeleted, userID, args[0], "")
			logging.LogTradeEvent(app.Logger, "deleted", userID, args[0], "")

			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Trade %s deleted", args[0])
			return nil
		},
	}
}

// shortID is the first eight characters of an id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
