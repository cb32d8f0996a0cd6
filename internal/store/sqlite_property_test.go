package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"tradestein/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Property: a trade written and read back carries the same values, including
// absent optional numbers.
func TestProperty_TradeRoundTripConsistency(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	tickers := []string{"EURUSD", "GBPUSD", "NQ", "ES", "XAUUSD"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var seq int

	properties.Property("create then get returns an equivalent trade", prop.ForAll(
		func(tickerIdx int, dayOffset int, pnl float64, rr float64, hasRR bool) bool {
			ctx := context.Background()
			seq++
			userID := fmt.Sprintf("user-%d", seq)

			in := &models.Trade{
				UserID:    userID,
				Date:      base.AddDate(0, 0, dayOffset).Format(models.DateLayout),
				Ticker:    tickers[tickerIdx],
				EntryTime: "09:30",
				PnL:       pnl,
				Emotions:  "calm",
			}
			if hasRR {
				in.FinalRR = &rr
			}

			if err := store.CreateTrade(ctx, in); err != nil {
				t.Logf("Failed to create trade: %v", err)
				return false
			}

			got, err := store.GetTrade(ctx, userID, in.ID)
			if err != nil {
				t.Logf("Failed to get trade: %v", err)
				return false
			}

			if got.Date != in.Date || got.Ticker != in.Ticker || got.EntryTime != in.EntryTime || got.Emotions != in.Emotions {
				t.Logf("Text fields differ: %+v vs %+v", got, in)
				return false
			}
			if math.Abs(got.PnL-in.PnL) > 1e-9 {
				return false
			}
			if hasRR != (got.FinalRR != nil) {
				return false
			}
			if hasRR && math.Abs(*got.FinalRR-rr) > 1e-9 {
				return false
			}
			return got.AmountRisked == nil && got.ExitTime == ""
		},
		gen.IntRange(0, len(tickers)-1),
		gen.IntRange(0, 365),
		gen.Float64Range(-10000, 10000),
		gen.Float64Range(-5, 10),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: a listing is sorted by date and every trade is owned by the caller.
func TestProperty_ListTradesOrderedAndScoped(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var seq int

	properties.Property("list is date ordered and owner scoped", prop.ForAll(
		func(offsets []int) bool {
			ctx := context.Background()
			seq++
			owner := fmt.Sprintf("owner-%d", seq)
			other := fmt.Sprintf("other-%d", seq)

			for _, o := range offsets {
				date := base.AddDate(0, 0, o).Format(models.DateLayout)
				if err := store.CreateTrade(ctx, &models.Trade{UserID: owner, Date: date, Ticker: "ES"}); err != nil {
					return false
				}
				if err := store.CreateTrade(ctx, &models.Trade{UserID: other, Date: date, Ticker: "NQ"}); err != nil {
					return false
				}
			}

			trades, err := store.ListTrades(ctx, owner, TradeFilter{})
			if err != nil || len(trades) != len(offsets) {
				return false
			}
			for i, tr := range trades {
				if tr.UserID != owner {
					return false
				}
				if i > 0 && trades[i-1].Date > tr.Date {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 60)),
	))

	properties.TestingRun(t)
}
