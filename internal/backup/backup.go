// Package backup exports a user's journal to CSV and restores it.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
	"tradestein/internal/security"
	"tradestein/internal/store"
	"tradestein/internal/throttle"
)

// DefaultBatchSize is how many rows are written per store call on import.
const DefaultBatchSize = 200

// MaxImportBytes caps the size of an import file.
const MaxImportBytes = 10 << 20

// exportRow is one CSV line of an export.
type exportRow struct {
	ID            string `csv:"id"`
	UserID        string `csv:"user_id"`
	Date          string `csv:"date"`
	Ticker        string `csv:"ticker"`
	EntryTime     string `csv:"entry_time"`
	ExitTime      string `csv:"exit_time"`
	PnL           string `csv:"pnl"`
	FinalRR       string `csv:"final_rr"`
	AmountRisked  string `csv:"amount_risked"`
	Confluences   string `csv:"confluences"`
	DoneRight     string `csv:"done_right"`
	DoneWrong     string `csv:"done_wrong"`
	WhatToImprove string `csv:"what_to_improve"`
	Emotions      string `csv:"emotions"`
	EntryChart    string `csv:"entry_chart"`
	HTFChart      string `csv:"htf_chart"`
	CreatedAt     string `csv:"created_at"`
}

// importRow accepts the export columns plus the older what_to_do and note
// spellings of the improvement notes.
type importRow struct {
	ID            string `csv:"id"`
	Date          string `csv:"date"`
	Ticker        string `csv:"ticker"`
	EntryTime     string `csv:"entry_time"`
	ExitTime      string `csv:"exit_time"`
	PnL           string `csv:"pnl"`
	FinalRR       string `csv:"final_rr"`
	AmountRisked  string `csv:"amount_risked"`
	Confluences   string `csv:"confluences"`
	DoneRight     string `csv:"done_right"`
	DoneWrong     string `csv:"done_wrong"`
	WhatToImprove string `csv:"what_to_improve"`
	WhatToDo      string `csv:"what_to_do"`
	Note          string `csv:"note"`
	Emotions      string `csv:"emotions"`
	EntryChart    string `csv:"entry_chart"`
	HTFChart      string `csv:"htf_chart"`
	CreatedAt     string `csv:"created_at"`
}

// RowError describes an import row that was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult summarises an import.
type ImportResult struct {
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped"`
}

// Service exports and imports trades for one store.
type Service struct {
	trades    store.TradeStore
	validator *security.InputValidator
	batchSize int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a backup service. batchSize <= 0 uses DefaultBatchSize.
func NewService(trades store.TradeStore, validator *security.InputValidator, batchSize int, logger zerolog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if validator == nil {
		validator = security.NewInputValidator(false)
	}
	return &Service{
		trades:    trades,
		validator: validator,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "backup").Logger(),
		now:       time.Now,
	}
}

// Export writes all of userID's trades as CSV and returns the row count.
// An empty journal produces just the header line.
func (s *Service) Export(ctx context.Context, userID string, w io.Writer) (int, error) {
	trades, err := s.trades.ListTrades(ctx, userID, store.TradeFilter{})
	if err != nil {
		return 0, err
	}

	rows := make([]*exportRow, 0, len(trades))
	for i := range trades {
		rows = append(rows, toExportRow(&trades[i]))
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return 0, apperrors.Wrap(err, "write csv")
	}

	s.logger.Info().Str("user_id", userID).Int("rows", len(rows)).Msg("Trades exported")
	return len(rows), nil
}

// Import reads CSV trades and upserts them for userID. Every row is
// normalised and validated. Invalid rows are skipped and reported, and the
// owner column of the file is ignored. Rows whose id is a UUID keep it, so
// re-importing an export updates in place.
func (s *Service) Import(ctx context.Context, userID string, r io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return nil, apperrors.Wrap(err, "read csv")
	}
	if len(data) > MaxImportBytes {
		return nil, apperrors.NewValidationError("file", len(data), "import file too large")
	}

	result := &ImportResult{Skipped: []RowError{}}
	if len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}

	var rows []*importRow
	if err := gocsv.Unmarshal(bytes.NewReader(data), &rows); err != nil {
		return nil, apperrors.NewValidationError("file", "", fmt.Sprintf("malformed csv: %v", err))
	}
	result.Rows = len(rows)

	batch := throttle.NewBatchProcessor(s.batchSize, func(ctx context.Context, trades []models.Trade) error {
		n, err := s.trades.UpsertTrades(ctx, userID, trades)
		result.Imported += n
		return err
	})

	now := s.now()
	for i, row := range rows {
		line := i + 2 // header is line 1
		trade, err := s.fromImportRow(row, userID, now)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if err := batch.Add(ctx, trade); err != nil {
			return result, err
		}
	}
	if err := batch.Flush(ctx); err != nil {
		return result, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("rows", result.Rows).
		Int("imported", result.Imported).
		Int("skipped", len(result.Skipped)).
		Msg("Trades imported")
	return result, nil
}

func (s *Service) fromImportRow(row *importRow, userID string, now time.Time) (models.Trade, error) {
	// NormalizeTrade would default a missing date to today.
	if strings.TrimSpace(row.Date) == "" {
		return models.Trade{}, apperrors.NewValidationError("date", "", "date is required")
	}

	in := models.TradeInput{
		Date:          row.Date,
		Ticker:        row.Ticker,
		EntryTime:     row.EntryTime,
		ExitTime:      row.ExitTime,
		Confluences:   row.Confluences,
		DoneRight:     row.DoneRight,
		DoneWrong:     row.DoneWrong,
		WhatToImprove: row.WhatToImprove,
		WhatToDo:      row.WhatToDo,
		Note:          row.Note,
		Emotions:      row.Emotions,
		EntryChart:    row.EntryChart,
		HTFChart:      row.HTFChart,
	}
	// Empty cells mean absent, not zero.
	if row.PnL != "" {
		in.PnL = row.PnL
	}
	if row.FinalRR != "" {
		in.FinalRR = row.FinalRR
	}
	if row.AmountRisked != "" {
		in.AmountRisked = row.AmountRisked
	}

	t := analytics.NormalizeTrade(in, userID, now)
	if id, err := uuid.Parse(row.ID); err == nil {
		t.ID = id.String()
	}
	if created, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		t.CreatedAt = created
	}

	if err := s.validator.ValidateTrade(t); err != nil {
		return models.Trade{}, err
	}
	return t, nil
}

func toExportRow(t *models.Trade) *exportRow {
	return &exportRow{
		ID:            t.ID,
		UserID:        t.UserID,
		Date:          t.Date,
		Ticker:        t.Ticker,
		EntryTime:     t.EntryTime,
		ExitTime:      t.ExitTime,
		PnL:           formatFloat(t.PnL),
		FinalRR:       formatOptional(t.FinalRR),
		AmountRisked:  formatOptional(t.AmountRisked),
		Confluences:   t.Confluences,
		DoneRight:     t.DoneRight,
		DoneWrong:     t.DoneWrong,
		WhatToImprove: t.WhatToImprove,
		Emotions:      t.Emotions,
		EntryChart:    t.EntryChart,
		HTFChart:      t.HTFChart,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
