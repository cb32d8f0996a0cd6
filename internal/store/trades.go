package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

const tradeColumns = `id, user_id, date, ticker, entry_time, exit_time, pnl, final_rr, amount_risked,
	confluences, done_right, done_wrong, what_to_improve, emotions, entry_chart, htf_chart,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (models.Trade, error) {
	var t models.Trade
	var entry, exit, confluences, doneRight, doneWrong, improve, emotions, entryChart, htfChart sql.NullString
	var finalRR, risked sql.NullFloat64

	err := row.Scan(&t.ID, &t.UserID, &t.Date, &t.Ticker, &entry, &exit, &t.PnL, &finalRR, &risked,
		&confluences, &doneRight, &doneWrong, &improve, &emotions, &entryChart, &htfChart,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}

	t.EntryTime = entry.String
	t.ExitTime = exit.String
	t.FinalRR = floatPtr(finalRR)
	t.AmountRisked = floatPtr(risked)
	t.Confluences = confluences.String
	t.DoneRight = doneRight.String
	t.DoneWrong = doneWrong.String
	t.WhatToImprove = improve.String
	t.Emotions = emotions.String
	t.EntryChart = entryChart.String
	t.HTFChart = htfChart.String
	return t, nil
}

func tradeArgs(t *models.Trade) []interface{} {
	return []interface{}{
		t.ID, t.UserID, t.Date, t.Ticker, nullString(t.EntryTime), nullString(t.ExitTime), t.PnL,
		nullFloat(t.FinalRR), nullFloat(t.AmountRisked),
		nullString(t.Confluences), nullString(t.DoneRight), nullString(t.DoneWrong),
		nullString(t.WhatToImprove), nullString(t.Emotions), nullString(t.EntryChart), nullString(t.HTFChart),
		t.CreatedAt, t.UpdatedAt,
	}
}

// ListTrades returns a user's trades ordered by date, then creation time.
func (s *SQLiteStore) ListTrades(ctx context.Context, userID string, filter TradeFilter) ([]models.Trade, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE user_id = ?"
	args := []interface{}{userID}

	if filter.From != "" {
		query += " AND date >= ?"
		args = append(args, filter.From)
	}
	if filter.To != "" {
		query += " AND date <= ?"
		args = append(args, filter.To)
	}
	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, strings.ToUpper(strings.TrimSpace(filter.Ticker)))
	}

	query += " ORDER BY date ASC, created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list", "trades", err)
	}
	defer rows.Close()

	trades := make([]models.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, storeErr("scan", "trade", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", "trades", err)
	}
	return trades, nil
}

// GetTrade returns one of the user's trades.
func (s *SQLiteStore) GetTrade(ctx context.Context, userID, id string) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE id = ? AND user_id = ?", id, userID)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrTradeNotFound
	}
	if err != nil {
		return nil, storeErr("get", "trade", err)
	}
	return &t, nil
}

// CreateTrade inserts trade, assigning an id when it has none and stamping
// both timestamps.
func (s *SQLiteStore) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	now := s.now()
	trade.CreatedAt = now
	trade.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trades ("+tradeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		tradeArgs(trade)...)
	if err != nil {
		return storeErr("create", "trade", err)
	}

	s.notifier.Notify(trade.UserID, models.EventTradesChanged, trade.ID)
	return nil
}

// UpdateTrade replaces every editable field of an existing trade. The id,
// owner and creation time are never changed; trade is refreshed with the
// stored creation time on success.
func (s *SQLiteStore) UpdateTrade(ctx context.Context, trade *models.Trade) error {
	trade.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET date = ?, ticker = ?, entry_time = ?, exit_time = ?, pnl = ?, final_rr = ?,
			amount_risked = ?, confluences = ?, done_right = ?, done_wrong = ?, what_to_improve = ?,
			emotions = ?, entry_chart = ?, htf_chart = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, trade.Date, trade.Ticker, nullString(trade.EntryTime), nullString(trade.ExitTime), trade.PnL,
		nullFloat(trade.FinalRR), nullFloat(trade.AmountRisked), nullString(trade.Confluences),
		nullString(trade.DoneRight), nullString(trade.DoneWrong), nullString(trade.WhatToImprove),
		nullString(trade.Emotions), nullString(trade.EntryChart), nullString(trade.HTFChart),
		trade.UpdatedAt, trade.ID, trade.UserID)
	if err != nil {
		return storeErr("update", "trade", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTradeNotFound
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT created_at FROM trades WHERE id = ?", trade.ID).Scan(&trade.CreatedAt); err != nil {
		return storeErr("update", "trade", err)
	}

	s.notifier.Notify(trade.UserID, models.EventTradesChanged, trade.ID)
	return nil
}

// DeleteTrade removes one of the user's trades.
func (s *SQLiteStore) DeleteTrade(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM trades WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return storeErr("delete", "trade", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTradeNotFound
	}

	s.notifier.Notify(userID, models.EventTradesChanged, id)
	return nil
}

// UpsertTrades writes trades for userID in one transaction, inserting new
// ids and replacing existing ones. Every trade is forced onto userID; rows
// whose id belongs to a different user are left untouched and not counted.
// A single change notification is sent after commit.
func (s *SQLiteStore) UpsertTrades(ctx context.Context, userID string, trades []models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin", "trades", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO trades ("+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date, ticker = excluded.ticker, entry_time = excluded.entry_time,
			exit_time = excluded.exit_time, pnl = excluded.pnl, final_rr = excluded.final_rr,
			amount_risked = excluded.amount_risked, confluences = excluded.confluences,
			done_right = excluded.done_right, done_wrong = excluded.done_wrong,
			what_to_improve = excluded.what_to_improve, emotions = excluded.emotions,
			entry_chart = excluded.entry_chart, htf_chart = excluded.htf_chart,
			updated_at = excluded.updated_at
		WHERE trades.user_id = excluded.user_id`)
	if err != nil {
		return 0, storeErr("prepare", "trades", err)
	}
	defer stmt.Close()

	now := s.now()
	written := 0
	for i := range trades {
		t := trades[i]
		t.UserID = userID
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now

		res, err := stmt.ExecContext(ctx, tradeArgs(&t)...)
		if err != nil {
			return 0, storeErr("upsert", "trade", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit", "trades", err)
	}

	if written > 0 {
		s.notifier.Notify(userID, models.EventTradesChanged, "")
	}
	return written, nil
}
