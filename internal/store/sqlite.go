package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	apperrors "tradestein/internal/errors"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	notifier Notifier
	now      func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// bootstraps the schema. Use ":memory:" only in tests that hold a single
// connection.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:       db,
		notifier: nopNotifier{},
		now:      func() time.Time { return time.Now().UTC() },
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// SetNotifier routes change notifications to n. A nil n disables them.
func (s *SQLiteStore) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Profiles, one per user
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT,
		bio TEXT,
		avatar_url TEXT,
		subscription_status TEXT NOT NULL DEFAULT 'inactive',
		subscription_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Bearer sessions, stored by token hash only
	CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES profiles(id) ON DELETE CASCADE
	);

	-- Journal trades; date is kept as text so grouping is by exact string
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		ticker TEXT NOT NULL,
		entry_time TEXT,
		exit_time TEXT,
		pnl REAL NOT NULL DEFAULT 0,
		final_rr REAL,
		amount_risked REAL,
		confluences TEXT,
		done_right TEXT,
		done_wrong TEXT,
		what_to_improve TEXT,
		emotions TEXT,
		entry_chart TEXT,
		htf_chart TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Personal goals
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		deadline TEXT,
		progress INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	-- Replay notes
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_trades_user_date ON trades(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id);
	CREATE INDEX IF NOT EXISTS idx_notes_user_updated ON notes(user_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Columns added after the first release.
	for _, c := range []struct{ table, column, decl string }{
		{"profiles", "bio", "TEXT"},
		{"profiles", "avatar_url", "TEXT"},
	} {
		if err := s.ensureColumn(c.table, c.column, c.decl); err != nil {
			return err
		}
	}
	return nil
}

// ensureColumn adds column to table when an older database lacks it.
func (s *SQLiteStore) ensureColumn(table, column, decl string) error {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func storeErr(op, entity string, err error) error {
	return apperrors.NewStoreError(op, entity, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
