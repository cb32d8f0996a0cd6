package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

const noteColumns = "id, user_id, title, content, created_at, updated_at"

func scanNote(row rowScanner) (models.Note, error) {
	var n models.Note
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// ListNotes returns a user's notes, most recently edited first.
func (s *SQLiteStore) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE user_id = ? ORDER BY updated_at DESC, created_at DESC, id ASC", userID)
	if err != nil {
		return nil, storeErr("list", "notes", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, storeErr("scan", "note", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", "notes", err)
	}
	return notes, nil
}

// GetNote returns one of the user's notes.
func (s *SQLiteStore) GetNote(ctx context.Context, userID, id string) (*models.Note, error) {
	n, err := scanNote(s.db.QueryRowContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNoteNotFound
	}
	if err != nil {
		return nil, storeErr("get", "note", err)
	}
	return &n, nil
}

func (s *SQLiteStore) CreateNote(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.CreatedAt = s.now()
	note.UpdatedAt = note.CreatedAt

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notes ("+noteColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		note.ID, note.UserID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return storeErr("create", "note", err)
	}

	s.notifier.Notify(note.UserID, models.EventNotesChanged, note.ID)
	return nil
}

// UpdateNote replaces a note's title and content and bumps updated_at.
func (s *SQLiteStore) UpdateNote(ctx context.Context, userID, id, title, content string) (*models.Note, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		title, content, s.now(), id, userID)
	if err != nil {
		return nil, storeErr("update", "note", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.ErrNoteNotFound
	}

	s.notifier.Notify(userID, models.EventNotesChanged, id)
	return s.GetNote(ctx, userID, id)
}

func (s *SQLiteStore) DeleteNote(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return storeErr("delete", "note", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNoteNotFound
	}

	s.notifier.Notify(userID, models.EventNotesChanged, id)
	return nil
}
