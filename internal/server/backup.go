package server

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"

	"tradestein/internal/backup"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/security"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	userID := mustUser(r)

	// Buffer so that a store failure can still produce a JSON error.
	var buf bytes.Buffer
	n, err := s.deps.Backup.Export(r.Context(), userID, &buf)
	s.deps.Audit.LogBackup(r.Context(), security.AuditTradesExported, userID, n, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trades_backup.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport accepts either a raw text/csv body or a multipart form with a
// "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	userID := mustUser(r)
	r.Body = http.MaxBytesReader(w, r.Body, backup.MaxImportBytes+1<<16)

	src, err := importSource(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer src.Close()

	res, err := s.deps.Backup.Import(r.Context(), userID, src)
	rows := 0
	if res != nil {
		rows = res.Imported
	}
	s.deps.Audit.LogBackup(r.Context(), security.AuditTradesImported, userID, rows, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func importSource(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, apperrors.NewValidationError("file", "", fmt.Sprintf("missing CSV upload: %v", err))
	}
	return file, nil
}
