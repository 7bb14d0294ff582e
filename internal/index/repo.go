package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path          string
	Title         string
	Kind          models.FileKind
	Checksum      string
	Size          int64
	TotalCells    int
	CodeCells     int
	MarkdownCells int
	UpdatedAt     time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Kind    string
	Snippet string
}

// SubmissionRow is one logged grading attempt. Result holds the backend
// response (or the fallback) as JSON.
type SubmissionRow struct {
	ID           string
	LabID        string
	Path         string
	FileName     string
	OverallScore float64
	Success      bool
	Feedback     string
	Result       string
	CreatedAt    time.Time
}

// UpsertDocument inserts or replaces a document and its FTS entry within a transaction.
// body is the searchable text, normally the evaluation projection.
func (db *DB) UpsertDocument(d DocumentRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, kind, checksum, size, total_cells, code_cells, markdown_cells, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title          = excluded.title,
			kind           = excluded.kind,
			checksum       = excluded.checksum,
			size           = excluded.size,
			total_cells    = excluded.total_cells,
			code_cells     = excluded.code_cells,
			markdown_cells = excluded.markdown_cells,
			body           = excluded.body,
			updated_at     = excluded.updated_at
	`, d.Path, d.Title, string(d.Kind), d.Checksum, d.Size, d.TotalCells, d.CodeCells, d.MarkdownCells, body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, d.Path, d.Title, body, string(d.Kind)); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteDocument removes a document and its FTS entry.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const documentColumns = `path, title, kind, checksum, size, total_cells, code_cells, markdown_cells, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (DocumentRow, error) {
	var d DocumentRow
	err := s.Scan(&d.Path, &d.Title, &d.Kind, &d.Checksum, &d.Size,
		&d.TotalCells, &d.CodeCells, &d.MarkdownCells, &d.UpdatedAt)
	return d, err
}

// GetDocument returns one indexed document.
func (db *DB) GetDocument(path string) (*DocumentRow, error) {
	row := db.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get document %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns a page of documents and the total count.
// kind filters by file kind when non-empty; sort is one of "path", "title", "updated".
func (db *DB) ListDocuments(limit, offset int, kind, sort string) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	orderBy := "path ASC"
	switch sort {
	case "title":
		orderBy = "title ASC, path ASC"
	case "updated":
		orderBy = "updated_at DESC, path ASC"
	}

	where := ""
	args := []any{}
	if kind != "" {
		where = " WHERE kind = ?"
		args = append(args, kind)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+documentColumns+` FROM documents`+where+
		` ORDER BY `+orderBy+` LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// InsertSubmission appends a grading attempt to the log.
func (db *DB) InsertSubmission(s SubmissionRow) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Result == "" {
		s.Result = "{}"
	}
	_, err := db.conn.Exec(`
		INSERT INTO submissions (id, lab_id, path, file_name, overall_score, success, feedback, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.LabID, s.Path, s.FileName, s.OverallScore, s.Success, s.Feedback, s.Result, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: insert submission: %w", err)
	}
	return nil
}

// ListSubmissions returns logged attempts, newest first, optionally for one lab.
func (db *DB) ListSubmissions(labID string, limit, offset int) ([]SubmissionRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if labID != "" {
		where = " WHERE lab_id = ?"
		args = append(args, labID)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count submissions: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, lab_id, path, file_name, overall_score, success, feedback, result, created_at
		FROM submissions`+where+`
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list submissions: %w", err)
	}
	defer rows.Close()

	var out []SubmissionRow
	for rows.Next() {
		var s SubmissionRow
		if err := rows.Scan(&s.ID, &s.LabID, &s.Path, &s.FileName, &s.OverallScore,
			&s.Success, &s.Feedback, &s.Result, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
