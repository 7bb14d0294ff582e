package index

import (
	"context"
	"log/slog"
	"path"

	"github.com/starford/labdesk/internal/checksum"
	"github.com/starford/labdesk/internal/models"
	"github.com/starford/labdesk/internal/parser"
	"github.com/starford/labdesk/internal/projector"
	"github.com/starford/labdesk/internal/storage"
)

// Sync walks the store and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from the store are deleted from the index
//
// Files that fail to parse are logged and left out of the index.
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List(ctx, "")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	present := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		present[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(ctx, m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := indexFile(db, m.Path, data, m.Checksum); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := present[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it into the DB. sum is the checksum the
// store reports for the file; an empty sum is computed from data.
func indexFile(db *DB, p string, data []byte, sum string) (*models.Document, error) {
	doc, err := parser.Extract(path.Base(p), data)
	if err != nil {
		return nil, err
	}
	if sum == "" {
		sum = checksum.Sum(data)
	}
	return doc, PutDocument(db, p, doc, sum)
}

// PutDocument indexes an already parsed document under path. The searchable
// body is the document's evaluation text.
func PutDocument(db DocumentIndex, p string, doc *models.Document, sum string) error {
	row := DocumentRow{
		Path:     p,
		Title:    parser.Title(doc),
		Kind:     doc.FileKind,
		Checksum: sum,
		Size:     doc.FileSizeBytes,
	}
	if s := doc.NotebookSummary; s != nil {
		row.TotalCells = s.TotalCells
		row.CodeCells = s.CodeCellCount
		row.MarkdownCells = s.MarkdownCellCount
	}
	return db.UpsertDocument(row, projector.EvaluationText(doc))
}
