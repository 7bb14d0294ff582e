// Package docservice coordinates storage, parsing, the index and the grading
// backend for submitted documents.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/checksum"
	"github.com/starford/labdesk/internal/export"
	"github.com/starford/labdesk/internal/grading"
	"github.com/starford/labdesk/internal/index"
	"github.com/starford/labdesk/internal/models"
	"github.com/starford/labdesk/internal/parser"
	"github.com/starford/labdesk/internal/projector"
	"github.com/starford/labdesk/internal/sse"
	"github.com/starford/labdesk/internal/storage"
	"github.com/starford/labdesk/internal/workspace"
)

// Notifier receives document lifecycle events. *sse.Broker satisfies it.
type Notifier interface {
	PublishDocumentEvent(kind, path string)
	Publish(event sse.Event)
}

// DocumentDetail is a stored document with its parsed form.
type DocumentDetail struct {
	Path      string           `json:"path"`
	Title     string           `json:"title"`
	Checksum  string           `json:"checksum"`
	UpdatedAt time.Time        `json:"updated_at"`
	Document  *models.Document `json:"document"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	Path          string          `json:"path"`
	Title         string          `json:"title"`
	Kind          models.FileKind `json:"kind"`
	Checksum      string          `json:"checksum"`
	Size          int64           `json:"size"`
	TotalCells    int             `json:"total_cells"`
	CodeCells     int             `json:"code_cells"`
	MarkdownCells int             `json:"markdown_cells"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Deps are the collaborators of a Service. Grader and Notifier are optional.
type Deps struct {
	Store    storage.Provider
	DB       *index.DB
	Tracker  *workspace.Tracker
	Cache    *workspace.Cache
	Grader   *grading.Client
	Exporter *export.Exporter
	Notifier Notifier
	Logger   *slog.Logger
	// SubmitLimit caps the evaluation text sent to the backend.
	SubmitLimit int
}

// Service coordinates storage, index and grading operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	tracker  *workspace.Tracker
	cache    *workspace.Cache
	grader   *grading.Client
	exporter *export.Exporter
	notifier Notifier
	logger   *slog.Logger
	limit    int
}

// NewService creates a new document service.
func NewService(d Deps) (*Service, error) {
	if d.Store == nil || d.DB == nil {
		return nil, errors.New("docservice: store and db are required")
	}
	s := &Service{
		store:    d.Store,
		db:       d.DB,
		tracker:  d.Tracker,
		cache:    d.Cache,
		grader:   d.Grader,
		exporter: d.Exporter,
		notifier: d.Notifier,
		logger:   d.Logger,
		limit:    d.SubmitLimit,
	}
	if s.tracker == nil {
		s.tracker = workspace.NewTracker()
	}
	if s.cache == nil {
		c, err := workspace.NewCache(0)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	if s.grader == nil {
		s.grader = grading.NewClient(grading.Config{})
	}
	if s.exporter == nil {
		s.exporter = export.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.limit <= 0 {
		s.limit = projector.DefaultSubmissionLimit
	}
	return s, nil
}

// Tracker returns the upload tracker shared with the inbox watcher.
func (s *Service) Tracker() *workspace.Tracker {
	return s.tracker
}

// Extract parses an upload without storing it.
func (s *Service) Extract(_ context.Context, fileName string, data []byte) (*models.Document, error) {
	return s.cache.Extract(path.Base(fileName), data)
}

// UploadPath returns the store path for fileName inside slot. An empty slot
// gets a fresh random one so that anonymous uploads never collide.
func UploadPath(slot, fileName string) (string, error) {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" || name == ".." {
		return "", fmt.Errorf("docservice: invalid file name %q", fileName)
	}
	slot = strings.Trim(strings.TrimSpace(slot), "/")
	if slot == "" {
		slot = uuid.NewString()
	}
	if strings.Contains(slot, "..") {
		return "", fmt.Errorf("docservice: invalid slot %q", slot)
	}
	return slot + "/" + name, nil
}

// Upload stores a new document under slot and indexes it.
// It fails with apperr.ErrAlreadyExists when the path is taken.
func (s *Service) Upload(ctx context.Context, slot, fileName string, data []byte) (*DocumentDetail, error) {
	if _, err := parser.Classify(fileName, int64(len(data))); err != nil {
		return nil, err
	}
	p, err := UploadPath(slot, fileName)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(ctx, p); err == nil {
		return nil, apperr.ErrAlreadyExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return s.put(ctx, p, data, nil)
}

// Replace overwrites an existing document. When ifMatch is non-empty it
// must equal the stored checksum, otherwise apperr.ErrConflict is returned.
func (s *Service) Replace(ctx context.Context, p string, data []byte, ifMatch string) (*DocumentDetail, error) {
	if _, err := parser.Classify(p, int64(len(data))); err != nil {
		return nil, err
	}
	existing, err := s.store.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	return s.put(ctx, p, data, existing)
}

// put parses data and, if no newer upload for p started meanwhile, writes
// it to the store and the index. previous is the stored content being
// replaced, or nil for a new document; a failed store write restores its
// index row.
func (s *Service) put(ctx context.Context, p string, data, previous []byte) (*DocumentDetail, error) {
	tok := s.tracker.Begin(p)
	doc, err := s.cache.Extract(path.Base(p), data)
	if err != nil {
		return nil, err
	}
	sum := checksum.Sum(data)
	err = s.tracker.Commit(tok, doc, func() error {
		// Index first: the inbox watcher then sees a matching checksum
		// for the file and skips it.
		if err := index.PutDocument(s.db, p, doc, sum); err != nil {
			return err
		}
		if err := s.store.Write(ctx, p, data); err != nil {
			s.restoreIndex(p, previous)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(index.EventIngested, p)
	return &DocumentDetail{
		Path:      p,
		Title:     parser.Title(doc),
		Checksum:  sum,
		UpdatedAt: time.Now().UTC(),
		Document:  doc,
	}, nil
}

// Get reads a stored document and parses it.
func (s *Service) Get(ctx context.Context, p string) (*DocumentDetail, error) {
	data, err := s.store.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	doc, err := s.cache.Extract(path.Base(p), data)
	if err != nil {
		return nil, err
	}
	detail := &DocumentDetail{
		Path:     p,
		Title:    parser.Title(doc),
		Checksum: checksum.Sum(data),
		Document: doc,
	}
	if row, err := s.db.GetDocument(p); err == nil {
		detail.UpdatedAt = row.UpdatedAt
	}
	return detail, nil
}

// Raw returns the download name and raw text of a stored document.
func (s *Service) Raw(ctx context.Context, p string) (string, string, error) {
	d, err := s.Get(ctx, p)
	if err != nil {
		return "", "", err
	}
	return export.RawFileName(d.Document.FileName), d.Document.RawText, nil
}

// EvaluationText returns the evaluation projection of a stored document,
// cut to limit characters when limit is positive.
func (s *Service) EvaluationText(ctx context.Context, p string, limit int) (string, error) {
	d, err := s.Get(ctx, p)
	if err != nil {
		return "", err
	}
	return projector.Truncate(projector.EvaluationText(d.Document), limit), nil
}

// Markdown renders a stored document as Markdown.
func (s *Service) Markdown(ctx context.Context, p string) (string, error) {
	d, err := s.Get(ctx, p)
	if err != nil {
		return "", err
	}
	return s.exporter.Markdown(d.Document)
}

// Delete removes a document from storage and index. In-flight uploads of
// the same path are discarded.
func (s *Service) Delete(ctx context.Context, p string) error {
	s.tracker.Remove(p)
	if err := s.store.Delete(ctx, p); err != nil {
		return err
	}
	if err := s.db.DeleteDocument(p); err != nil {
		return err
	}
	s.notify(index.EventRemoved, p)
	return nil
}

// List returns paginated documents, optionally filtered by kind.
func (s *Service) List(_ context.Context, limit, offset int, kind, sort string) ([]DocumentListItem, int, error) {
	rows, total, err := s.db.ListDocuments(limit, offset, kind, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DocumentListItem, len(rows))
	for i, r := range rows {
		items[i] = DocumentListItem{
			Path:          r.Path,
			Title:         r.Title,
			Kind:          r.Kind,
			Checksum:      r.Checksum,
			Size:          r.Size,
			TotalCells:    r.TotalCells,
			CodeCells:     r.CodeCells,
			MarkdownCells: r.MarkdownCells,
			UpdatedAt:     r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// Sync reconciles the index with the store.
func (s *Service) Sync(ctx context.Context) error {
	return index.Sync(ctx, s.db, s.store, s.logger)
}

func (s *Service) restoreIndex(p string, previous []byte) {
	if previous == nil {
		if err := s.db.DeleteDocument(p); err != nil {
			s.logger.Warn("docservice: drop index row failed", slog.String("path", p), slog.String("error", err.Error()))
		}
		return
	}
	doc, err := s.cache.Extract(path.Base(p), previous)
	if err == nil {
		err = index.PutDocument(s.db, p, doc, checksum.Sum(previous))
	}
	if err != nil {
		s.logger.Warn("docservice: restore index row failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

func (s *Service) notify(kind, p string) {
	if s.notifier != nil {
		s.notifier.PublishDocumentEvent(kind, p)
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
