package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/checksum"
	"github.com/starford/labdesk/internal/parser"
	"github.com/starford/labdesk/internal/storage"
	"github.com/starford/labdesk/internal/workspace"
)

// Watcher event kinds passed to EventCallback.
const (
	EventIngested = "ingested"
	EventRemoved  = "removed"
	EventFailed   = "failed"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of EventIngested, EventRemoved, EventFailed.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the inbox root and processes file
// change events until ctx is cancelled. store must be rooted at the same
// directory. It calls cb (if non-nil) after each index mutation and after
// each file that fails to parse.
//
// Every ingest goes through tracker, so a parse that is overtaken by a newer
// write or a removal of the same path is discarded.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, tracker *workspace.Tracker, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root, err = filepath.Abs(root)
	if err != nil {
		return err
	}
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	ing := &ingester{db: db, store: store, tracker: tracker, logger: logger, cb: cb}

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			ing.reconcile(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					ing.ingestDir(ctx, root, absPath)
					continue
				}
			}

			if !parser.Supported(absPath) {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				ing.ingest(ctx, rel)

			case ev.Op&fsnotify.Remove != 0:
				ing.remove(rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path arrives as a separate Create event when it stays
				// inside a watched dir.
				ing.remove(rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

type ingester struct {
	db      *DB
	store   storage.Provider
	tracker *workspace.Tracker
	logger  *slog.Logger
	cb      EventCallback
}

func (i *ingester) emit(kind, path string) {
	if i.cb != nil {
		i.cb(kind, path)
	}
}

// ingest parses and indexes one file. Unchanged content is skipped so that
// files written through the API are not announced twice.
func (i *ingester) ingest(ctx context.Context, rel string) {
	data, err := i.store.Read(ctx, rel)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			i.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		return
	}
	// A notebook being written shows up empty on Create; its Write event follows.
	if len(data) == 0 && !strings.EqualFold(filepath.Ext(rel), ".py") {
		return
	}
	sum := checksum.Sum(data)
	if cs, _ := i.db.GetChecksum(rel); cs == sum {
		return
	}

	tok := i.tracker.Begin(rel)
	doc, err := parser.Extract(filepath.Base(rel), data)
	if err != nil {
		i.logger.Warn("watcher: parse failed", slog.String("path", rel), slog.String("error", err.Error()))
		i.emit(EventFailed, rel)
		return
	}
	err = i.tracker.Commit(tok, doc, func() error {
		return PutDocument(i.db, rel, doc, sum)
	})
	if errors.Is(err, apperr.ErrSuperseded) {
		i.logger.Debug("watcher: superseded", slog.String("path", rel))
		return
	}
	if err != nil {
		i.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		i.emit(EventFailed, rel)
		return
	}
	i.logger.Debug("watcher: indexed", slog.String("path", rel))
	i.emit(EventIngested, rel)
}

func (i *ingester) remove(rel string) {
	i.tracker.Remove(rel)
	cs, _ := i.db.GetChecksum(rel)
	if cs == "" {
		return
	}
	if err := i.db.DeleteDocument(rel); err != nil {
		i.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	i.logger.Debug("watcher: deleted", slog.String("path", rel))
	i.emit(EventRemoved, rel)
}

// reconcile finds index entries without a corresponding file and removes
// them, then ingests files that are missing or changed in the index.
func (i *ingester) reconcile(ctx context.Context) {
	checksums, err := i.db.AllChecksums()
	if err != nil {
		i.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := i.store.List(ctx, "")
	if err != nil {
		i.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	present := make(map[string]string, len(metas))
	for _, m := range metas {
		present[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := present[p]; !ok {
			i.remove(p)
		}
	}

	for p, cs := range present {
		if checksums[p] == cs {
			continue
		}
		i.ingest(ctx, p)
	}
}

// ingestDir ingests any submission files found in a newly created directory.
func (i *ingester) ingestDir(ctx context.Context, root, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !parser.Supported(p) {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		i.ingest(ctx, filepath.ToSlash(rel))
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
