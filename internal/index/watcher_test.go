package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/labdesk/internal/storage"
	"github.com/starford/labdesk/internal/workspace"
)

// watcherTestEnv sets up an inbox dir, storage, tracker and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *workspace.Tracker, *DB) {
	t.Helper()
	inbox := t.TempDir()
	store, err := storage.NewFS(inbox)
	if err != nil {
		t.Fatal(err)
	}
	return inbox, store, workspace.NewTracker(), testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+path)
	l.mu.Unlock()
}

func (l *eventLog) has(e string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.events {
		if got == e {
			return true
		}
	}
	return false
}

func TestWatcher_NewFileIngested(t *testing.T) {
	inbox, store, tracker, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &eventLog{}
	go Watch(ctx, db, store, inbox, tracker, quietLogger(), log.record)

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(inbox, "new.py"), []byte("print('hi')\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new.py")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("ingested:new.py")
	}, "expected ingested:new.py callback")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		doc, ok := tracker.Current("new.py")
		return ok && doc.RawText == "print('hi')\n"
	}, "tracker should hold the ingested document")
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	inbox, store, tracker, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, inbox, tracker, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("hello"), 0o644)
	_ = os.WriteFile(filepath.Join(inbox, "ok.py"), []byte("x = 1"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("ok.py")
		return cs != ""
	}, "supported file not indexed")

	if cs, _ := db.GetChecksum("notes.txt"); cs != "" {
		t.Error("unsupported file should not be indexed")
	}
}

func TestWatcher_MalformedNotebookReportsFailure(t *testing.T) {
	inbox, store, tracker, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &eventLog{}
	go Watch(ctx, db, store, inbox, tracker, quietLogger(), log.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(inbox, "bad.ipynb"), []byte(`"just a string"`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("failed:bad.ipynb")
	}, "expected failed:bad.ipynb callback")

	if cs, _ := db.GetChecksum("bad.ipynb"); cs != "" {
		t.Error("malformed notebook should not be indexed")
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	inbox, store, tracker, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, inbox, tracker, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(inbox, "lab2")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.ipynb"), []byte(`{"cells":[]}`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("lab2/deep.ipynb")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	inbox, store, tracker, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(inbox, "del.py"), []byte("# Delete Me"), 0o644)
	if err := Sync(context.Background(), db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	cs, _ := db.GetChecksum("del.py")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &eventLog{}
	go Watch(ctx, db, store, inbox, tracker, quietLogger(), log.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(inbox, "del.py"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.py")
		return cs == ""
	}, "deleted file still in index")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("removed:del.py")
	}, "expected removed:del.py callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	inbox, store, tracker, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(inbox, "old.py"), []byte("x = 'rename'"), 0o644)
	if err := Sync(context.Background(), db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, inbox, tracker, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(inbox, "old.py"), filepath.Join(inbox, "renamed.py"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.py")
		newCS, _ := db.GetChecksum("renamed.py")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
