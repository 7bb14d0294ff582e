// Package testutil provides shared test helpers for setting up inboxes,
// databases and document services.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/labdesk/internal/docservice"
	"github.com/starford/labdesk/internal/grading"
	"github.com/starford/labdesk/internal/index"
	"github.com/starford/labdesk/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "labdesk-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// QuietLogger discards all log output.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestService wires a document service over a temporary inbox and database.
// gradingURL may be empty to leave grading unconfigured.
func TestService(t *testing.T, gradingURL string, notifier docservice.Notifier) (*docservice.Service, *storage.FS, *index.DB) {
	t.Helper()
	_, store := TestInbox(t)
	db := TestDB(t)
	svc, err := docservice.NewService(docservice.Deps{
		Store:    store,
		DB:       db,
		Grader:   grading.NewClient(grading.Config{BaseURL: gradingURL}),
		Notifier: notifier,
		Logger:   QuietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc, store, db
}
