//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"

	"github.com/starford/labdesk/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents_fts`).Scan(&count); err != nil {
		t.Fatalf("documents_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{
		Path:     "fts.py",
		Title:    "FTS Script",
		Kind:     models.FileKindScript,
		Checksum: "f1",
	}
	if err := db.UpsertDocument(row, "def powerful_search():\n    return regression"); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	results, err := db.Search("regression", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.py" {
		t.Errorf("path = %q", results[0].Path)
	}
	if !strings.Contains(results[0].Snippet, "<b>regression</b>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFTS5_DeleteRemovesEntry(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "x.py", Kind: models.FileKindScript}, "vanishing")
	_ = db.DeleteDocument("x.py")

	results, _ := db.Search("vanishing", 10)
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %+v", results)
	}
}
