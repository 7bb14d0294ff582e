//go:build !sqlite_fts5

package index

import (
	"strings"
	"testing"

	"github.com/starford/labdesk/internal/models"
)

func TestFallback_UpsertAndLikeSearch(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{Path: "lab/plot.ipynb", Title: "Plotting", Kind: models.FileKindNotebook, Checksum: "p1"}
	if err := db.UpsertDocument(row, "import matplotlib\nplt.show()"); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	row.Checksum = "p2"
	if err := db.UpsertDocument(row, "import seaborn"); err != nil {
		t.Fatalf("second UpsertDocument: %v", err)
	}

	results, err := db.Search("seaborn", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "lab/plot.ipynb" || results[0].Kind != "notebook" {
		t.Fatalf("results = %+v", results)
	}
	if !strings.Contains(results[0].Snippet, "seaborn") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
	if stale, _ := db.Search("matplotlib", 10); len(stale) != 0 {
		t.Errorf("old body still searchable: %+v", stale)
	}

	if err := db.DeleteDocument("lab/plot.ipynb"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if gone, _ := db.Search("seaborn", 10); len(gone) != 0 {
		t.Errorf("deleted document still searchable: %+v", gone)
	}
}
