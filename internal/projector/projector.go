// Package projector derives the compact plain-text form of a document that is
// submitted to the remote grading service.
package projector

import (
	"fmt"
	"strings"

	"github.com/starford/labdesk/internal/models"
)

// DefaultSubmissionLimit is the character budget applied before transmission.
const DefaultSubmissionLimit = 15000

const cellHeader = "# ── Cell %d ──────────────────────────"

// EvaluationText renders doc for a text-based evaluator. Scripts are returned
// unchanged. For notebooks only code cells are kept, numbered by their position
// among code cells, each followed by its stream, text and error outputs.
// Images and HTML are never included.
func EvaluationText(doc *models.Document) string {
	if doc.FileKind == models.FileKindScript {
		return doc.RawText
	}

	blocks := make([]string, 0, len(doc.Cells))
	n := 0
	for _, c := range doc.Cells {
		if c.Kind != models.CellCode {
			continue
		}
		n++
		var b strings.Builder
		fmt.Fprintf(&b, cellHeader, n)
		b.WriteByte('\n')
		b.WriteString(c.Source)

		if parts := outputParts(c.Outputs); len(parts) > 0 {
			b.WriteString("\n\n# Output:\n")
			b.WriteString(strings.Join(parts, "\n"))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func outputParts(outputs []models.Output) []string {
	var parts []string
	for _, out := range outputs {
		for _, item := range out.Items {
			switch item.Kind {
			case models.ItemStream, models.ItemText:
				parts = append(parts, item.Text)
			case models.ItemError:
				parts = append(parts, item.ErrorName+": "+item.ErrorValue)
			}
		}
	}
	return parts
}

// Truncate cuts s to at most limit characters. It is a hard cut, not aware of
// cells or sentences. A non-positive limit leaves s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
