package parser

import (
	"path/filepath"
	"strings"

	"github.com/starford/labdesk/internal/models"
)

// Title returns the first H1 heading of a notebook's markdown cells,
// otherwise the file name without its extension.
func Title(doc *models.Document) string {
	for _, c := range doc.Cells {
		if c.Kind != models.CellMarkdown {
			continue
		}
		if t := firstHeading(c.Source); t != "" {
			return t
		}
	}
	return strings.TrimSuffix(filepath.Base(doc.FileName), filepath.Ext(doc.FileName))
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
