// Package export renders documents into downloadable artifacts: the raw
// text file and a Markdown rendering of the whole notebook.
package export

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/labdesk/internal/models"
)

// RawFileName is the download name of a document's raw text.
func RawFileName(fileName string) string {
	return fileName + "_raw.txt"
}

// Exporter renders documents to Markdown. It is safe for concurrent use.
type Exporter struct {
	md     *converter.Converter
	policy *bluemonday.Policy
}

// New creates an Exporter.
func New() *Exporter {
	return &Exporter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Markdown renders doc. Scripts become a single python block. Notebook
// markdown cells are copied verbatim, code cells are fenced, text outputs are
// fenced as text, images become data-URI links and HTML outputs are
// sanitized and converted.
func (e *Exporter) Markdown(doc *models.Document) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.FileName)

	if doc.FileKind == models.FileKindScript {
		b.WriteString(fence("python", doc.RawText))
		return b.String(), nil
	}

	if s := doc.NotebookSummary; s != nil {
		fmt.Fprintf(&b, "_%d cells: %d code, %d markdown_\n", s.TotalCells, s.CodeCellCount, s.MarkdownCellCount)
	}

	for _, c := range doc.Cells {
		b.WriteString("\n")
		switch c.Kind {
		case models.CellMarkdown:
			b.WriteString(strings.TrimRight(c.Source, "\n"))
			b.WriteString("\n")
		case models.CellCode:
			b.WriteString(fence("python", c.Source))
			for _, out := range c.Outputs {
				for _, item := range out.Items {
					chunk, err := e.item(item)
					if err != nil {
						return "", fmt.Errorf("export: cell %d: %w", c.Index, err)
					}
					if chunk != "" {
						b.WriteString("\n")
						b.WriteString(chunk)
					}
				}
			}
		default:
			b.WriteString(fence("", c.Source))
		}
	}
	return b.String(), nil
}

func (e *Exporter) item(it models.OutputItem) (string, error) {
	switch it.Kind {
	case models.ItemStream, models.ItemText:
		return fence("text", it.Text), nil
	case models.ItemError:
		body := it.ErrorName + ": " + it.ErrorValue
		if len(it.ErrorTraceback) > 0 {
			body += "\n" + strings.Join(it.ErrorTraceback, "\n")
		}
		return fence("text", body), nil
	case models.ItemImage:
		return fmt.Sprintf("![output](%s)\n", dataURI(it.ImageMIME, it.ImageData)), nil
	case models.ItemHTML:
		md, err := e.md.ConvertString(e.policy.Sanitize(it.HTML))
		if err != nil {
			return "", err
		}
		md = strings.TrimSpace(md)
		if md == "" {
			return "", nil
		}
		return md + "\n", nil
	}
	return "", nil
}

// dataURI builds an inline image link. Notebook SVG payloads are plain XML,
// the raster formats are already base64.
func dataURI(mime, data string) string {
	if mime == "image/svg+xml" {
		data = base64.StdEncoding.EncodeToString([]byte(data))
	} else {
		data = strings.Join(strings.Fields(data), "")
	}
	return "data:" + mime + ";base64," + data
}

// fence wraps body in a code fence longer than any backtick run inside it.
func fence(lang, body string) string {
	ticks := 3
	run := 0
	for _, r := range body {
		if r == '`' {
			run++
			if run >= ticks {
				ticks = run + 1
			}
			continue
		}
		run = 0
	}
	f := strings.Repeat("`", ticks)
	body = strings.TrimRight(body, "\n")
	return f + lang + "\n" + body + "\n" + f + "\n"
}
