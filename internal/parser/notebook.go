package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/models"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// imageMIMEs are checked in this order for every rich output.
var imageMIMEs = []string{"image/png", "image/jpeg", "image/gif", "image/svg+xml"}

type rawCell struct {
	CellType       looseString    `json:"cell_type"`
	Source         multiline      `json:"source"`
	ExecutionCount executionCount `json:"execution_count"`
	Outputs        looseList      `json:"outputs"`
}

type rawOutput struct {
	OutputType looseString `json:"output_type"`
	Text       multiline   `json:"text"`
	Data       mimeBundle  `json:"data"`
	Ename      looseString `json:"ename"`
	Evalue     looseString `json:"evalue"`
	Traceback  lines       `json:"traceback"`
}

// ParseNotebook decodes notebook JSON into an ordered list of cells and the
// flattened raw text projection. Any decode failure of the top-level object,
// its cells array or a cell entry yields apperr.ErrMalformedNotebook and no document.
func ParseNotebook(src Source, data []byte) (*models.Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, malformed(src.Name, "top level is not a JSON object")
	}

	var entries []json.RawMessage
	if raw, ok := top["cells"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, malformed(src.Name, "cells is not an array")
		}
	}

	var raw strings.Builder
	cells := make([]models.Cell, 0, len(entries))
	summary := &models.NotebookSummary{}

	for i, entry := range entries {
		if !isObject(entry) {
			return nil, malformed(src.Name, fmt.Sprintf("cell %d is not an object", i+1))
		}
		var rc rawCell
		if err := json.Unmarshal(entry, &rc); err != nil {
			return nil, malformed(src.Name, fmt.Sprintf("cell %d: %v", i+1, err))
		}

		kind := models.CellKind(rc.CellType)
		if kind == "" {
			kind = models.CellUnknown
		}
		source := string(rc.Source)

		raw.WriteString(source)
		if source != "" && !strings.HasSuffix(source, "\n") {
			raw.WriteByte('\n')
		}

		switch kind {
		case models.CellCode:
			summary.CodeCellCount++
		case models.CellMarkdown:
			summary.MarkdownCellCount++
		}

		cell := models.Cell{
			Index:   i + 1,
			Kind:    kind,
			Source:  source,
			Outputs: []models.Output{},
		}
		if kind == models.CellCode {
			cell.ExecutionCount = rc.ExecutionCount.n
		}
		// Markdown and raw cells never carry outputs.
		if kind != models.CellMarkdown && kind != models.CellRaw {
			cell.Outputs = parseOutputs(rc.Outputs, &raw)
		}
		cells = append(cells, cell)
	}
	summary.TotalCells = len(cells)

	return &models.Document{
		FileName:        src.Name,
		FileKind:        models.FileKindNotebook,
		FileSizeBytes:   src.Size,
		RawText:         raw.String(),
		Cells:           cells,
		NotebookSummary: summary,
	}, nil
}

// parseOutputs converts the outputs of one cell, appending their plain-text
// projection to raw. Outputs that produce no items are dropped.
func parseOutputs(entries looseList, raw *strings.Builder) []models.Output {
	outputs := make([]models.Output, 0, len(entries))
	for _, entry := range entries {
		var ro rawOutput
		if !isObject(entry) || json.Unmarshal(entry, &ro) != nil {
			continue
		}
		kind := models.OutputKind(ro.OutputType)
		if !kind.Known() {
			continue
		}

		var items []models.OutputItem
		switch kind {
		case models.OutputStream:
			text := string(ro.Text)
			items = append(items, models.OutputItem{Kind: models.ItemStream, Text: text})
			raw.WriteString(text)

		case models.OutputExecuteResult, models.OutputDisplayData:
			for _, mime := range imageMIMEs {
				if img := string(ro.Data[mime]); img != "" {
					items = append(items, models.OutputItem{Kind: models.ItemImage, ImageData: img, ImageMIME: mime})
				}
			}
			if plain := string(ro.Data["text/plain"]); plain != "" {
				items = append(items, models.OutputItem{Kind: models.ItemText, Text: plain})
				raw.WriteString(plain)
				raw.WriteByte('\n')
			}
			if html := string(ro.Data["text/html"]); html != "" {
				items = append(items, models.OutputItem{Kind: models.ItemHTML, HTML: html})
			}

		case models.OutputError:
			tb := make([]string, len(ro.Traceback))
			for i, line := range ro.Traceback {
				tb[i] = StripANSI(line)
			}
			items = append(items, models.OutputItem{
				Kind:           models.ItemError,
				ErrorName:      string(ro.Ename),
				ErrorValue:     string(ro.Evalue),
				ErrorTraceback: tb,
			})
			raw.WriteString(strings.Join(tb, "\n"))
			raw.WriteByte('\n')
		}

		if len(items) > 0 {
			outputs = append(outputs, models.Output{OutputKind: kind, Items: items})
		}
	}
	return outputs
}

// StripANSI removes terminal color sequences of the form ESC[<params>m.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func malformed(name, reason string) error {
	return fmt.Errorf("parser: notebook %q: %s: %w", name, reason, apperr.ErrMalformedNotebook)
}

func isObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func isNull(b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
