// Package models defines the domain types for labdesk.
package models

import (
	"slices"
	"time"
)

// FileKind identifies how an uploaded source file is ingested.
type FileKind string

const (
	FileKindScript   FileKind = "script"
	FileKindNotebook FileKind = "notebook"
)

// CellKind is the notebook cell_type. Unrecognized types keep their literal
// value so they round-trip; use Known to tell them apart.
type CellKind string

const (
	CellCode     CellKind = "code"
	CellMarkdown CellKind = "markdown"
	CellRaw      CellKind = "raw"
	// CellUnknown is used when a cell has no cell_type at all.
	CellUnknown CellKind = "unknown"
)

// Known reports whether k is one of code, markdown or raw.
func (k CellKind) Known() bool {
	switch k {
	case CellCode, CellMarkdown, CellRaw:
		return true
	}
	return false
}

// OutputKind is the notebook output_type an Output was built from.
type OutputKind string

const (
	OutputStream        OutputKind = "stream"
	OutputExecuteResult OutputKind = "execute_result"
	OutputDisplayData   OutputKind = "display_data"
	OutputError         OutputKind = "error"
)

// Known reports whether k is an output type the parser renders.
func (k OutputKind) Known() bool {
	switch k {
	case OutputStream, OutputExecuteResult, OutputDisplayData, OutputError:
		return true
	}
	return false
}

// ItemKind is the payload type of a single OutputItem.
type ItemKind string

const (
	ItemStream ItemKind = "stream"
	ItemText   ItemKind = "text"
	ItemImage  ItemKind = "image"
	ItemHTML   ItemKind = "html"
	ItemError  ItemKind = "error"
)

// Document is the normalized result of ingesting one uploaded file.
// Cells and NotebookSummary are nil for scripts.
type Document struct {
	FileName        string           `json:"file_name"`
	FileKind        FileKind         `json:"file_kind"`
	FileSizeBytes   int64            `json:"file_size_bytes"`
	RawText         string           `json:"raw_text"`
	Cells           []Cell           `json:"cells,omitempty"`
	NotebookSummary *NotebookSummary `json:"notebook_summary,omitempty"`
}

// NotebookSummary tallies the cells of a notebook document.
type NotebookSummary struct {
	TotalCells        int `json:"total_cells"`
	CodeCellCount     int `json:"code_cell_count"`
	MarkdownCellCount int `json:"markdown_cell_count"`
}

// Cell is one notebook cell. Index is 1-based and follows notebook order.
type Cell struct {
	Index          int      `json:"index"`
	Kind           CellKind `json:"kind"`
	Source         string   `json:"source"`
	ExecutionCount *int     `json:"execution_count,omitempty"`
	Outputs        []Output `json:"outputs"`
}

// Output groups the items produced by one notebook output entry.
type Output struct {
	OutputKind OutputKind   `json:"output_kind"`
	Items      []OutputItem `json:"items"`
}

// OutputItem is a single rendered payload. Only the fields relevant to Kind are set.
type OutputItem struct {
	Kind           ItemKind `json:"kind"`
	Text           string   `json:"text,omitempty"`
	HTML           string   `json:"html,omitempty"`
	ImageData      string   `json:"image_data,omitempty"`
	ImageMIME      string   `json:"image_mime,omitempty"`
	ErrorName      string   `json:"error_name,omitempty"`
	ErrorValue     string   `json:"error_value,omitempty"`
	ErrorTraceback []string `json:"error_traceback,omitempty"`
}

// SourceMetadata is a lightweight representation returned by storage list operations.
type SourceMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of d. Nil and empty slices keep their form so
// the JSON encoding is unchanged.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.NotebookSummary != nil {
		s := *d.NotebookSummary
		out.NotebookSummary = &s
	}
	out.Cells = slices.Clone(d.Cells)
	for i := range out.Cells {
		c := &out.Cells[i]
		if c.ExecutionCount != nil {
			n := *c.ExecutionCount
			c.ExecutionCount = &n
		}
		c.Outputs = slices.Clone(c.Outputs)
		for j := range c.Outputs {
			o := &c.Outputs[j]
			o.Items = slices.Clone(o.Items)
			for k := range o.Items {
				o.Items[k].ErrorTraceback = slices.Clone(o.Items[k].ErrorTraceback)
			}
		}
	}
	return &out
}
