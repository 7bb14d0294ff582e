// Package parser turns uploaded Python scripts and Jupyter notebooks into
// normalized models.Document values.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/models"
)

// Source describes a classified upload before its content is parsed.
type Source struct {
	Name string
	Kind models.FileKind
	Size int64
}

// Classify decides the file kind from the file name extension.
// Anything other than .py or .ipynb is rejected before parsing.
func Classify(fileName string, size int64) (Source, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".py":
		return Source{Name: fileName, Kind: models.FileKindScript, Size: size}, nil
	case ".ipynb":
		return Source{Name: fileName, Kind: models.FileKindNotebook, Size: size}, nil
	}
	return Source{}, fmt.Errorf("parser: classify %q: %w", fileName, apperr.ErrUnsupportedFileType)
}

// Supported reports whether fileName would pass Classify.
func Supported(fileName string) bool {
	_, err := Classify(fileName, 0)
	return err == nil
}

// Extract classifies fileName and runs the matching adapter over data.
func Extract(fileName string, data []byte) (*models.Document, error) {
	src, err := Classify(fileName, int64(len(data)))
	if err != nil {
		return nil, err
	}
	if src.Kind == models.FileKindNotebook {
		return ParseNotebook(src, data)
	}
	return ParseScript(src, data), nil
}

// ParseScript wraps script text verbatim. It performs no syntax validation.
func ParseScript(src Source, data []byte) *models.Document {
	return &models.Document{
		FileName:      src.Name,
		FileKind:      models.FileKindScript,
		FileSizeBytes: src.Size,
		RawText:       string(data),
	}
}
