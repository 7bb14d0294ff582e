package workspace

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/labdesk/internal/checksum"
	"github.com/starford/labdesk/internal/models"
	"github.com/starford/labdesk/internal/parser"
)

// DefaultCacheSize is used when a non-positive size is configured.
const DefaultCacheSize = 256

// Cache memoizes parse results by file name and content checksum.
// Parsing is deterministic, so a hit is indistinguishable from a fresh parse.
type Cache struct {
	docs *lru.Cache[string, *models.Document]
}

// NewCache creates a cache holding up to size documents.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *models.Document](size)
	if err != nil {
		return nil, fmt.Errorf("workspace: new cache: %w", err)
	}
	return &Cache{docs: c}, nil
}

// Extract returns the parsed document for data, parsing on a miss.
// Every call returns its own copy; failed parses are not cached.
func (c *Cache) Extract(fileName string, data []byte) (*models.Document, error) {
	key := fileName + "\x00" + checksum.Sum(data)
	if doc, ok := c.docs.Get(key); ok {
		return doc.Clone(), nil
	}
	doc, err := parser.Extract(fileName, data)
	if err != nil {
		return nil, err
	}
	c.docs.Add(key, doc.Clone())
	return doc, nil
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	return c.docs.Len()
}
