// Package discovery lists product ids for a catalog category.
package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/JakeFAU/wb-product-ingest/internal/payload"
)

// ErrCategoryNotFound is returned when no category matches a lookup.
var ErrCategoryNotFound = errors.New("category not found")

// Category is one entry of the categories file.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Shard string `json:"shard"`
}

// LoadCategories parses a JSON list of categories, skipping malformed entries.
func LoadCategories(r io.Reader, logger *zap.Logger) ([]Category, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("parse categories: invalid JSON")
	}
	doc := payload.Parse(raw)
	if !doc.IsArray() {
		return nil, fmt.Errorf("parse categories: expected a list of objects")
	}

	var out []Category
	for i, entry := range doc.Items() {
		if !entry.IsObject() {
			logger.Warn("skipping malformed category entry", zap.Int("index", i))
			continue
		}
		idVal := entry.Get("id")
		id, ok := idVal.Int()
		if !ok || !idVal.IsNumber() {
			logger.Warn("category entry missing numeric id", zap.Int("index", i))
			continue
		}
		shard, ok := entry.Get("shard").String()
		if !ok {
			logger.Warn("category entry missing shard", zap.Int("index", i), zap.Int64("id", id))
			continue
		}
		name, ok := entry.Get("name").String()
		if !ok {
			logger.Warn("category entry missing name", zap.Int("index", i), zap.Int64("id", id))
			continue
		}
		out = append(out, Category{ID: id, Name: name, Shard: shard})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no valid categories loaded")
	}
	return out, nil
}

// FindByID returns the category with the given id.
func FindByID(categories []Category, id int64) (Category, error) {
	for _, c := range categories {
		if c.ID == id {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("%w: id %d", ErrCategoryNotFound, id)
}

// FindByName returns the first category whose name matches under Unicode
// case folding.
func FindByName(categories []Category, name string) (Category, error) {
	fold := cases.Fold()
	target := fold.String(name)
	for _, c := range categories {
		if fold.String(c.Name) == target {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("%w: name %q", ErrCategoryNotFound, name)
}
