package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

// ProductStore keeps the latest record per id.
type ProductStore struct {
	mu      sync.RWMutex
	records map[int64]product.Record
}

// NewProductStore constructs an empty ProductStore.
func NewProductStore() *ProductStore {
	return &ProductStore{records: make(map[int64]product.Record)}
}

// Upsert stores rec, replacing any record with the same id.
func (s *ProductStore) Upsert(ctx context.Context, rec product.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("upsert canceled: %w", err)
	}
	if rec.ID <= 0 {
		return fmt.Errorf("record id must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

// Get returns the stored record for id.
func (s *ProductStore) Get(id int64) (product.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// IDs returns the stored ids in ascending order.
func (s *ProductStore) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
