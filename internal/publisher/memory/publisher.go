// Package memory keeps published run summaries in memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

// Publisher stores published summaries for inspection.
type Publisher struct {
	mu        sync.RWMutex
	summaries []product.RunSummary
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the summary and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, summary product.RunSummary) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summary)
	return fmt.Sprintf("memory-%d", len(p.summaries)), nil
}

// Summaries returns the recorded publishes.
func (p *Publisher) Summaries() []product.RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]product.RunSummary, len(p.summaries))
	copy(out, p.summaries)
	return out
}
