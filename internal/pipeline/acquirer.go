package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/merge"
	"github.com/JakeFAU/wb-product-ingest/internal/metrics"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

// ErrInvalidIdentifier is returned when no product id can be extracted from the input.
var ErrInvalidIdentifier = errors.New("invalid product identifier")

// Sources fetches the raw payload of each cascade step. Implementations
// never fail; an unusable source yields an empty object.
type Sources interface {
	PrimaryAPI(ctx context.Context, id int64) json.RawMessage
	ShardJSON(ctx context.Context, id int64) json.RawMessage
	SecondaryAPI(ctx context.Context, id int64) json.RawMessage
}

// Acquirer runs the source cascade for one identifier and merges the result.
type Acquirer struct {
	sources Sources
	merger  *merge.Merger
	logger  *zap.Logger
}

// NewAcquirer builds an Acquirer.
func NewAcquirer(sources Sources, merger *merge.Merger, logger *zap.Logger) (*Acquirer, error) {
	if sources == nil {
		return nil, fmt.Errorf("sources are required")
	}
	if merger == nil {
		return nil, fmt.Errorf("merger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{sources: sources, merger: merger, logger: logger}, nil
}

// Acquire normalizes input, fetches the sources in cascade order and returns
// the merged record. Upstream failures only leave fields empty; the error is
// non-nil solely for inputs without a usable identifier.
func (a *Acquirer) Acquire(ctx context.Context, input any) (product.Record, error) {
	id, ok := product.ExtractID(input)
	if !ok {
		a.logger.Warn("cannot extract product id", zap.Any("input", input))
		return product.EmptyRecord(0), fmt.Errorf("%w: %v", ErrInvalidIdentifier, input)
	}

	metrics.IncInflight()
	defer metrics.DecInflight()

	bag := product.NewSources()
	bag.PrimaryAPI = a.sources.PrimaryAPI(ctx, id)
	bag.ShardJSON = a.sources.ShardJSON(ctx, id)
	if _, found := merge.ShardDescription(bag.ShardJSON); !found {
		bag.SecondaryAPI = a.sources.SecondaryAPI(ctx, id)
	}

	rec := a.merger.Build(id, bag)
	_, from, _ := merge.ResolveDescription(rec.Sources)
	metrics.ObservePipeline(string(from))
	a.logger.Debug("product acquired",
		zap.Int64("id", rec.ID),
		zap.String("description_source", string(from)),
		zap.Int("images", len(rec.ImageURLs)),
	)
	return rec, nil
}
