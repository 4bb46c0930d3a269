package product

import (
	"context"
	"io"
	"time"
)

// Getter performs a single HTTP GET without retries.
type Getter interface {
	Get(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates run and request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// RecordStore persists normalized records.
type RecordStore interface {
	Upsert(ctx context.Context, rec Record) error
}

// BlobStore uploads batch artifacts.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, summary RunSummary) (string, error)
}
