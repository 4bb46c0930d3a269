// Package worker runs one batch acquisition end to end: acquire, write JSONL,
// upload, upsert and announce.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/hash/sha256"
	"github.com/JakeFAU/wb-product-ingest/internal/pipeline"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
	"github.com/JakeFAU/wb-product-ingest/internal/sink/jsonl"
)

// ContentType is attached to uploaded batch files.
const ContentType = "application/x-ndjson"

// Worker executes batch runs. Store, blobs and publisher are optional.
type Worker struct {
	batch     *pipeline.Batch
	store     product.RecordStore
	blobs     product.BlobStore
	publisher product.Publisher
	ids       product.IDGenerator
	clock     product.Clock
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	batch *pipeline.Batch,
	store product.RecordStore,
	blobs product.BlobStore,
	publisher product.Publisher,
	ids product.IDGenerator,
	clock product.Clock,
	logger *zap.Logger,
) (*Worker, error) {
	if batch == nil {
		return nil, fmt.Errorf("batch is required")
	}
	if ids == nil || clock == nil {
		return nil, fmt.Errorf("id generator and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		batch:     batch,
		store:     store,
		blobs:     blobs,
		publisher: publisher,
		ids:       ids,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Run acquires every input, writes records to outputPath in completion order
// and returns the run summary. Per-record failures are counted, not returned.
// Only records passing jsonl.Check reach the store.
func (w *Worker) Run(ctx context.Context, inputs []string, outputPath string) (product.RunSummary, error) {
	runID, err := w.ids.NewID()
	if err != nil {
		return product.RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	summary := product.RunSummary{RunID: runID, Total: len(inputs), OutputURI: outputPath}
	logger := w.logger.With(zap.String("run_id", runID))
	logger.Info("batch run started", zap.Int("inputs", len(inputs)), zap.Int("concurrency", w.batch.Limit()))

	if err := w.acquire(ctx, logger, inputs, outputPath, &summary); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("batch run canceled: %w", err)
	}

	checksum, err := sha256.File(outputPath)
	if err != nil {
		return summary, fmt.Errorf("checksum output: %w", err)
	}
	summary.Checksum = checksum

	if w.blobs != nil {
		uri, err := w.upload(ctx, runID, outputPath)
		if err != nil {
			return summary, err
		}
		summary.OutputURI = uri
		logger.Info("batch output uploaded", zap.String("uri", uri))
	}

	summary.FinishedAt = w.clock.Now()
	if w.publisher != nil {
		msgID, err := w.publisher.Publish(ctx, summary)
		if err != nil {
			return summary, fmt.Errorf("publish run summary: %w", err)
		}
		logger.Info("run summary published", zap.String("message_id", msgID))
	}

	logger.Info("batch run finished",
		zap.Int("written", summary.Written),
		zap.Int("failed", summary.Failed),
		zap.Int("stored", summary.Stored),
		zap.Int("rejected", summary.Rejected),
	)
	return summary, nil
}

func (w *Worker) acquire(
	ctx context.Context,
	logger *zap.Logger,
	inputs []string,
	outputPath string,
	summary *product.RunSummary,
) (err error) {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(outputPath) // #nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("create output %s: %w", outputPath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output %s: %w", outputPath, closeErr)
		}
	}()

	writer := jsonl.NewWriter(f)
	args := make([]any, len(inputs))
	for i, in := range inputs {
		args[i] = in
	}

	for res := range w.batch.Stream(ctx, args) {
		if res.Err != nil {
			summary.Failed++
			level := logger.Warn
			if errors.Is(res.Err, pipeline.ErrInvalidIdentifier) {
				level = logger.Info
			}
			level("input skipped", zap.Any("input", res.Input), zap.Error(res.Err))
			continue
		}
		if err := writer.Write(res.Record); err != nil {
			summary.Failed++
			logger.Warn("record not written", zap.Int64("id", res.Record.ID), zap.Error(err))
			continue
		}
		summary.Written++
		if w.store == nil {
			continue
		}
		// Outage records carry only an id; upserting them would null a good row.
		if err := jsonl.Check(res.Record); err != nil {
			summary.Rejected++
			logger.Info("record not stored", zap.Int64("id", res.Record.ID), zap.Error(err))
			continue
		}
		if err := w.store.Upsert(ctx, res.Record); err != nil {
			logger.Warn("record not stored", zap.Int64("id", res.Record.ID), zap.Error(err))
			continue
		}
		summary.Stored++
	}
	return writer.Flush()
}

func (w *Worker) upload(ctx context.Context, runID, outputPath string) (string, error) {
	f, err := os.Open(outputPath) // #nosec G304 -- file written by this run
	if err != nil {
		return "", fmt.Errorf("open output %s: %w", outputPath, err)
	}
	defer func() { _ = f.Close() }()
	uri, err := w.blobs.PutObject(ctx, runID+".jsonl", ContentType, f)
	if err != nil {
		return "", fmt.Errorf("upload output: %w", err)
	}
	return uri, nil
}
