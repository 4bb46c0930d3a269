package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/pipeline"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
	"github.com/JakeFAU/wb-product-ingest/internal/sink/jsonl"
	"github.com/JakeFAU/wb-product-ingest/internal/worker"
)

type fetchOptions struct {
	input       string
	output      string
	concurrency int
	skipStore   bool
}

func newFetchCmd() *cobra.Command {
	var opts fetchOptions
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Acquires every id in a file and writes records as JSONL",
		Long: `Reads product identifiers (numbers or product URLs, one per line), runs the
acquisition pipeline for each with bounded concurrency and writes one JSON
record per line. When configured, the output is uploaded to GCS, records are
upserted into Postgres and a run summary is published to Pub/Sub.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "file with one product id or URL per line")
	cmd.Flags().StringVar(&opts.output, "output", "out/products.jsonl", "destination JSONL file")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "override pipeline.concurrency")
	cmd.Flags().BoolVar(&opts.skipStore, "skip-store", false, "do not upsert into Postgres even if db.dsn is set")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runFetch(cmd *cobra.Command, opts fetchOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	logger := appInstance.Logger().Named("fetch")

	f, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("open id file: %w", err)
	}
	inputs, err := jsonl.ReadIDs(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	batch := appInstance.Batch()
	if opts.concurrency > 0 {
		batch = pipeline.NewBatch(appInstance.Acquirer(), opts.concurrency)
	}

	var store product.RecordStore
	if !opts.skipStore {
		ps, err := appInstance.ProductStore(ctx)
		if err != nil {
			return err
		}
		if ps != nil {
			store = ps
		}
	}
	blobs, err := appInstance.BlobStore(ctx)
	if err != nil {
		return err
	}
	publisher, err := appInstance.Publisher(ctx)
	if err != nil {
		return err
	}

	w, err := worker.New(batch, store, blobs, publisher, appInstance.IDs(), appInstance.Clock(), logger)
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}
	summary, err := w.Run(ctx, inputs, opts.output)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}
	logger.Info("fetch complete",
		zap.String("run_id", summary.RunID),
		zap.String("output", summary.OutputURI),
		zap.Int("written", summary.Written),
		zap.Int("failed", summary.Failed),
		zap.Int("stored", summary.Stored),
		zap.Int("rejected", summary.Rejected),
	)
	return nil
}
