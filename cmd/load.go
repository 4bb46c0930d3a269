package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
	"github.com/JakeFAU/wb-product-ingest/internal/sink/jsonl"
	"github.com/JakeFAU/wb-product-ingest/internal/state"
	"github.com/JakeFAU/wb-product-ingest/internal/storage/memory"
)

type loadOptions struct {
	input     string
	statePath string
	dryRun    bool
}

func newLoadCmd() *cobra.Command {
	var opts loadOptions
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Loads a JSONL batch into Postgres",
		Long: `Streams records from a JSONL file produced by fetch, drops records that fail
the quality filters (positive id and price, a name of at least 3 characters
and a description of at least 10), skips ids already recorded in the state
file and upserts the rest. Newly stored ids are added to the state file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "JSONL file to load")
	cmd.Flags().StringVar(&opts.statePath, "state", "", "state file (default state.path)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "filter and count without touching Postgres or the state file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runLoad(cmd *cobra.Command, opts loadOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	logger := appInstance.Logger().Named("load")

	statePath := opts.statePath
	if statePath == "" {
		statePath = appInstance.Config().State.Path
	}
	st, err := state.Load(statePath)
	if err != nil {
		return err
	}

	var store product.RecordStore
	if opts.dryRun {
		store = memory.NewProductStore()
	} else {
		ps, err := appInstance.ProductStore(ctx)
		if err != nil {
			return err
		}
		if ps == nil {
			return errors.New("db.dsn is required unless --dry-run is set")
		}
		store = ps
	}

	f, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := jsonl.NewReader(f, logger)
	var loaded, known, failed int
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load canceled: %w", err)
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if st.Has(rec.ID) {
			known++
			continue
		}
		if err := store.Upsert(ctx, rec); err != nil {
			failed++
			logger.Warn("upsert failed", zap.Int64("id", rec.ID), zap.Error(err))
			continue
		}
		st.Add(rec.ID)
		loaded++
	}

	if !opts.dryRun && loaded > 0 {
		if err := st.Save(statePath, appInstance.Clock().Now()); err != nil {
			return err
		}
	}
	logger.Info("load complete",
		zap.Int("loaded", loaded),
		zap.Int("already_loaded", known),
		zap.Int("failed", failed),
		zap.Int("malformed", reader.Skipped()),
		zap.Int("filtered", reader.Rejected()),
		zap.Bool("dry_run", opts.dryRun),
	)
	return nil
}
