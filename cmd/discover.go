package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/discovery"
)

type discoverOptions struct {
	categories string
	catID      int64
	name       string
	pages      int
	output     string
}

func newDiscoverCmd() *cobra.Command {
	var opts discoverOptions
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Lists product ids for a catalog category",
		Long: `Looks a category up in the categories file by id or by case-insensitive
name, walks the requested number of catalog pages and writes the unique
product ids, one per line, in the order they were first seen.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.categories, "categories", "", "categories JSON file (default discovery.categories_path)")
	cmd.Flags().Int64Var(&opts.catID, "cat-id", 0, "category id")
	cmd.Flags().StringVar(&opts.name, "name", "", "category name")
	cmd.Flags().IntVar(&opts.pages, "pages", 1, "number of catalog pages to walk")
	cmd.Flags().StringVar(&opts.output, "output", "", "destination id file")
	cmd.MarkFlagsMutuallyExclusive("cat-id", "name")
	cmd.MarkFlagsOneRequired("cat-id", "name")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runDiscover(cmd *cobra.Command, opts discoverOptions) error {
	if opts.pages < 1 {
		return errors.New("--pages must be >= 1")
	}
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	logger := appInstance.Logger().Named("discover")

	path := opts.categories
	if path == "" {
		path = appInstance.Config().Discovery.CategoriesPath
	}
	f, err := os.Open(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("open categories: %w", err)
	}
	categories, err := discovery.LoadCategories(f, logger)
	_ = f.Close()
	if err != nil {
		return err
	}

	var category discovery.Category
	if cmd.Flags().Changed("cat-id") {
		category, err = discovery.FindByID(categories, opts.catID)
	} else {
		category, err = discovery.FindByName(categories, opts.name)
	}
	if err != nil {
		return err
	}

	client, err := appInstance.Discovery()
	if err != nil {
		return err
	}
	ids, err := client.Discover(ctx, category, opts.pages)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		logger.Warn("no product ids collected", zap.Int64("category", category.ID))
	}
	if err := writeIDs(opts.output, ids); err != nil {
		return err
	}
	logger.Info("discovery complete",
		zap.Int64("category", category.ID),
		zap.String("name", category.Name),
		zap.Int("ids", len(ids)),
		zap.String("output", opts.output),
	)
	return nil
}

func writeIDs(path string, ids []int64) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("create id file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close id file: %w", cerr)
		}
	}()
	w := bufio.NewWriter(f)
	for _, id := range ids {
		if _, err := w.WriteString(strconv.FormatInt(id, 10) + "\n"); err != nil {
			return fmt.Errorf("write id file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush id file: %w", err)
	}
	return nil
}
