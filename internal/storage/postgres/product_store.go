// Package postgres persists product records in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for product rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execPinger interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// ProductStore upserts product rows keyed by id.
type ProductStore struct {
	pool  execPinger
	table string
	clock product.Clock
}

// NewProductStore connects a pool using cfg.
func NewProductStore(ctx context.Context, cfg Config, clock product.Clock) (*ProductStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewProductStoreWithPool(pool, cfg.Table, clock)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewProductStoreWithPool constructs a store from an existing pool.
func NewProductStoreWithPool(pool execPinger, table string, clock product.Clock) (*ProductStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if table == "" {
		table = "products"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ProductStore{pool: pool, table: table, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *ProductStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *ProductStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Upsert inserts rec or replaces the existing row with the same id.
func (s *ProductStore) Upsert(ctx context.Context, rec product.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("product store is not configured")
	}
	if rec.ID <= 0 {
		return fmt.Errorf("record id must be > 0")
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	brand,
	supplier,
	description,
	price,
	sale_price,
	rating,
	feedbacks,
	category_id,
	category_parent_id,
	root,
	kind_id,
	colors,
	sizes,
	image_urls,
	text_index,
	sources,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	brand = EXCLUDED.brand,
	supplier = EXCLUDED.supplier,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	sale_price = EXCLUDED.sale_price,
	rating = EXCLUDED.rating,
	feedbacks = EXCLUDED.feedbacks,
	category_id = EXCLUDED.category_id,
	category_parent_id = EXCLUDED.category_parent_id,
	root = EXCLUDED.root,
	kind_id = EXCLUDED.kind_id,
	colors = EXCLUDED.colors,
	sizes = EXCLUDED.sizes,
	image_urls = EXCLUDED.image_urls,
	text_index = EXCLUDED.text_index,
	sources = EXCLUDED.sources,
	fetched_at = EXCLUDED.fetched_at`, s.table)

	args := []any{
		rec.ID,
		rec.Name,
		rec.Brand,
		rec.Supplier,
		rec.Description,
		rec.Price,
		rec.SalePrice,
		rec.Rating,
		rec.Feedbacks,
		rec.CategoryID,
		rec.CategoryParentID,
		rec.Root,
		rec.KindID,
		nonNil(rec.Colors),
		nonNil(rec.Sizes),
		nonNil(rec.ImageURLs),
		rec.TextIndex,
		sources,
		s.clock.Now(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert product %d: %w", rec.ID, err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
