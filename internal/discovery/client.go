package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/metrics"
	"github.com/JakeFAU/wb-product-ingest/internal/payload"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
	"github.com/JakeFAU/wb-product-ingest/internal/retry"
)

const (
	// DefaultCatalogURLTemplate is the catalog listing endpoint; {shard} is substituted.
	DefaultCatalogURLTemplate = "https://catalog.wb.ru/catalog/{shard}/catalog"
	// DefaultRegions is tried first for every page.
	DefaultRegions = "80"
	// DefaultFallbackRegions is tried when the first region list yields nothing.
	DefaultFallbackRegions = "80,64,83,4,38,33,70,82,86,75,69,68,30,48,22,1,66,31,40"
	// DefaultPageLimit is the number of products requested per page.
	DefaultPageLimit = 100
	// DefaultThrottleDelay is slept after an HTTP 429.
	DefaultThrottleDelay = time.Second

	sourceCatalog = "catalog"
)

// ErrRateLimited is returned when every region attempt for a page hit HTTP 429.
var ErrRateLimited = errors.New("catalog rate limited")

// Config controls catalog requests.
type Config struct {
	CatalogURLTemplate string
	Regions            string
	FallbackRegions    string
	PageLimit          int
	ThrottleDelay      time.Duration
	UserAgent          string
}

// Client walks catalog pages for a category.
type Client struct {
	getter product.Getter
	cfg    Config
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// New builds a Client, filling unset config fields with defaults.
func New(getter product.Getter, cfg Config, logger *zap.Logger) (*Client, error) {
	if getter == nil {
		return nil, fmt.Errorf("getter is required")
	}
	if cfg.CatalogURLTemplate == "" {
		cfg.CatalogURLTemplate = DefaultCatalogURLTemplate
	}
	if cfg.Regions == "" {
		cfg.Regions = DefaultRegions
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.ThrottleDelay < 0 {
		cfg.ThrottleDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{getter: getter, cfg: cfg, logger: logger, sleep: retry.Sleep}, nil
}

// Discover fetches pages 1..pages and returns unique ids in order of first
// appearance. Failed pages are logged and skipped; only cancellation aborts.
func (c *Client) Discover(ctx context.Context, category Category, pages int) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return ids, fmt.Errorf("discover canceled: %w", err)
		}
		pageIDs, err := c.FetchPage(ctx, category, page)
		if err != nil {
			if ctx.Err() != nil {
				return ids, fmt.Errorf("discover canceled: %w", ctx.Err())
			}
			c.logger.Warn("catalog page failed", zap.Int("page", page), zap.Error(err))
			continue
		}
		added := 0
		for _, id := range pageIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			added++
		}
		c.logger.Info("catalog page collected",
			zap.Int("page", page),
			zap.Int("ids", len(pageIDs)),
			zap.Int("new", added),
		)
	}
	return ids, nil
}

// FetchPage returns the product ids listed on one catalog page. A page that
// is empty for the primary regions is retried with the fallback regions.
func (c *Client) FetchPage(ctx context.Context, category Category, page int) ([]int64, error) {
	attempts := []string{c.cfg.Regions}
	if c.cfg.FallbackRegions != "" && c.cfg.FallbackRegions != c.cfg.Regions {
		attempts = append(attempts, c.cfg.FallbackRegions)
	}

	var lastErr error
	for i, regions := range attempts {
		last := i == len(attempts)-1
		target := c.pageURL(category, page, regions)
		c.logger.Debug("requesting catalog page",
			zap.Int64("category", category.ID),
			zap.String("shard", category.Shard),
			zap.Int("page", page),
			zap.String("regions", regions),
		)
		resp, err := c.getter.Get(ctx, product.FetchRequest{
			URL:     target,
			Headers: http.Header{"User-Agent": {c.cfg.UserAgent}},
		})
		if err != nil {
			metrics.ObserveUpstream(sourceCatalog, metrics.OutcomeTransport, resp.Duration)
			return nil, fmt.Errorf("get catalog page %d: %w", page, err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			metrics.ObserveUpstream(sourceCatalog, metrics.OutcomeStatus, resp.Duration)
			lastErr = fmt.Errorf("%w: page %d regions %s", ErrRateLimited, page, regions)
			if err := c.sleep(ctx, c.cfg.ThrottleDelay); err != nil {
				return nil, fmt.Errorf("throttle canceled: %w", err)
			}
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			metrics.ObserveUpstream(sourceCatalog, metrics.OutcomeStatus, resp.Duration)
			return nil, fmt.Errorf("catalog page %d: unexpected status %d", page, resp.StatusCode)
		}
		if !strings.Contains(resp.ContentType(), "application/json") {
			metrics.ObserveUpstream(sourceCatalog, metrics.OutcomeDecode, resp.Duration)
			return nil, fmt.Errorf("catalog page %d: unexpected content type %q", page, resp.ContentType())
		}
		if !payload.Valid(resp.Body) {
			metrics.ObserveUpstream(sourceCatalog, metrics.OutcomeDecode, resp.Duration)
			return nil, fmt.Errorf("catalog page %d: invalid JSON", page)
		}
		metrics.ObserveUpstream(sourceCatalog, metrics.OutcomeOK, resp.Duration)

		ids := c.productIDs(payload.Parse(resp.Body))
		if len(ids) > 0 {
			return ids, nil
		}
		lastErr = nil
		if !last {
			c.logger.Info("no products for regions, trying fallback",
				zap.Int("page", page),
				zap.String("regions", regions),
			)
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (c *Client) productIDs(doc payload.Value) []int64 {
	var ids []int64
	for _, item := range doc.Path("data", "products").Items() {
		if !item.IsObject() {
			continue
		}
		id, ok := product.ExtractID(idInput(item.Get("id")))
		if !ok {
			c.logger.Debug("skipping product with unusable id", zap.String("id", item.Get("id").Raw()))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func idInput(v payload.Value) any {
	if v.IsNumber() {
		if n, ok := v.Int(); ok {
			return n
		}
		return nil
	}
	if s, ok := v.String(); ok && allDigits(s) {
		return s
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (c *Client) pageURL(category Category, page int, regions string) string {
	base := strings.ReplaceAll(c.cfg.CatalogURLTemplate, "{shard}", category.Shard)
	q := url.Values{}
	q.Set("sort", "popular")
	q.Set("appType", "1")
	q.Set("curr", "rub")
	q.Set("dest", "-1257786")
	q.Set("regions", regions)
	q.Set("resultset", "catalog")
	q.Set("limit", strconv.Itoa(c.cfg.PageLimit))
	q.Set("spp", "30")
	q.Set("cat", strconv.FormatInt(category.ID, 10))
	q.Set("page", strconv.Itoa(page))
	return base + "?" + q.Encode()
}
