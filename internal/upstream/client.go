package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/metrics"
	"github.com/JakeFAU/wb-product-ingest/internal/payload"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
	"github.com/JakeFAU/wb-product-ingest/internal/retry"
	"github.com/JakeFAU/wb-product-ingest/internal/shard"
)

// Client fetches raw payloads for each cascade source. Every failure is
// soft: callers receive product.EmptyPayload instead of an error.
type Client struct {
	getter  product.Getter
	cfg     Config
	policy  *retry.Policy
	locator *shard.Locator
	logger  *zap.Logger
	wait    func(ctx context.Context, attempt int) error
}

// New builds a Client.
func New(getter product.Getter, cfg Config, logger *zap.Logger) (*Client, error) {
	if getter == nil {
		return nil, fmt.Errorf("getter is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate upstream config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := retry.NewPolicy(cfg.Retry)
	return &Client{
		getter:  getter,
		cfg:     cfg,
		policy:  policy,
		locator: shard.NewLocator(cfg.MaxShardHost),
		logger:  logger,
		wait:    policy.Wait,
	}, nil
}

// PrimaryAPI fetches the card detail payload using the full retry budget.
func (c *Client) PrimaryAPI(ctx context.Context, id int64) json.RawMessage {
	target := c.cfg.cardURL(id)
	limit := c.policy.MaxAttempts()
	for attempt := 1; attempt <= limit; attempt++ {
		if raw, ok := c.fetchOnce(ctx, product.SourcePrimaryAPI, target, attempt); ok {
			return raw
		}
		if attempt == limit || !c.backoff(ctx, product.SourcePrimaryAPI, attempt) {
			break
		}
	}
	return product.EmptyPayload
}

// ShardJSON tries the located basket hosts once each. The attempt budget is
// shared across hosts and there is no backoff after the last host.
func (c *Client) ShardJSON(ctx context.Context, id int64) json.RawMessage {
	vol, part := shard.Volume(id), shard.Part(id)
	hosts := c.locator.Candidates(vol)
	limit := min(c.policy.MaxAttempts(), len(hosts))
	for i, host := range hosts[:limit] {
		attempt := i + 1
		if raw, ok := c.fetchOnce(ctx, product.SourceShardJSON, c.cfg.shardURL(host, vol, part, id), attempt); ok {
			return raw
		}
		if attempt == limit || !c.backoff(ctx, product.SourceShardJSON, attempt) {
			break
		}
	}
	return product.EmptyPayload
}

// SecondaryAPI tries every content URL per round, backing off between rounds.
func (c *Client) SecondaryAPI(ctx context.Context, id int64) json.RawMessage {
	limit := c.policy.MaxAttempts()
	for attempt := 1; attempt <= limit; attempt++ {
		for _, base := range c.cfg.ContentURLs {
			if raw, ok := c.fetchOnce(ctx, product.SourceSecondaryAPI, contentURL(base, id), attempt); ok {
				return raw
			}
		}
		if attempt == limit || !c.backoff(ctx, product.SourceSecondaryAPI, attempt) {
			break
		}
	}
	return product.EmptyPayload
}

func (c *Client) backoff(ctx context.Context, source product.SourceName, attempt int) bool {
	if err := c.wait(ctx, attempt); err != nil {
		c.logger.Debug("retries abandoned",
			zap.String("source", string(source)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return false
	}
	return true
}

// fetchOnce performs one GET and classifies the outcome.
func (c *Client) fetchOnce(ctx context.Context, source product.SourceName, target string, attempt int) (json.RawMessage, bool) {
	fields := []zap.Field{
		zap.String("source", string(source)),
		zap.String("url", target),
		zap.Int("attempt", attempt),
	}
	resp, err := c.getter.Get(ctx, product.FetchRequest{
		URL:     target,
		Headers: http.Header{"User-Agent": {c.cfg.UserAgent}},
	})
	if err != nil {
		metrics.ObserveUpstream(string(source), metrics.OutcomeTransport, resp.Duration)
		c.logger.Warn("upstream request failed", append(fields, zap.Error(err))...)
		return nil, false
	}
	if resp.StatusCode >= http.StatusBadRequest {
		metrics.ObserveUpstream(string(source), metrics.OutcomeStatus, resp.Duration)
		c.logger.Warn("upstream returned error status", append(fields, zap.Int("status", resp.StatusCode))...)
		return nil, false
	}
	if !payload.Valid(resp.Body) {
		metrics.ObserveUpstream(string(source), metrics.OutcomeDecode, resp.Duration)
		c.logger.Warn("upstream returned invalid JSON", append(fields, zap.Int("bytes", len(resp.Body)))...)
		return nil, false
	}
	metrics.ObserveUpstream(string(source), metrics.OutcomeOK, resp.Duration)
	if !payload.Parse(resp.Body).IsObject() {
		c.logger.Warn("upstream payload is not an object", fields...)
		return product.EmptyPayload, true
	}
	return json.RawMessage(resp.Body), true
}
