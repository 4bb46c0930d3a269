// Package upstream fetches raw product payloads from the marketplace's
// card, basket and content endpoints, retrying soft failures with backoff.
package upstream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/wb-product-ingest/internal/retry"
)

// Endpoint defaults.
const (
	DefaultUserAgent        = "Mozilla/5.0 (compatible; WildberriesClient/1.0)"
	DefaultCardURL          = "https://card.wb.ru/cards/v2/detail"
	DefaultCardQuery        = "appType=1&curr=rub&dest=-1257786&spp=0"
	DefaultShardURLTemplate = "http://basket-{host}.wbbasket.ru/vol{vol}/part{part}/{id}/info/ru/card.json"
)

// DefaultContentURLs are tried in order on every content round.
var DefaultContentURLs = []string{
	"https://content.wb.ru/content/v2/cards/details",
	"https://content.wb.ru/content/v1/cards/detail",
}

// Config is the immutable endpoint and retry configuration of a Client.
type Config struct {
	UserAgent        string
	CardURL          string
	CardQuery        url.Values
	ShardURLTemplate string
	MaxShardHost     int
	ContentURLs      []string
	Retry            retry.Config
}

// DefaultConfig returns the production endpoints with the standard retry budget.
func DefaultConfig() Config {
	query, _ := url.ParseQuery(DefaultCardQuery)
	return Config{
		UserAgent:        DefaultUserAgent,
		CardURL:          DefaultCardURL,
		CardQuery:        query,
		ShardURLTemplate: DefaultShardURLTemplate,
		MaxShardHost:     32,
		ContentURLs:      append([]string(nil), DefaultContentURLs...),
		Retry: retry.Config{
			MaxAttempts: retry.DefaultMaxAttempts,
			BaseDelay:   retry.DefaultBaseDelay,
			MaxJitter:   retry.DefaultMaxJitter,
		},
	}
}

// Validate checks that every endpoint is usable.
func (c Config) Validate() error {
	if _, err := url.Parse(c.CardURL); err != nil || c.CardURL == "" {
		return fmt.Errorf("card url is invalid: %q", c.CardURL)
	}
	if !strings.Contains(c.ShardURLTemplate, "{host}") || !strings.Contains(c.ShardURLTemplate, "{id}") {
		return fmt.Errorf("shard url template must contain {host} and {id}")
	}
	if len(c.ContentURLs) == 0 {
		return fmt.Errorf("at least one content url is required")
	}
	return nil
}

func (c Config) cardURL(id int64) string {
	q := url.Values{}
	for k, vs := range c.CardQuery {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("nm", strconv.FormatInt(id, 10))
	return withQuery(c.CardURL, q)
}

func (c Config) shardURL(host int, vol, part, id int64) string {
	return strings.NewReplacer(
		"{host}", fmt.Sprintf("%02d", host),
		"{vol}", strconv.FormatInt(vol, 10),
		"{part}", strconv.FormatInt(part, 10),
		"{id}", strconv.FormatInt(id, 10),
	).Replace(c.ShardURLTemplate)
}

func contentURL(base string, id int64) string {
	return withQuery(base, url.Values{"nm": {strconv.FormatInt(id, 10)}})
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
