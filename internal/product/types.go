package product

import (
	"encoding/json"
	"net/http"
	"time"
)

// SourceName identifies one upstream data source of the cascade.
type SourceName string

const (
	// SourcePrimaryAPI is the card detail API.
	SourcePrimaryAPI SourceName = "primary_api"
	// SourceShardJSON is the static card.json served by a basket host.
	SourceShardJSON SourceName = "shard_json"
	// SourceSecondaryAPI is the content API used as a description fallback.
	SourceSecondaryAPI SourceName = "secondary_api"
)

// EmptyPayload is stored for a source that yielded nothing usable.
var EmptyPayload = json.RawMessage(`{}`)

// Sources is the raw payload bag gathered by a single pipeline run.
type Sources struct {
	PrimaryAPI   json.RawMessage `json:"primary_api"`
	ShardJSON    json.RawMessage `json:"shard_json"`
	SecondaryAPI json.RawMessage `json:"secondary_api"`
}

// NewSources returns a bag with every source set to the empty object.
func NewSources() Sources {
	return Sources{
		PrimaryAPI:   EmptyPayload,
		ShardJSON:    EmptyPayload,
		SecondaryAPI: EmptyPayload,
	}
}

// Get returns the payload stored for name, or the empty object.
func (s Sources) Get(name SourceName) json.RawMessage {
	var raw json.RawMessage
	switch name {
	case SourcePrimaryAPI:
		raw = s.PrimaryAPI
	case SourceShardJSON:
		raw = s.ShardJSON
	case SourceSecondaryAPI:
		raw = s.SecondaryAPI
	}
	if len(raw) == 0 {
		return EmptyPayload
	}
	return raw
}

// Record is the normalized product produced by one acquisition.
// Optional scalars are nil when upstream did not provide a usable value.
type Record struct {
	ID               int64    `json:"id"`
	Name             *string  `json:"name"`
	Brand            *string  `json:"brand"`
	Supplier         *string  `json:"supplier"`
	Description      *string  `json:"description"`
	Price            *int64   `json:"price"`
	SalePrice        *int64   `json:"sale_price"`
	Rating           *float64 `json:"rating"`
	Feedbacks        *int64   `json:"feedbacks"`
	CategoryID       *int64   `json:"category_id"`
	CategoryParentID *int64   `json:"category_parent_id"`
	Root             *int64   `json:"root"`
	KindID           *int64   `json:"kind_id"`
	Colors           []string `json:"colors"`
	Sizes            []string `json:"sizes"`
	ImageURLs        []string `json:"image_urls"`
	TextIndex        string   `json:"text_index"`
	Sources          Sources  `json:"sources"`
}

// EmptyRecord returns a record carrying only id.
func EmptyRecord(id int64) Record {
	return Record{
		ID:        id,
		Colors:    []string{},
		Sizes:     []string{},
		ImageURLs: []string{},
		Sources:   NewSources(),
	}
}

// FetchRequest describes a single outbound GET.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures the outcome of one GET that reached the server.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// RunSummary is published when a batch acquisition finishes.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Total      int       `json:"total"`
	Written    int       `json:"written"`
	Failed     int       `json:"failed"`
	Stored     int       `json:"stored"`
	Rejected   int       `json:"rejected"`
	OutputURI  string    `json:"output_uri,omitempty"`
	Checksum   string    `json:"sha256,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
