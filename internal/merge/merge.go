// Package merge turns the raw payload bag of one acquisition into a
// normalized product record. It is pure: identical payloads always produce
// identical records.
package merge

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/payload"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
	"github.com/JakeFAU/wb-product-ingest/internal/shard"
)

// DefaultImageURLTemplate addresses product photos by volume, part, id and
// 1-based photo number.
const DefaultImageURLTemplate = "https://images.wbstatic.net/big/new/{vol}/{part}/{id}-{n}.jpg"

var descriptionKeys = []string{"description", "descriptionText", "description_html", "text"}

var contentListKeys = []string{"products", "cards", "list"}

// Config controls record synthesis.
type Config struct {
	ImageURLTemplate string
}

// Merger builds records from raw payloads.
type Merger struct {
	imageTemplate string
	logger        *zap.Logger
}

// New builds a Merger.
func New(cfg Config, logger *zap.Logger) *Merger {
	tmpl := cfg.ImageURLTemplate
	if tmpl == "" {
		tmpl = DefaultImageURLTemplate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{imageTemplate: tmpl, logger: logger}
}

// ShardDescription extracts the description from a basket card payload.
func ShardDescription(raw json.RawMessage) (string, bool) {
	v := payload.Parse(raw)
	if s, ok := v.Get("description").String(); ok {
		return s, true
	}
	return v.FindString(descriptionKeys...)
}

// SecondaryDescription extracts the description from a content API payload,
// preferring entries of the nested product lists over the wrapper objects.
func SecondaryDescription(raw json.RawMessage) (string, bool) {
	v := payload.Parse(raw)
	if v.Empty() {
		return "", false
	}
	if s, ok := v.Get("description").String(); ok {
		return s, true
	}
	data := v.Get("data")
	if data.IsObject() {
		for _, key := range contentListKeys {
			for _, entry := range data.Get(key).Items() {
				if !entry.IsObject() {
					continue
				}
				if s, ok := entry.FindString(descriptionKeys...); ok {
					return s, true
				}
			}
		}
		if s, ok := data.FindString(descriptionKeys...); ok {
			return s, true
		}
	}
	return v.FindString(descriptionKeys...)
}

// ResolveDescription applies the description precedence over the bag and
// reports which source supplied it.
func ResolveDescription(src product.Sources) (string, product.SourceName, bool) {
	if s, ok := ShardDescription(src.Get(product.SourceShardJSON)); ok {
		return s, product.SourceShardJSON, true
	}
	if s, ok := SecondaryDescription(src.Get(product.SourceSecondaryAPI)); ok {
		return s, product.SourceSecondaryAPI, true
	}
	return "", "", false
}

// Build merges src into a record for inputID. Payloads that are not JSON
// objects are kept as product.EmptyPayload.
func (m *Merger) Build(inputID int64, src product.Sources) product.Record {
	rec := product.EmptyRecord(inputID)
	rec.Sources = product.Sources{
		PrimaryAPI:   objectOrEmpty(src.Get(product.SourcePrimaryAPI)),
		ShardJSON:    objectOrEmpty(src.Get(product.SourceShardJSON)),
		SecondaryAPI: objectOrEmpty(src.Get(product.SourceSecondaryAPI)),
	}

	primary := payload.Parse(rec.Sources.PrimaryAPI)
	item := primary.Path("data", "products").FirstObject()
	if !item.Exists() && !primary.Empty() {
		m.logger.Warn("card API returned no product details", zap.Int64("id", inputID))
	}

	if id, ok := item.Get("id").Int(); ok && id > 0 {
		rec.ID = id
	}
	rec.Name = text(item.Get("name"))
	rec.Brand = text(item.Get("brand"))
	rec.Supplier = text(item.Get("supplier"))

	rec.Price = integer(item.Get("priceU"))
	rec.SalePrice = integer(item.Get("salePriceU"))
	if rec.Price == nil || rec.SalePrice == nil {
		basic, sale := pricesFromSizes(item.Get("sizes"))
		if rec.Price == nil {
			rec.Price = basic
		}
		if rec.SalePrice == nil {
			rec.SalePrice = sale
		}
	}
	rec.Rating = rating(item)
	rec.Feedbacks = integer(item.Get("feedbacks"))
	rec.CategoryID = integer(item.Get("subjectId"))
	rec.CategoryParentID = integer(item.Get("subjectParentId"))
	rec.Root = integer(item.Get("root"))
	rec.KindID = integer(item.Get("kindId"))
	rec.Colors = namedList(item.Get("colors"), "name")
	rec.Sizes = namedList(item.Get("sizes"), "name", "origName")
	rec.ImageURLs = m.imageURLs(inputID, item, payload.Parse(rec.Sources.ShardJSON))

	if desc, _, ok := ResolveDescription(rec.Sources); ok {
		rec.Description = &desc
	} else {
		m.logger.Warn("description missing", zap.Int64("id", inputID))
	}

	rec.TextIndex = textIndex(rec.Name, rec.Brand, rec.Supplier, rec.Description)
	return rec
}

func objectOrEmpty(raw json.RawMessage) json.RawMessage {
	if !payload.Valid(raw) || !payload.Parse(raw).IsObject() {
		return product.EmptyPayload
	}
	return raw
}

func (m *Merger) imageURLs(id int64, item, shardCard payload.Value) []string {
	explicit := []string{}
	for _, entry := range item.Get("images").Items() {
		if s, ok := entry.Text(); ok {
			explicit = append(explicit, s)
		}
	}
	if len(explicit) > 0 {
		return explicit
	}

	count := int64(0)
	if pics, ok := item.Get("pics").Int(); ok {
		count = max(count, pics)
	}
	if photos, ok := shardCard.Path("media", "photo_count").Int(); ok {
		count = max(count, photos)
	}
	if count <= 0 || id <= 0 {
		return []string{}
	}

	vol := strconv.FormatInt(shard.Volume(id), 10)
	part := strconv.FormatInt(shard.Part(id), 10)
	ids := strconv.FormatInt(id, 10)
	urls := make([]string, 0, count)
	for n := int64(1); n <= count; n++ {
		urls = append(urls, strings.NewReplacer(
			"{vol}", vol,
			"{part}", part,
			"{id}", ids,
			"{n}", strconv.FormatInt(n, 10),
		).Replace(m.imageTemplate))
	}
	return urls
}

// pricesFromSizes returns the first size entry price object that yields a
// basic or a sale price.
func pricesFromSizes(sizes payload.Value) (*int64, *int64) {
	for _, entry := range sizes.Items() {
		price := entry.Get("price")
		if !price.IsObject() {
			continue
		}
		basic := lenientInteger(price.Get("basic"))
		// a zero product price means unset; total replaces it even when absent
		sale := lenientInteger(price.Get("product"))
		if sale == nil || *sale == 0 {
			sale = lenientInteger(price.Get("total"))
		}
		if basic != nil || sale != nil {
			return basic, sale
		}
	}
	return nil, nil
}

func rating(item payload.Value) *float64 {
	review, hasReview := item.Get("reviewRating").Float()
	if hasReview && review != 0 {
		return &review
	}
	if r, ok := item.Get("rating").Float(); ok {
		return &r
	}
	if hasReview {
		return &review
	}
	return nil
}

func namedList(v payload.Value, keys ...string) []string {
	out := []string{}
	for _, entry := range v.Items() {
		if entry.IsObject() {
			for _, k := range keys {
				if s, ok := entry.Get(k).Text(); ok {
					out = append(out, s)
					break
				}
			}
			continue
		}
		if s, ok := entry.Text(); ok {
			out = append(out, s)
		}
	}
	return out
}

func textIndex(parts ...*string) string {
	var present []string
	for _, p := range parts {
		if p != nil && *p != "" {
			present = append(present, *p)
		}
	}
	return strings.Join(present, "\n")
}

func text(v payload.Value) *string {
	s, ok := v.Text()
	if !ok || s == "" {
		return nil
	}
	return &s
}

func integer(v payload.Value) *int64 {
	n, ok := v.Int()
	if !ok {
		return nil
	}
	return &n
}

func lenientInteger(v payload.Value) *int64 {
	n, ok := v.LenientInt()
	if !ok {
		return nil
	}
	return &n
}
