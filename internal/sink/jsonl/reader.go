package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

const (
	maxLineBytes        = 16 << 20
	minNameRunes        = 3
	minDescriptionRunes = 10
)

// ErrRejected marks a record that fails the quality filters.
var ErrRejected = errors.New("record rejected")

// Check applies the load-time quality filters to rec.
func Check(rec product.Record) error {
	switch {
	case rec.ID <= 0:
		return fmt.Errorf("%w: id must be > 0", ErrRejected)
	case rec.Price == nil || *rec.Price <= 0:
		return fmt.Errorf("%w: price must be > 0", ErrRejected)
	case rec.Name == nil || utf8.RuneCountInString(*rec.Name) < minNameRunes:
		return fmt.Errorf("%w: name too short", ErrRejected)
	case rec.Description == nil || utf8.RuneCountInString(*rec.Description) < minDescriptionRunes:
		return fmt.Errorf("%w: description too short", ErrRejected)
	}
	return nil
}

// Reader streams records that pass Check. Malformed and rejected lines are
// logged and skipped.
type Reader struct {
	sc       *bufio.Scanner
	logger   *zap.Logger
	line     int
	skipped  int
	rejected int
}

// NewReader wraps r. A nil logger disables warnings.
func NewReader(r io.Reader, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc, logger: logger}
}

// Next returns the next accepted record, or io.EOF when the input is drained.
// Sources are dropped from returned records.
func (r *Reader) Next() (product.Record, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" {
			continue
		}
		var rec product.Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			r.skipped++
			r.logger.Warn("skipping malformed line", zap.Int("line", r.line), zap.Error(err))
			continue
		}
		if err := Check(rec); err != nil {
			r.rejected++
			r.logger.Debug("record filtered", zap.Int("line", r.line), zap.Int64("id", rec.ID), zap.Error(err))
			continue
		}
		rec.Sources = product.NewSources()
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return product.Record{}, fmt.Errorf("scan jsonl line %d: %w", r.line+1, err)
	}
	return product.Record{}, io.EOF
}

// Skipped reports malformed lines seen so far.
func (r *Reader) Skipped() int { return r.skipped }

// Rejected reports well-formed records that failed Check.
func (r *Reader) Rejected() int { return r.rejected }

// ReadIDs returns the trimmed identifier lines of an id file.
// Blank lines and lines starting with '#' are ignored.
func ReadIDs(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return ids, nil
}
