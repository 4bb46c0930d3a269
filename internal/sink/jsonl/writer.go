// Package jsonl reads and writes product records as newline-delimited JSON.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

// Writer appends one record per line. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	enc     *json.Encoder
	written int
}

// NewWriter wraps w in a buffered JSONL encoder.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// Write encodes rec as a single line.
func (w *Writer) Write(rec product.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record %d: %w", rec.ID, err)
	}
	w.written++
	return nil
}

// Flush pushes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush jsonl: %w", err)
	}
	return nil
}

// Written reports how many records were encoded.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}
