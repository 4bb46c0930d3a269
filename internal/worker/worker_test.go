package worker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wb-product-ingest/internal/clock/system"
	"github.com/JakeFAU/wb-product-ingest/internal/hash/sha256"
	"github.com/JakeFAU/wb-product-ingest/internal/pipeline"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
	memorypublisher "github.com/JakeFAU/wb-product-ingest/internal/publisher/memory"
	"github.com/JakeFAU/wb-product-ingest/internal/storage/memory"
)

type runnerFunc func(ctx context.Context, input any) (product.Record, error)

func (f runnerFunc) Acquire(ctx context.Context, input any) (product.Record, error) {
	return f(ctx, input)
}

type staticIDs string

func (s staticIDs) NewID() (string, error) { return string(s), nil }

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("no entropy") }

type failingStore struct{}

func (failingStore) Upsert(context.Context, product.Record) error { return errors.New("db down") }

func fakeRunner() runnerFunc {
	return func(_ context.Context, input any) (product.Record, error) {
		id, ok := product.ExtractID(input)
		if !ok {
			return product.EmptyRecord(0), pipeline.ErrInvalidIdentifier
		}
		return completeRecord(id), nil
	}
}

func completeRecord(id int64) product.Record {
	name, desc, price := "Desk lamp", "Adjustable LED desk lamp", int64(1990)
	rec := product.EmptyRecord(id)
	rec.Name, rec.Description, rec.Price = &name, &desc, &price
	rec.TextIndex = "desk lamp adjustable led desk lamp"
	return rec
}

var finished = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestRunWritesUploadsStoresAndPublishes(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out", "batch.jsonl")
	blobs := memory.NewBlobStore()
	store := memory.NewProductStore()
	pub := memorypublisher.New()

	w, err := New(pipeline.NewBatch(fakeRunner(), 2), store, blobs, pub, staticIDs("run-1"), system.Fixed(finished), nil)
	require.NoError(t, err)

	summary, err := w.Run(context.Background(), []string{"10", "abc", "30", "20"}, out)
	require.NoError(t, err)

	local, err := os.ReadFile(out)
	require.NoError(t, err)
	digest, err := sha256.Reader(bytes.NewReader(local))
	require.NoError(t, err)

	assert.Equal(t, product.RunSummary{
		RunID:      "run-1",
		Total:      4,
		Written:    3,
		Failed:     1,
		Stored:     3,
		Rejected:   0,
		OutputURI:  "memory://run-1.jsonl",
		Checksum:   digest,
		FinishedAt: finished,
	}, summary)
	assert.Equal(t, []int64{10, 20, 30}, store.IDs())
	assert.Equal(t, []product.RunSummary{summary}, pub.Summaries())

	uploaded, ok := blobs.Object("run-1.jsonl")
	require.True(t, ok)
	assert.Equal(t, local, uploaded)

	lines := strings.Split(strings.TrimSpace(string(local)), "\n")
	require.Len(t, lines, 3)
	sort.Strings(lines)
	assert.True(t, strings.HasPrefix(lines[0], `{"id":10,`))
}

func TestRunWithoutOptionalSinks(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "batch.jsonl")
	w, err := New(pipeline.NewBatch(fakeRunner(), 1), nil, nil, nil, staticIDs("run-2"), system.Fixed(finished), nil)
	require.NoError(t, err)

	summary, err := w.Run(context.Background(), []string{"5"}, out)
	require.NoError(t, err)
	assert.Equal(t, out, summary.OutputURI)
	assert.Equal(t, 1, summary.Written)
	assert.Equal(t, 0, summary.Stored)
}

func TestRunCountsStoreFailures(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "batch.jsonl")
	w, err := New(pipeline.NewBatch(fakeRunner(), 1), failingStore{}, nil, nil, staticIDs("run-3"), system.New(), nil)
	require.NoError(t, err)

	summary, err := w.Run(context.Background(), []string{"5", "6"}, out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 0, summary.Stored)
	assert.Equal(t, 0, summary.Failed)
}

func TestRunDoesNotStoreIncompleteRecords(t *testing.T) {
	t.Parallel()

	store := memory.NewProductStore()
	require.NoError(t, store.Upsert(context.Background(), completeRecord(10)))

	// upstream outage for 10 yields an id-only record
	runner := runnerFunc(func(_ context.Context, input any) (product.Record, error) {
		id, _ := product.ExtractID(input)
		if id == 10 {
			return product.EmptyRecord(id), nil
		}
		return completeRecord(id), nil
	})
	out := filepath.Join(t.TempDir(), "batch.jsonl")
	w, err := New(pipeline.NewBatch(runner, 1), store, nil, nil, staticIDs("run-4"), system.Fixed(finished), nil)
	require.NoError(t, err)

	summary, err := w.Run(context.Background(), []string{"10", "11"}, out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 1, summary.Rejected)

	kept, ok := store.Get(10)
	require.True(t, ok)
	require.NotNil(t, kept.Name)
	assert.Equal(t, "Desk lamp", *kept.Name)
	require.NotNil(t, kept.Price)
	assert.Equal(t, int64(1990), *kept.Price)
	assert.Equal(t, []int64{10, 11}, store.IDs())
}

func TestRunCanceledSkipsUploadAndPublish(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blobs := memory.NewBlobStore()
	pub := memorypublisher.New()
	w, err := New(pipeline.NewBatch(fakeRunner(), 1), nil, blobs, pub, staticIDs("run-4"), system.New(), nil)
	require.NoError(t, err)

	_, err = w.Run(ctx, []string{"1"}, filepath.Join(t.TempDir(), "batch.jsonl"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.Summaries())
	_, ok := blobs.Object("run-4.jsonl")
	assert.False(t, ok)
}

func TestNewAndRunErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil, nil, nil, staticIDs("x"), system.New(), nil)
	require.Error(t, err)
	_, err = New(pipeline.NewBatch(fakeRunner(), 1), nil, nil, nil, nil, system.New(), nil)
	require.Error(t, err)

	w, err := New(pipeline.NewBatch(fakeRunner(), 1), nil, nil, nil, failingIDs{}, system.New(), nil)
	require.NoError(t, err)
	_, err = w.Run(context.Background(), nil, filepath.Join(t.TempDir(), "x.jsonl"))
	require.ErrorContains(t, err, "generate run id")
}
