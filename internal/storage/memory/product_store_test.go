package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

func TestProductStoreUpsertReplaces(t *testing.T) {
	t.Parallel()

	store := NewProductStore()
	ctx := context.Background()

	first := product.EmptyRecord(2)
	first.TextIndex = "old"
	require.NoError(t, store.Upsert(ctx, first))
	second := product.EmptyRecord(2)
	second.TextIndex = "new"
	require.NoError(t, store.Upsert(ctx, second))
	require.NoError(t, store.Upsert(ctx, product.EmptyRecord(1)))

	got, ok := store.Get(2)
	require.True(t, ok)
	require.Equal(t, "new", got.TextIndex)
	require.Equal(t, []int64{1, 2}, store.IDs())

	require.Error(t, store.Upsert(ctx, product.EmptyRecord(0)))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, store.Upsert(canceled, product.EmptyRecord(3)))
}
