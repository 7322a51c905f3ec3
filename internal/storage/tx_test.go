package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxBuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	backend := NewMemorySlotStore()
	slot := BaseSlot(NamespaceProfile, 1)

	tx := NewTx(backend)
	require.NoError(t, tx.Set(ctx, slot, WordFromUint64(7)))

	// Pending write is visible inside the tx but not in the backend.
	got, err := tx.Get(ctx, slot)
	require.NoError(t, err)
	require.Equal(t, WordFromUint64(7), got)

	got, err = backend.Get(ctx, slot)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	require.NoError(t, tx.Commit(ctx))
	got, err = backend.Get(ctx, slot)
	require.NoError(t, err)
	require.Equal(t, WordFromUint64(7), got)
}

func TestTxDiscardLeavesBackendUntouched(t *testing.T) {
	ctx := context.Background()
	backend := NewMemorySlotStore()
	slot := BaseSlot(NamespaceProfile, 2)

	tx := NewTx(backend)
	require.NoError(t, tx.Set(ctx, slot, WordFromUint64(9)))
	require.Equal(t, 1, tx.Writes())
	// No commit: dropping the tx is the rollback.

	got, err := backend.Get(ctx, slot)
	require.NoError(t, err)
	require.True(t, got.IsZero())
	require.Equal(t, 0, backend.Len())
}

func TestTxReadsThroughToBackend(t *testing.T) {
	ctx := context.Background()
	backend := NewMemorySlotStore()
	slot := BaseSlot(NamespaceProfile, 3)
	require.NoError(t, backend.Set(ctx, slot, WordFromUint64(5)))

	tx := NewTx(backend)
	got, err := tx.Get(ctx, slot)
	require.NoError(t, err)
	require.Equal(t, WordFromUint64(5), got)

	// The tx's own write shadows the backend value.
	require.NoError(t, tx.Set(ctx, slot, WordFromUint64(6)))
	got, err = tx.Get(ctx, slot)
	require.NoError(t, err)
	require.Equal(t, WordFromUint64(6), got)
}

func TestMemoryStoreZeroWordDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySlotStore()
	slot := BaseSlot(NamespaceProfile, 4)

	require.NoError(t, store.Set(ctx, slot, WordFromUint64(1)))
	require.Equal(t, 1, store.Len())

	require.NoError(t, store.Set(ctx, slot, Word{}))
	require.Equal(t, 0, store.Len())
}
