package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertTransaction_Idempotent(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	params := InsertTransactionParams{
		TxnHash:   "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
		UnixEpoch: 1700000000,
		Signer:    "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK",
		Fee:       5000,
	}

	require.NoError(t, store.InsertTransaction(ctx, params))

	// Re-delivery after a reconnect: same hash, possibly different
	// observation time. Must not error, must not duplicate, first row wins.
	duplicate := params
	duplicate.UnixEpoch = 1700000999
	require.NoError(t, store.InsertTransaction(ctx, duplicate))

	count, err := store.CountTransactions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	txn, err := store.GetTransaction(ctx, params.TxnHash)
	require.NoError(t, err)
	assert.Equal(t, params.TxnHash, txn.TxnHash)
	assert.Equal(t, params.Signer, txn.Signer)
	assert.Equal(t, int64(5000), txn.Fee)
	assert.Equal(t, int64(1700000000), txn.UnixEpoch)
	assert.WithinDuration(t, time.Now(), txn.CreatedAt, 5*time.Second)
}

func TestListTransactions(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	base := int64(1700000000)
	for i, signer := range []string{"SignerA", "SignerB", "SignerA"} {
		require.NoError(t, store.InsertTransaction(ctx, InsertTransactionParams{
			TxnHash:   string(rune('a'+i)) + "hash",
			UnixEpoch: base + int64(i)*60,
			Signer:    signer,
			Fee:       int64(1000 * (i + 1)),
		}))
	}

	t.Run("all signers, newest first", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Limit: 10})
		require.NoError(t, err)
		require.Len(t, txns, 3)
		assert.Equal(t, "chash", txns[0].TxnHash)
		assert.Equal(t, "ahash", txns[2].TxnHash)
	})

	t.Run("filter by signer", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Signer: "SignerA", Limit: 10})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})

	t.Run("since cutoff", func(t *testing.T) {
		since := time.Unix(base+60, 0)
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Since: &since, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})

	t.Run("limit and offset", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, ListTransactionsParams{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, "bhash", txns[0].TxnHash)
	})

	t.Run("count by signer", func(t *testing.T) {
		count, err := store.CountTransactions(ctx, "SignerB")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestGetTransaction_NotFound(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	_, err := store.GetTransaction(context.Background(), "missing")
	assert.Error(t, err)
}
