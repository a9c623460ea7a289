package ingest

import (
	"context"

	"github.com/brojonat/txingest/service/db"
	"github.com/brojonat/txingest/service/solana"
)

// Sink persists canonical records. Implementations must be idempotent on
// the record hash: persisting the same record twice leaves one row.
type Sink interface {
	Persist(ctx context.Context, rec *solana.Record) error
}

// StoreSink writes records through the Postgres store.
type StoreSink struct {
	store *db.Store
}

// NewStoreSink creates a Sink backed by the given store.
func NewStoreSink(store *db.Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Persist(ctx context.Context, rec *solana.Record) error {
	return s.store.InsertTransaction(ctx, db.InsertTransactionParams{
		TxnHash:   rec.TxnHash,
		UnixEpoch: rec.ObservedAt.Unix(),
		Signer:    rec.Signer,
		Fee:       int64(rec.Fee),
	})
}
