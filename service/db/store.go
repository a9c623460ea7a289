package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for ingested transaction records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Transaction represents one persisted transaction record. The JSON tags
// match the column names so CLI jq filters can address fields directly.
type Transaction struct {
	TxnHash   string    `json:"txn_hash"`
	UnixEpoch int64     `json:"unix_epoch"`
	Signer    string    `json:"signer"`
	Fee       int64     `json:"fee"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertTransactionParams contains the parameters for persisting a record.
type InsertTransactionParams struct {
	TxnHash   string
	UnixEpoch int64
	Signer    string
	Fee       int64
}

// InsertTransaction persists one record. Inserting a txn_hash that already
// exists is a no-op, not an error: after a reconnect the feed may re-deliver
// updates we have already stored, and the row written first wins.
func (s *Store) InsertTransaction(ctx context.Context, params InsertTransactionParams) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO txns (txn_hash, unix_epoch, signer, fee)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (txn_hash) DO NOTHING`,
		params.TxnHash, params.UnixEpoch, params.Signer, params.Fee,
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", params.TxnHash, err)
	}
	return nil
}

// GetTransaction retrieves a transaction by its hash.
func (s *Store) GetTransaction(ctx context.Context, txnHash string) (*Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT txn_hash, unix_epoch, signer, fee, created_at
		 FROM txns WHERE txn_hash = $1`,
		txnHash,
	)

	var txn Transaction
	if err := row.Scan(&txn.TxnHash, &txn.UnixEpoch, &txn.Signer, &txn.Fee, &txn.CreatedAt); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", txnHash, err)
	}
	return &txn, nil
}

// ListTransactionsParams contains pagination and filter parameters.
type ListTransactionsParams struct {
	Signer string // empty matches all signers
	Since  *time.Time
	Limit  int32
	Offset int32
}

// ListTransactions retrieves records, newest first.
func (s *Store) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]*Transaction, error) {
	var since int64
	if params.Since != nil {
		since = params.Since.Unix()
	}

	rows, err := s.pool.Query(ctx,
		`SELECT txn_hash, unix_epoch, signer, fee, created_at
		 FROM txns
		 WHERE ($1 = '' OR signer = $1)
		   AND unix_epoch >= $2
		 ORDER BY unix_epoch DESC
		 LIMIT $3 OFFSET $4`,
		params.Signer, since, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Transaction, error) {
		var txn Transaction
		err := row.Scan(&txn.TxnHash, &txn.UnixEpoch, &txn.Signer, &txn.Fee, &txn.CreatedAt)
		return &txn, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return transactions, nil
}

// CountTransactions counts records, optionally restricted to one signer.
func (s *Store) CountTransactions(ctx context.Context, signer string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM txns WHERE ($1 = '' OR signer = $1)`,
		signer,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}
