// Package solana derives canonical transaction records from decoded feed
// payloads. It is pure: no I/O, same input always yields the same record.
package solana

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/brojonat/txingest/service/feed"
)

// signatureLength is the size of an ed25519 transaction signature.
const signatureLength = 64

// Decode failure sentinels. The dispatcher absorbs these locally (drop the
// update, keep the session alive); they never terminate a stream.
var (
	ErrMissingAccountKeys = errors.New("transaction has no account keys")
	ErrInvalidSignature   = errors.New("invalid signature length")
	ErrMissingMetadata    = errors.New("transaction has no metadata")
)

// Record is the canonical flat representation persisted per transaction.
// Immutable once built.
type Record struct {
	TxnHash    string
	Signer     string
	Fee        uint64
	ObservedAt time.Time
}

// DecodeRecord derives a Record from one transaction payload. The signer is
// the first account key (fee payer by protocol convention) and the hash is
// the base58 encoding of the signature bytes.
func DecodeRecord(p *feed.TransactionPayload, observedAt time.Time) (*Record, error) {
	if p == nil {
		return nil, ErrMissingMetadata
	}
	if len(p.AccountKeys) == 0 {
		return nil, ErrMissingAccountKeys
	}
	if p.Meta == nil {
		return nil, ErrMissingMetadata
	}
	if len(p.Signature) != signatureLength {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSignature, len(p.Signature), signatureLength)
	}

	sig := solana.SignatureFromBytes(p.Signature)
	return &Record{
		TxnHash:    sig.String(),
		Signer:     p.AccountKeys[0],
		Fee:        p.Meta.Fee,
		ObservedAt: observedAt,
	}, nil
}
