package feed

import (
	"fmt"
	"time"
)

// UpdateKind is the discriminant of the inbound update union.
type UpdateKind int

const (
	KindUnknown UpdateKind = iota
	KindTransaction
	KindPing
	KindPong
)

func (k UpdateKind) String() string {
	switch k {
	case KindTransaction:
		return "transaction"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Update is one inbound message from the feed. Exactly one payload pointer
// is set for the kinds that carry one; a message whose variant could not be
// determined classifies as KindUnknown and is a protocol violation for the
// dispatcher to surface.
type Update struct {
	Kind        UpdateKind
	Filters     []string
	CreatedAt   time.Time
	Transaction *TransactionPayload
	Ping        *PingPayload
	Pong        *PongPayload
}

// TransactionPayload is a decoded transaction update as delivered by the
// feed. AccountKeys are base58-encoded; by protocol convention the first
// entry is the fee payer (signer).
type TransactionPayload struct {
	Signature   []byte
	AccountKeys []string
	Slot        uint64
	Meta        *TransactionMeta
}

// TransactionMeta carries transaction metadata. Absent meta means the feed
// delivered a transaction we cannot derive a record from.
type TransactionMeta struct {
	Fee uint64
}

// PingPayload is a server-initiated keepalive probe.
type PingPayload struct {
	ID int32
}

// PongPayload acknowledges a ping we sent upstream.
type PongPayload struct {
	ID int32
}

// Commitment is how finalized the feed's view must be before delivery.
type Commitment int

const (
	CommitmentProcessed Commitment = iota
	CommitmentConfirmed
	CommitmentFinalized
)

func (c Commitment) String() string {
	switch c {
	case CommitmentProcessed:
		return "processed"
	case CommitmentConfirmed:
		return "confirmed"
	case CommitmentFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("commitment(%d)", int(c))
	}
}

// ParseCommitment parses a commitment level name. Empty string selects the
// default, finalized.
func ParseCommitment(s string) (Commitment, error) {
	switch s {
	case "processed":
		return CommitmentProcessed, nil
	case "confirmed":
		return CommitmentConfirmed, nil
	case "finalized", "":
		return CommitmentFinalized, nil
	default:
		return 0, fmt.Errorf("unknown commitment level %q (want processed, confirmed or finalized)", s)
	}
}

// SubscribeRequest describes one subscription: which accounts to match,
// the required commitment level, and optionally a ping acknowledgment when
// used as an outbound keepalive frame. Built once per session and never
// mutated afterwards.
type SubscribeRequest struct {
	Accounts   []string
	Commitment Commitment
	Ping       *PingRequest
}

// PingRequest is the outbound keepalive reply frame.
type PingRequest struct {
	ID int32
}
