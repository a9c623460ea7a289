package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/txingest/service/feed"
	"github.com/brojonat/txingest/service/metrics"
	"github.com/brojonat/txingest/service/solana"
)

// ErrUnexpectedUpdate reports an update whose kind the dispatcher does not
// handle. It ends the session so the supervisor re-establishes a fresh
// subscription instead of silently skipping a protocol mismatch.
var ErrUnexpectedUpdate = errors.New("unexpected update kind")

// pingReplyID is the fixed acknowledgment id the server expects back.
const pingReplyID = 1

// maxConsecutivePersistFailures bounds how many failed writes in a row the
// dispatcher absorbs before ending the session. A lost database connection
// heals through the supervisor's reconnect path, not by retrying in place.
const maxConsecutivePersistFailures = 5

// Dispatcher consumes the inbound stream one message at a time and routes
// each update by kind: transactions are decoded and persisted, pings are
// acknowledged on the outbound sender, pongs are ignored.
type Dispatcher struct {
	sink    Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher writing to the given sink.
func NewDispatcher(sink Sink, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, metrics: m, logger: logger}
}

// Run loops until the stream ends. It returns nil when the peer closed the
// stream cleanly and an error on any transport failure or protocol
// violation. A single malformed transaction update is dropped with a
// warning and does not end the session; a failed persist is likewise
// absorbed, up to maxConsecutivePersistFailures in a row.
func (d *Dispatcher) Run(ctx context.Context, sender feed.Sender, stream feed.Stream) error {
	persistFailures := 0

	for {
		u, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive update: %w", err)
		}

		d.metrics.RecordUpdateReceived(u.Kind.String())

		switch u.Kind {
		case feed.KindTransaction:
			rec, err := solana.DecodeRecord(u.Transaction, u.CreatedAt)
			if err != nil {
				// Bad record, not bad stream: drop it and keep going.
				d.logger.WarnContext(ctx, "dropping malformed transaction update",
					"filters", strings.Join(u.Filters, ","),
					"error", err,
				)
				d.metrics.RecordDecodeFailure(decodeReason(err))
				continue
			}

			start := time.Now()
			if err := d.sink.Persist(ctx, rec); err != nil {
				persistFailures++
				d.logger.ErrorContext(ctx, "failed to persist record",
					"txn_hash", rec.TxnHash,
					"consecutive_failures", persistFailures,
					"error", err,
				)
				d.metrics.RecordPersistFailure()
				if persistFailures >= maxConsecutivePersistFailures {
					return fmt.Errorf("persist failed %d times in a row: %w", persistFailures, err)
				}
				continue
			}
			persistFailures = 0
			d.metrics.RecordPersisted(time.Since(start).Seconds())

			d.logger.InfoContext(ctx, "transaction",
				"filters", strings.Join(u.Filters, ","),
				"txn_hash", rec.TxnHash,
				"signer", rec.Signer,
				"fee", rec.Fee,
				"unix_epoch", rec.ObservedAt.Unix(),
			)

		case feed.KindPing:
			// Keeps load balancers that expect periodic client pings alive.
			if err := sender.Send(ctx, &feed.SubscribeRequest{Ping: &feed.PingRequest{ID: pingReplyID}}); err != nil {
				return fmt.Errorf("send keepalive reply: %w", err)
			}
			d.metrics.RecordKeepaliveReply()

		case feed.KindPong:
			// Acknowledgment of our own ping; nothing to do.

		default:
			return fmt.Errorf("%w: %s", ErrUnexpectedUpdate, u.Kind)
		}
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, solana.ErrMissingAccountKeys):
		return "missing_account_keys"
	case errors.Is(err, solana.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, solana.ErrMissingMetadata):
		return "missing_metadata"
	default:
		return "other"
	}
}
