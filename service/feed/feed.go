package feed

import (
	"context"
	"fmt"
)

// Client is one authenticated connection to the feed. A Client owns at most
// one live subscription; the ingest supervisor tears the whole Client down
// and dials a fresh one on any stream failure.
type Client interface {
	// Subscribe opens the bidirectional stream for the given request and
	// returns the outbound sender and the inbound stream. The returned
	// Stream yields updates until the stream ends (io.EOF) or a transport
	// error occurs.
	Subscribe(ctx context.Context, req *SubscribeRequest) (Sender, Stream, error)

	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}

// Sender is the outbound half of a subscription. Implementations serialize
// writes; callers may invoke Send from a different goroutine than the one
// reading the Stream.
type Sender interface {
	Send(ctx context.Context, req *SubscribeRequest) error
}

// Stream is the inbound half of a subscription. Recv blocks until the next
// update, the context is cancelled, the stream ends cleanly (io.EOF), or a
// transport error occurs.
type Stream interface {
	Recv(ctx context.Context) (*Update, error)
}

// ConnectError reports a failure to establish or authenticate a connection.
// The supervisor treats it as transient and retries with backoff.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TransportError reports a mid-stream send or receive failure. It ends the
// session; the supervisor reconnects.
type TransportError struct {
	Op  string // "send" or "recv"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
