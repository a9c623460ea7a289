package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubscribeSubject is where the feed server listens for new
	// subscription requests.
	SubscribeSubject = "feed.subscribe"

	connectTimeout = 10 * time.Second
)

// NATSClient is the NATS-backed feed transport. The feed server pushes
// update envelopes to a per-session inbox and listens for keepalive replies
// on a per-session control subject, both allocated at Subscribe time.
type NATSClient struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Dial connects and authenticates to the feed endpoint. The token is
// optional. Transport-level reconnection is disabled on purpose: session
// recovery is owned by the ingest supervisor, which must observe the
// failure and resubscribe from scratch.
func Dial(endpoint, token string, logger *slog.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name("txingest-feed"),
		nats.Timeout(connectTimeout),
		nats.NoReconnect(),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(endpoint, opts...)
	if err != nil {
		return nil, &ConnectError{Endpoint: endpoint, Err: err}
	}

	logger.Debug("connected to feed", "endpoint", endpoint)
	return &NATSClient{nc: nc, logger: logger}, nil
}

// Subscribe opens the bidirectional stream: it allocates the session
// subjects, registers the inbound subscription, and publishes the request.
func (c *NATSClient) Subscribe(ctx context.Context, req *SubscribeRequest) (Sender, Stream, error) {
	inbox := nats.NewInbox()
	control := nats.NewInbox()

	sub, err := c.nc.SubscribeSync(inbox)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe inbox: %w", err)
	}

	data, err := encodeSubscribeRequest(req, inbox, control)
	if err != nil {
		sub.Unsubscribe()
		return nil, nil, fmt.Errorf("encode subscribe request: %w", err)
	}
	if err := c.nc.Publish(SubscribeSubject, data); err != nil {
		sub.Unsubscribe()
		return nil, nil, &TransportError{Op: "send", Err: err}
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		sub.Unsubscribe()
		return nil, nil, &TransportError{Op: "send", Err: err}
	}

	c.logger.Debug("subscription opened",
		"accounts", req.Accounts,
		"commitment", req.Commitment.String(),
	)

	sender := &natsSender{nc: c.nc, subject: control, replyTo: inbox}
	return sender, &natsStream{sub: sub}, nil
}

// Close releases the connection. Safe to call more than once.
func (c *NATSClient) Close() error {
	c.nc.Close()
	return nil
}

// natsSender publishes outbound frames on the session control subject.
// The mutex keeps the outbound path single-writer even if a future caller
// sends from a second goroutine.
type natsSender struct {
	mu      sync.Mutex
	nc      *nats.Conn
	subject string
	replyTo string
}

func (s *natsSender) Send(ctx context.Context, req *SubscribeRequest) error {
	data, err := encodeSubscribeRequest(req, s.replyTo, s.subject)
	if err != nil {
		return fmt.Errorf("encode outbound request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nc.Publish(s.subject, data); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// natsStream yields inbound updates from the session inbox.
type natsStream struct {
	sub *nats.Subscription
}

func (s *natsStream) Recv(ctx context.Context) (*Update, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &TransportError{Op: "recv", Err: err}
	}

	u, eof := decodeUpdate(msg.Data)
	if eof {
		return nil, io.EOF
	}
	return u, nil
}
