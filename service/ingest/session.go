package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/txingest/service/feed"
	"github.com/brojonat/txingest/service/metrics"
)

// OutcomeKind classifies how a session ended.
type OutcomeKind int

const (
	// OutcomeClean means the peer closed the stream without error.
	OutcomeClean OutcomeKind = iota
	// OutcomeTransient means anything else: transport failures, protocol
	// violations, subscribe failures. The supervisor retries all of them;
	// escalating a condition to non-retryable is a supervisor policy, not
	// a session one.
	OutcomeTransient
)

func (k OutcomeKind) String() string {
	if k == OutcomeClean {
		return "clean"
	}
	return "transient"
}

// Outcome is the result of one session.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Session owns one subscribe-to-termination lifecycle over a single
// connection. The connection is dialed by the supervisor and exclusively
// owned here until the session ends.
type Session struct {
	client     feed.Client
	req        *feed.SubscribeRequest
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewSession creates a session over an already-connected client.
func NewSession(client feed.Client, req *feed.SubscribeRequest, d *Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Session {
	return &Session{
		client:     client,
		req:        req,
		dispatcher: d,
		metrics:    m,
		logger:     logger,
	}
}

// Run opens the subscription and drives the dispatcher until the stream
// terminates, classifying the exit as Clean or Transient.
func (s *Session) Run(ctx context.Context) Outcome {
	sender, stream, err := s.client.Subscribe(ctx, s.req)
	if err != nil {
		return Outcome{Kind: OutcomeTransient, Err: fmt.Errorf("open subscription: %w", err)}
	}

	s.metrics.SetStreamConnected(true)
	defer s.metrics.SetStreamConnected(false)
	s.logger.InfoContext(ctx, "stream opened",
		"accounts", s.req.Accounts,
		"commitment", s.req.Commitment.String(),
	)

	if err := s.dispatcher.Run(ctx, sender, stream); err != nil {
		s.logger.ErrorContext(ctx, "stream failed", "error", err)
		return Outcome{Kind: OutcomeTransient, Err: err}
	}

	s.logger.InfoContext(ctx, "stream closed")
	return Outcome{Kind: OutcomeClean}
}
