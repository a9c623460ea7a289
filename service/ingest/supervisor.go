package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txingest/service/feed"
	"github.com/brojonat/txingest/service/metrics"
)

const backoffMultiplier = 1.5

// RetryState is the backoff schedule position. It advances across all
// sessions within a run and is never reset between attempts, capping at
// the maximum interval. The first attempt gets zero added delay.
type RetryState struct {
	initial  time.Duration
	max      time.Duration
	next     time.Duration
	attempts int
}

// NewRetryState creates a schedule starting at initial and multiplying by
// 1.5 per attempt up to max.
func NewRetryState(initial, max time.Duration) *RetryState {
	return &RetryState{initial: initial, max: max, next: initial}
}

// Next returns the wait to apply before the upcoming attempt and advances
// the schedule.
func (r *RetryState) Next() time.Duration {
	r.attempts++
	if r.attempts == 1 {
		return 0
	}

	wait := r.next
	r.next = time.Duration(float64(r.next) * backoffMultiplier)
	if r.next > r.max {
		r.next = r.max
	}
	if wait > r.max {
		wait = r.max
	}
	return wait
}

// Attempts returns how many attempts the schedule has served.
func (r *RetryState) Attempts() int { return r.attempts }

// SupervisorConfig wires a Supervisor.
type SupervisorConfig struct {
	// Dial establishes a fresh authenticated connection. Called once per
	// attempt; the supervisor closes the returned client when the session
	// ends.
	Dial func(ctx context.Context) (feed.Client, error)

	// Request is the immutable subscription request for every session.
	Request *feed.SubscribeRequest

	// Sink receives decoded records.
	Sink Sink

	// Retry is the backoff schedule. Defaults to 500ms..60s when nil.
	Retry *RetryState

	// MaxAttempts bounds the retry loop; 0 means retry forever.
	MaxAttempts int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Supervisor is the outer control loop: it dials a connection, runs one
// session over it, and reconnects with backoff when the session ends for
// any reason. A cleanly closed stream is retried too; continuous ingestion
// is the steady state, not a one-shot read.
type Supervisor struct {
	dial        func(ctx context.Context) (feed.Client, error)
	req         *feed.SubscribeRequest
	dispatcher  *Dispatcher
	retry       *RetryState
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewSupervisor creates a Supervisor from the given config.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	retry := cfg.Retry
	if retry == nil {
		retry = NewRetryState(500*time.Millisecond, 60*time.Second)
	}
	return &Supervisor{
		dial:        cfg.Dial,
		req:         cfg.Request,
		dispatcher:  NewDispatcher(cfg.Sink, cfg.Metrics, cfg.Logger),
		retry:       retry,
		maxAttempts: cfg.MaxAttempts,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Run loops until the context is cancelled (or MaxAttempts is exhausted,
// when configured). It returns ctx.Err() on shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if s.maxAttempts > 0 && attempt > s.maxAttempts {
			return fmt.Errorf("giving up after %d attempts", s.maxAttempts)
		}

		wait := s.retry.Next()
		s.metrics.RecordBackoff(wait.Seconds())
		if wait > 0 {
			s.logger.InfoContext(ctx, "waiting before reconnect",
				"wait", wait.String(),
				"attempt", attempt,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		client, err := s.dial(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to connect", "error", err, "attempt", attempt)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		session := NewSession(client, s.req, s.dispatcher, s.metrics, s.logger)
		outcome := session.Run(ctx)
		client.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.metrics.RecordSessionOutcome(outcome.Kind.String())
		switch outcome.Kind {
		case OutcomeClean:
			s.logger.InfoContext(ctx, "stream ended cleanly, resubscribing", "attempt", attempt)
		case OutcomeTransient:
			s.logger.ErrorContext(ctx, "session failed, will reconnect",
				"error", outcome.Err,
				"attempt", attempt,
			)
		}
	}
}
