package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/txingest/service/feed"
)

func TestRetryState_FirstAttemptHasZeroWait(t *testing.T) {
	r := NewRetryState(500*time.Millisecond, 60*time.Second)
	assert.Equal(t, time.Duration(0), r.Next())
	assert.Equal(t, 500*time.Millisecond, r.Next())
}

func TestRetryState_NonDecreasingUpToCap(t *testing.T) {
	initial := 500 * time.Millisecond
	maxWait := 60 * time.Second
	r := NewRetryState(initial, maxWait)

	prev := r.Next()
	require.Equal(t, time.Duration(0), prev)

	for i := 0; i < 30; i++ {
		wait := r.Next()
		assert.GreaterOrEqual(t, wait, prev, "wait %d decreased", i)
		assert.LessOrEqual(t, wait, maxWait)
		prev = wait
	}
	// Far enough into the schedule the cap is reached and held.
	assert.Equal(t, maxWait, prev)
}

func TestRetryState_AdvancesAcrossSessions(t *testing.T) {
	// The schedule position is never reset between attempts: a supervisor
	// calling Next once per session sees strictly the same sequence as a
	// single caller.
	r := NewRetryState(time.Second, time.Minute)
	waits := []time.Duration{r.Next(), r.Next(), r.Next(), r.Next()}
	assert.Equal(t, []time.Duration{0, time.Second, 1500 * time.Millisecond, 2250 * time.Millisecond}, waits)
	assert.Equal(t, 4, r.Attempts())
}

func supervisorForTest(dial func(ctx context.Context) (feed.Client, error), sink Sink, maxAttempts int) *Supervisor {
	return NewSupervisor(SupervisorConfig{
		Dial: dial,
		Request: &feed.SubscribeRequest{
			Accounts:   []string{"acct"},
			Commitment: feed.CommitmentFinalized,
		},
		Sink:        sink,
		Retry:       NewRetryState(time.Millisecond, 5*time.Millisecond),
		MaxAttempts: maxAttempts,
		Logger:      testLogger(),
	})
}

func TestSupervisor_RetriesTransientSessions(t *testing.T) {
	transportErr := &feed.TransportError{Op: "recv", Err: errors.New("reset")}
	dials := 0
	var clients []*fakeClient
	dial := func(ctx context.Context) (feed.Client, error) {
		dials++
		c := &fakeClient{streams: []*fakeStream{{steps: []recvStep{
			{update: txnUpdate(uint64(1000 + dials), "Signer")},
			{err: transportErr},
		}}}}
		clients = append(clients, c)
		return c, nil
	}
	sink := &fakeSink{}

	err := supervisorForTest(dial, sink, 3).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Equal(t, 3, dials)
	assert.Len(t, sink.records, 3)
	// Every connection is torn down before the next one is dialed.
	for _, c := range clients {
		assert.Equal(t, 1, c.closed)
	}
}

func TestSupervisor_RetriesCleanOutcome(t *testing.T) {
	// A cleanly closed stream is not permanent success; the supervisor
	// resubscribes.
	dials := 0
	dial := func(ctx context.Context) (feed.Client, error) {
		dials++
		return &fakeClient{streams: []*fakeStream{{}}}, nil
	}

	err := supervisorForTest(dial, &fakeSink{}, 2).Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, 2, dials)
}

func TestSupervisor_RetriesDialFailure(t *testing.T) {
	connectErr := &feed.ConnectError{Endpoint: "nats://example", Err: errors.New("refused")}
	dials := 0
	dial := func(ctx context.Context) (feed.Client, error) {
		dials++
		return nil, connectErr
	}

	err := supervisorForTest(dial, &fakeSink{}, 4).Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, 4, dials)
}

func TestSupervisor_CancelStopsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Long backoff so cancellation lands during the wait.
	sup := NewSupervisor(SupervisorConfig{
		Dial: func(ctx context.Context) (feed.Client, error) {
			return &fakeClient{streams: []*fakeStream{{}}}, nil
		},
		Request: &feed.SubscribeRequest{},
		Sink:    &fakeSink{},
		Retry:   NewRetryState(time.Hour, time.Hour),
		Logger:  testLogger(),
	})

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	// Let the first (zero-wait) session complete, then cancel during the
	// backoff before the second.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop after cancellation")
	}
}
