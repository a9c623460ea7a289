package ingest

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/brojonat/txingest/service/feed"
	"github.com/brojonat/txingest/service/solana"
)

// recvStep is one scripted result from a fake stream.
type recvStep struct {
	update *feed.Update
	err    error
}

// fakeStream replays a scripted sequence of Recv results, then io.EOF.
type fakeStream struct {
	steps []recvStep
	pos   int
}

func (s *fakeStream) Recv(ctx context.Context) (*feed.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.steps) {
		return nil, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	return step.update, step.err
}

// fakeSender records outbound frames.
type fakeSender struct {
	mu   sync.Mutex
	sent []*feed.SubscribeRequest
	err  error
}

func (s *fakeSender) Send(ctx context.Context, req *feed.SubscribeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, req)
	return nil
}

// fakeSink records persisted records and can be scripted to fail.
type fakeSink struct {
	mu       sync.Mutex
	records  []*solana.Record
	failNext int // fail this many calls before succeeding
	err      error
}

func (s *fakeSink) Persist(ctx context.Context, rec *solana.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != 0 {
		if s.failNext > 0 {
			s.failNext--
		}
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

// fakeClient serves one scripted stream per Subscribe call.
type fakeClient struct {
	streams      []*fakeStream
	sender       *fakeSender
	subscribeErr error
	subscribes   int
	closed       int
}

func (c *fakeClient) Subscribe(ctx context.Context, req *feed.SubscribeRequest) (feed.Sender, feed.Stream, error) {
	if c.subscribeErr != nil {
		return nil, nil, c.subscribeErr
	}
	i := c.subscribes
	c.subscribes++
	if i >= len(c.streams) {
		i = len(c.streams) - 1
	}
	if c.sender == nil {
		c.sender = &fakeSender{}
	}
	return c.sender, c.streams[i], nil
}

func (c *fakeClient) Close() error {
	c.closed++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func txnUpdate(fee uint64, keys ...string) *feed.Update {
	sig := make([]byte, 64)
	sig[0] = byte(fee) // vary the hash per update
	return &feed.Update{
		Kind:    feed.KindTransaction,
		Filters: []string{"client"},
		Transaction: &feed.TransactionPayload{
			Signature:   sig,
			AccountKeys: keys,
			Meta:        &feed.TransactionMeta{Fee: fee},
		},
	}
}
