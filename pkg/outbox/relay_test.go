package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (p *fakeProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

type fakeOutboxStore struct {
	mu      sync.Mutex
	pending []Event
	sent    []int64
	failed  map[int64]string
}

func (s *fakeOutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch, nil
}

func (s *fakeOutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeOutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = make(map[int64]string)
	}
	s.failed[id] = errMsg
	return nil
}

func (s *fakeOutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	return nil
}

func TestDispatcherMessageShape(t *testing.T) {
	producer := &fakeProducer{}
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), producer, "marketplace.sales")

	event := Event{
		ID:            1,
		AggregateType: "sale",
		AggregateID:   "7",
		Type:          "sale.completed",
		Payload:       []byte(`{"listingId":7}`),
		Traceparent:   "00-abc-def-01",
	}
	require.NoError(t, d.Dispatch(context.Background(), event))
	require.Len(t, producer.msgs, 1)

	msg := producer.msgs[0]
	assert.Equal(t, "marketplace.sales", msg.Topic)
	assert.Equal(t, []byte("7"), msg.Key)
	assert.Equal(t, event.Payload, msg.Value)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "sale.completed", headers["event_type"])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
}

func TestDispatcherProducerError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unavailable")}
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), producer, "marketplace.sales")

	err := d.Dispatch(context.Background(), Event{ID: 1, AggregateID: "7"})
	assert.Error(t, err)
}

func TestRelayDrainsAndMarksSent(t *testing.T) {
	producer := &fakeProducer{}
	store := &fakeOutboxStore{pending: []Event{
		{ID: 1, AggregateID: "7", Type: "sale.completed", Payload: []byte(`{}`)},
		{ID: 2, AggregateID: "8", Type: "sale.completed", Payload: []byte(`{}`)},
	}}
	relay := NewRelay(slog.New(slog.NewTextHandler(io.Discard, nil)), store, NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), producer, "t"), "relay-test")
	relay.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, relay.Run(ctx))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 2}, store.sent)
	assert.Len(t, producer.msgs, 2)
	assert.Empty(t, store.failed)
}

func TestRelayMarksFailedDispatches(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unavailable")}
	store := &fakeOutboxStore{pending: []Event{
		{ID: 1, AggregateID: "7", Type: "sale.completed", Payload: []byte(`{}`)},
	}}
	relay := NewRelay(slog.New(slog.NewTextHandler(io.Discard, nil)), store, NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), producer, "t"), "relay-test")
	relay.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, relay.Run(ctx))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.sent)
	assert.Contains(t, store.failed, int64(1))
}
