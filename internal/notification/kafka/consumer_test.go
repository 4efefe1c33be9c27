package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDedup) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

func (d *memDedup) Seen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.SaleCompleted
	err    error
}

func (n *recordingNotifier) SaleCompleted(ctx context.Context, event domain.SaleCompleted) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func testConsumer(notifier Notifier, dedup DedupStore) *Consumer {
	return &Consumer{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		notifier: notifier,
		idem:     dedup,
		tracer:   otel.Tracer("notification-consumer-test"),
	}
}

func saleMessage(t *testing.T, offset int64) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(domain.SaleCompleted{
		ListingID:        7,
		BuyerID:          "buyer-1",
		SellerID:         "seller-1",
		AmountCents:      8500,
		FeeCents:         100,
		ShippingCents:    899,
		PaymentSessionID: "cs_1",
	})
	require.NoError(t, err)
	return kafka.Message{
		Topic:     "marketplace.sales",
		Partition: 0,
		Offset:    offset,
		Value:     payload,
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte(domain.EventSaleCompleted)}},
	}
}

func TestProcessNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	c := testConsumer(notifier, &memDedup{})

	commit := c.process(context.Background(), saleMessage(t, 1))
	assert.True(t, commit)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "cs_1", notifier.events[0].PaymentSessionID)
	assert.Equal(t, int64(8500), notifier.events[0].AmountCents)
}

func TestProcessDedupSkipsRedelivery(t *testing.T) {
	notifier := &recordingNotifier{}
	c := testConsumer(notifier, &memDedup{})

	msg := saleMessage(t, 1)
	assert.True(t, c.process(context.Background(), msg))
	assert.True(t, c.process(context.Background(), msg))
	assert.Len(t, notifier.events, 1)
}

func TestProcessIgnoresOtherEventTypes(t *testing.T) {
	notifier := &recordingNotifier{}
	c := testConsumer(notifier, &memDedup{})

	msg := saleMessage(t, 1)
	msg.Headers = []kafka.Header{{Key: "event_type", Value: []byte("listing.created")}}
	assert.True(t, c.process(context.Background(), msg))
	assert.Empty(t, notifier.events)
}

func TestProcessDedupFailureWithholdsCommit(t *testing.T) {
	notifier := &recordingNotifier{}
	c := testConsumer(notifier, &memDedup{err: errors.New("redis down")})

	assert.False(t, c.process(context.Background(), saleMessage(t, 1)))
	assert.Empty(t, notifier.events)
}

func TestProcessCommitsOnNotifierError(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	c := testConsumer(notifier, &memDedup{})

	assert.True(t, c.process(context.Background(), saleMessage(t, 1)), "a failed notification is not retried")
}

func TestProcessCommitsOnBadPayload(t *testing.T) {
	notifier := &recordingNotifier{}
	c := testConsumer(notifier, &memDedup{})

	msg := saleMessage(t, 1)
	msg.Value = []byte("not json")
	assert.True(t, c.process(context.Background(), msg))
	assert.Empty(t, notifier.events)
}
