// Package kafka consumes SaleCompleted events and emits buyer/seller
// receipt notifications. Actual mail transport sits behind Notifier; the
// default implementation just logs.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
	"github.com/archive-commodities/marketplace/pkg/tracing"
)

type Notifier interface {
	SaleCompleted(ctx context.Context, event domain.SaleCompleted) error
}

type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) SaleCompleted(ctx context.Context, event domain.SaleCompleted) error {
	n.Log.Info("sale receipt",
		"listing_id", event.ListingID,
		"buyer_id", event.BuyerID,
		"seller_id", event.SellerID,
		"amount", event.AmountCents,
		"fee", event.FeeCents,
		"shipping", event.ShippingCents,
		"session_id", event.PaymentSessionID,
	)
	return nil
}

// DedupStore answers whether a consumed message was processed before.
// Implemented by pkg/idempotency.
type DedupStore interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

type Consumer struct {
	log      *slog.Logger
	reader   *kafka.Reader
	notifier Notifier
	idem     DedupStore
	tracer   trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, notifier Notifier, idem DedupStore) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:      log,
		reader:   r,
		notifier: notifier,
		idem:     idem,
		tracer:   otel.Tracer("notification-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if commit := c.process(ctx, msg); commit {
			_ = c.reader.CommitMessages(ctx, msg)
		}
	}
}

// process handles one fetched message and reports whether its offset should
// be committed. Only a failed dedup lookup withholds the commit so the
// message is re-fetched; everything else, including a failed notification,
// is committed to keep the group moving.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
		return false
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return true
	}

	if eventType := headerValue(msg.Headers, "event_type"); eventType != domain.EventSaleCompleted {
		c.log.Debug("ignoring event", "type", eventType)
		return true
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeSaleCompleted")
	defer span.End()

	var event domain.SaleCompleted
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		return true
	}

	if err := c.notifier.SaleCompleted(msgCtx, event); err != nil {
		c.log.Error("notification failed", "session_id", event.PaymentSessionID, "err", err)
	} else {
		c.log.Info("notification sent", "session_id", event.PaymentSessionID)
	}
	return true
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
