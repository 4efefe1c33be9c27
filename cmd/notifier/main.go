package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	notifkafka "github.com/archive-commodities/marketplace/internal/notification/kafka"
	"github.com/archive-commodities/marketplace/pkg/idempotency"
	"github.com/archive-commodities/marketplace/pkg/logging"
	"github.com/archive-commodities/marketplace/pkg/shutdown"
	"github.com/archive-commodities/marketplace/pkg/tracing"
)

func main() {
	log := logging.New(env("LOG_LEVEL", "info"))

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	redisAddr := env("REDIS_ADDR", "localhost:6379")
	kafkaBrokers := strings.Split(env("KAFKA_ADDR", "localhost:9092"), ",")
	otlpURL := env("OTLP_URL", "http://localhost:4318")
	salesTopic := env("SALES_TOPIC", "marketplace.sales")
	group := env("KAFKA_GROUP", "notifier")

	tp, err := tracing.Init(ctx, "marketplace-notifier", otlpURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, 7*24*time.Hour)

	consumer := notifkafka.NewConsumer(log, kafkaBrokers, salesTopic, group, notifkafka.LogNotifier{Log: log}, idem)

	log.Info("notifier consuming", "topic", salesTopic, "group", group)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("marketplace-notifier shutdown complete")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
