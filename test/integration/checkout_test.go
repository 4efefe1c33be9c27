package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	checkoutdomain "github.com/archive-commodities/marketplace/internal/checkout/domain"
	checkoutpg "github.com/archive-commodities/marketplace/internal/checkout/infrastructure/postgres"
	listingdomain "github.com/archive-commodities/marketplace/internal/listing/domain"
	listingpg "github.com/archive-commodities/marketplace/internal/listing/infrastructure/postgres"
)

func setupEnv(t *testing.T) (*Env, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	env, err := Setup(ctx)
	if err != nil {
		t.Skipf("container environment unavailable: %v", err)
	}
	t.Cleanup(func() { env.Teardown(context.Background()) })

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return env, pool
}

func seedListing(t *testing.T, pool *pgxpool.Pool) listingdomain.Listing {
	t.Helper()
	repo := listingpg.NewRepository(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)
	l, err := repo.Create(context.Background(), listingdomain.Listing{
		SellerID:       "seller-1",
		Title:          "Chrome Hearts ring",
		Description:    "size 10",
		Condition:      listingdomain.ConditionGood,
		PriceCents:     45000,
		ImageURL:       "/images/ring.png",
		PackageSize:    listingdomain.PackageSmall,
		ShippingPaidBy: listingdomain.ShippingBuyerPays,
		WeightOunces:   4,
	})
	require.NoError(t, err)
	return l
}

func TestSaleCommitIsExactlyOnce(t *testing.T) {
	_, pool := setupEnv(t)
	ctx := context.Background()

	l := seedListing(t, pool)
	sales := checkoutpg.NewRepository(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)

	sale := checkoutdomain.Sale{
		BuyerID:          "buyer-1",
		SellerID:         l.SellerID,
		ListingID:        l.ID,
		AmountCents:      l.PriceCents,
		FeeCents:         checkoutdomain.PlatformFeeCents,
		ShippingCents:    599,
		PaymentSessionID: "cs_" + uuid.NewString(),
	}
	created, err := sales.Create(ctx, sale, checkoutdomain.EventSaleCompleted, []byte(`{}`))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	// Same session again: the unique constraint reports the duplicate.
	_, err = sales.Create(ctx, sale, checkoutdomain.EventSaleCompleted, []byte(`{}`))
	assert.ErrorIs(t, err, checkoutdomain.ErrSaleExists)

	// Different session against the now-sold listing.
	other := sale
	other.PaymentSessionID = "cs_" + uuid.NewString()
	_, err = sales.Create(ctx, other, checkoutdomain.EventSaleCompleted, []byte(`{}`))
	assert.ErrorIs(t, err, checkoutdomain.ErrAlreadySold)

	// Exactly one committed sale, listing flipped.
	got, err := sales.BySession(ctx, sale.PaymentSessionID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	listings := listingpg.NewRepository(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)
	reloaded, err := listings.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Sold)
}

func TestSaleCommitWritesOutboxEvent(t *testing.T) {
	_, pool := setupEnv(t)
	ctx := context.Background()

	l := seedListing(t, pool)
	sales := checkoutpg.NewRepository(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)

	// Commit under a live span: the stored event must carry its traceparent
	// so the dispatched kafka message continues the fulfillment trace.
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	spanCtx := trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	payload := []byte(`{"listingId":1,"sellerId":"seller-1"}`)
	sale := checkoutdomain.Sale{
		BuyerID:          "buyer-1",
		SellerID:         l.SellerID,
		ListingID:        l.ID,
		AmountCents:      l.PriceCents,
		FeeCents:         checkoutdomain.PlatformFeeCents,
		ShippingCents:    599,
		PaymentSessionID: "cs_" + uuid.NewString(),
	}
	_, err = sales.Create(spanCtx, sale, checkoutdomain.EventSaleCompleted, payload)
	require.NoError(t, err)

	store := checkoutpg.NewOutboxStore(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)
	events, err := store.LockBatch(ctx, "it-relay", 10, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, checkoutdomain.EventSaleCompleted, events[0].Type)
	assert.Equal(t, payload, events[0].Payload)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", events[0].Traceparent)

	require.NoError(t, store.MarkSent(ctx, []int64{events[0].ID}))
	events, err = store.LockBatch(ctx, "it-relay", 10, 5*time.Second)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestConcurrentSaleCommits(t *testing.T) {
	_, pool := setupEnv(t)
	ctx := context.Background()

	l := seedListing(t, pool)
	sales := checkoutpg.NewRepository(slog.New(slog.NewTextHandler(io.Discard, nil)), pool)
	sessionID := "cs_" + uuid.NewString()

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := sales.Create(ctx, checkoutdomain.Sale{
				BuyerID:          "buyer-1",
				SellerID:         l.SellerID,
				ListingID:        l.ID,
				AmountCents:      l.PriceCents,
				FeeCents:         checkoutdomain.PlatformFeeCents,
				ShippingCents:    599,
				PaymentSessionID: sessionID,
			}, checkoutdomain.EventSaleCompleted, []byte(`{}`))
			errs <- err
		}()
	}

	wins := 0
	for i := 0; i < callers; i++ {
		err := <-errs
		if err == nil {
			wins++
			continue
		}
		conflict := errors.Is(err, checkoutdomain.ErrSaleExists) || errors.Is(err, checkoutdomain.ErrAlreadySold)
		require.True(t, conflict, "loser must see a sale conflict, got %v", err)
	}
	assert.Equal(t, 1, wins, "exactly one concurrent commit wins")
}
