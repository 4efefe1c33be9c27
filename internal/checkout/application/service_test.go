package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archive-commodities/marketplace/internal/checkout/application"
	"github.com/archive-commodities/marketplace/internal/checkout/domain"
	listingdomain "github.com/archive-commodities/marketplace/internal/listing/domain"
)

func newService(store *fakeStore, payments *fakePayments) *application.Service {
	return application.NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), store, store, payments, &fakeShipping{}, "https://market.example")
}

func TestCreateCheckoutBuildsSession(t *testing.T) {
	store := newFakeStore(testListing())
	payments := &fakePayments{}
	svc := newService(store, payments)

	sess, err := svc.CreateCheckout(context.Background(), 7, "buyer-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.URL)

	require.Len(t, payments.created, 1)
	in := payments.created[0]
	assert.Equal(t, int64(8500+100+899), in.UnitAmountCents)
	assert.True(t, in.CollectAddress)
	assert.False(t, in.International)
	assert.Contains(t, in.SuccessURL, "{CHECKOUT_SESSION_ID}")
	assert.Contains(t, in.SuccessURL, "listing_id=7")
	assert.Equal(t, "https://market.example/images/lgb_bono.png", in.ImageURL)

	assert.Equal(t, "7", in.Metadata[domain.MetaListingID])
	assert.Equal(t, "seller-1", in.Metadata[domain.MetaSellerID])
	assert.Equal(t, "buyer-1", in.Metadata[domain.MetaBuyerID])
	assert.Equal(t, "100", in.Metadata[domain.MetaPlatformFee])
	assert.Equal(t, "899", in.Metadata[domain.MetaShippingCost])
	assert.Equal(t, "medium", in.Metadata[domain.MetaPackageSize])
	assert.Equal(t, "false", in.Metadata[domain.MetaInternational])
}

func TestCreateCheckoutGuest(t *testing.T) {
	store := newFakeStore(testListing())
	payments := &fakePayments{}
	svc := newService(store, payments)

	_, err := svc.CreateCheckout(context.Background(), 7, "")
	require.NoError(t, err)
	require.Len(t, payments.created, 1)
	assert.Equal(t, domain.GuestBuyerID, payments.created[0].Metadata[domain.MetaBuyerID])
}

func TestCreateCheckoutInternational(t *testing.T) {
	l := testListing()
	flat := int64(2500)
	l.ShippingPaidBy = listingdomain.ShippingInternational
	l.InternationalShippingPriceCents = &flat
	store := newFakeStore(l)
	payments := &fakePayments{}
	svc := newService(store, payments)

	_, err := svc.CreateCheckout(context.Background(), 7, "buyer-1")
	require.NoError(t, err)
	require.Len(t, payments.created, 1)
	in := payments.created[0]
	assert.Equal(t, int64(8500+100+2500), in.UnitAmountCents)
	assert.True(t, in.International)
	assert.Equal(t, "true", in.Metadata[domain.MetaInternational])
}

func TestCreateCheckoutSoldListing(t *testing.T) {
	l := testListing()
	l.Sold = true
	svc := newService(newFakeStore(l), &fakePayments{})

	_, err := svc.CreateCheckout(context.Background(), 7, "buyer-1")
	assert.ErrorIs(t, err, domain.ErrAlreadySold)
}

func TestCreateCheckoutOwnListing(t *testing.T) {
	svc := newService(newFakeStore(testListing()), &fakePayments{})

	_, err := svc.CreateCheckout(context.Background(), 7, "seller-1")
	assert.ErrorIs(t, err, domain.ErrOwnListing)
}

func TestCreateCheckoutMissingListing(t *testing.T) {
	svc := newService(newFakeStore(), &fakePayments{})

	_, err := svc.CreateCheckout(context.Background(), 42, "buyer-1")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestMarkShipped(t *testing.T) {
	store := newFakeStore(testListing())
	payments := &fakePayments{sessions: map[string]domain.Session{
		"cs_1": paidSession("cs_1", 9499, sessionMeta(7, 899)),
	}}
	coord := newCoordinator(store, payments, &fakeShipping{})
	sale, err := coord.Fulfill(context.Background(), "cs_1")
	require.NoError(t, err)

	svc := newService(store, payments)

	_, err = svc.MarkShipped(context.Background(), sale.ID, "someone-else", "T1")
	assert.ErrorIs(t, err, domain.ErrNotSeller)

	_, err = svc.MarkShipped(context.Background(), sale.ID, "seller-1", "")
	assert.ErrorIs(t, err, domain.ErrTrackingRequired)

	shipped, err := svc.MarkShipped(context.Background(), sale.ID, "seller-1", "T1")
	require.NoError(t, err)
	assert.True(t, shipped.Shipped)
	assert.Equal(t, "T1", shipped.TrackingNumber)
}

func TestMarkShippedKeepsLabelTracking(t *testing.T) {
	store := newFakeStore(testListing())
	store.byID[1] = domain.Sale{ID: 1, SellerID: "seller-1", TrackingNumber: "LABEL-9", PaymentSessionID: "cs_x"}
	store.bySession["cs_x"] = store.byID[1]
	svc := newService(store, &fakePayments{})

	shipped, err := svc.MarkShipped(context.Background(), 1, "seller-1", "")
	require.NoError(t, err)
	assert.Equal(t, "LABEL-9", shipped.TrackingNumber)
	assert.True(t, shipped.Shipped)
}
