package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
	listingdomain "github.com/archive-commodities/marketplace/internal/listing/domain"
)

// Coordinator turns a confirmed payment into durable marketplace state
// exactly once. It is invoked from both the provider webhook and the
// client's post-redirect confirmation call, in any order, any number of
// times; the unique payment session id on the sales table is what makes the
// duplicate and racing invocations collapse into a single commit.
type Coordinator struct {
	log      *slog.Logger
	sales    SaleStore
	listings ListingStore
	payments PaymentProvider
	shipping ShippingProvider
}

func NewCoordinator(log *slog.Logger, sales SaleStore, listings ListingStore, payments PaymentProvider, shipping ShippingProvider) *Coordinator {
	return &Coordinator{
		log:      log,
		sales:    sales,
		listings: listings,
		payments: payments,
		shipping: shipping,
	}
}

func (c *Coordinator) Fulfill(ctx context.Context, sessionID string) (domain.Sale, error) {
	// Fast path: some trigger already fulfilled this session.
	sale, err := c.sales.BySession(ctx, sessionID)
	if err == nil {
		return sale, nil
	}
	if !errors.Is(err, domain.ErrSaleNotFound) {
		return domain.Sale{}, fmt.Errorf("lookup sale: %w", err)
	}

	// Only the provider's own record decides whether money moved. A
	// transport failure here is returned as-is so callers can retry; it must
	// not be confused with an unpaid session.
	sess, err := c.payments.Session(ctx, sessionID)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("retrieve session %s: %w", sessionID, err)
	}
	if !sess.Paid() {
		return domain.Sale{}, domain.ErrPaymentNotCompleted
	}

	listingID, err := strconv.ParseInt(sess.Metadata[domain.MetaListingID], 10, 64)
	if err != nil || listingID <= 0 {
		return domain.Sale{}, domain.ErrMalformedSession
	}
	listing, err := c.listings.Get(ctx, listingID)
	if errors.Is(err, listingdomain.ErrListingNotFound) {
		return domain.Sale{}, domain.ErrListingNotFound
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("load listing %d: %w", listingID, err)
	}
	if listing.Sold {
		return domain.Sale{}, domain.ErrAlreadySold
	}

	// Amount reconciliation against the *current* listing, not the session
	// metadata: the listing's price or shipping policy may have changed
	// between session creation and payment capture, and the money captured
	// must match what the catalog says now.
	shippingCost := ExpectedShippingCost(c.shipping, listing)
	declared, _ := strconv.ParseInt(sess.Metadata[domain.MetaShippingCost], 10, 64)
	if declared != shippingCost {
		return domain.Sale{}, domain.ErrShippingCostMismatch
	}
	expected := listing.PriceCents + domain.PlatformFeeCents + shippingCost
	if sess.AmountTotal != expected {
		return domain.Sale{}, domain.ErrAmountMismatch
	}

	buyerID := sess.Metadata[domain.MetaBuyerID]
	if buyerID == "" {
		buyerID = domain.GuestBuyerID
	}
	international := sess.Metadata[domain.MetaInternational] == "true"

	sale = domain.Sale{
		BuyerID:          buyerID,
		BuyerEmail:       sess.BuyerEmail,
		SellerID:         listing.SellerID,
		ListingID:        listing.ID,
		AmountCents:      listing.PriceCents,
		FeeCents:         domain.PlatformFeeCents,
		ShippingCents:    shippingCost,
		IsInternational:  international,
		PaymentSessionID: sessionID,
	}
	payload, err := json.Marshal(domain.SaleCompleted{
		ListingID:        sale.ListingID,
		BuyerID:          sale.BuyerID,
		BuyerEmail:       sale.BuyerEmail,
		SellerID:         sale.SellerID,
		AmountCents:      sale.AmountCents,
		FeeCents:         sale.FeeCents,
		ShippingCents:    sale.ShippingCents,
		IsInternational:  sale.IsInternational,
		PaymentSessionID: sale.PaymentSessionID,
	})
	if err != nil {
		return domain.Sale{}, fmt.Errorf("marshal event: %w", err)
	}

	created, err := c.sales.Create(ctx, sale, domain.EventSaleCompleted, payload)
	if errors.Is(err, domain.ErrSaleExists) {
		// Lost the duplicate-trigger race past the idempotency check; the
		// committed sale is the answer for every caller.
		return c.sales.BySession(ctx, sessionID)
	}
	if errors.Is(err, domain.ErrAlreadySold) {
		return domain.Sale{}, domain.ErrAlreadySold
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("commit sale: %w", err)
	}

	// Label purchase is best-effort after the commit. The financial
	// transaction is final; a label failure is logged and retried out of
	// band via the seller's ship action.
	if sess.ShippingAddress != nil {
		label, err := c.shipping.PurchaseLabel(ctx, *sess.ShippingAddress, listing.PackageSize)
		if err != nil {
			c.log.Error("shipping label purchase failed", "session_id", sessionID, "sale_id", created.ID, "err", err)
			return created, nil
		}
		updated, err := c.sales.AttachLabel(ctx, created.ID, label.LabelURL, label.TrackingNumber)
		if err != nil {
			c.log.Error("attach label failed", "sale_id", created.ID, "err", err)
			return created, nil
		}
		created = updated
	}
	return created, nil
}

// ExpectedShippingCost recomputes the shipping line from a listing's current
// policy. Checkout creation and fulfillment both use it, so a policy change
// in between shows up as a reconciliation failure.
func ExpectedShippingCost(provider ShippingProvider, l listingdomain.Listing) int64 {
	switch l.ShippingPaidBy {
	case listingdomain.ShippingSellerPays:
		return 0
	case listingdomain.ShippingInternational:
		if l.InternationalShippingPriceCents != nil {
			return *l.InternationalShippingPriceCents
		}
		return 0
	default:
		return provider.EstimatedCost(l.PackageSize)
	}
}
