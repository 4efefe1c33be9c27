package application

import (
	"context"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
	listingdomain "github.com/archive-commodities/marketplace/internal/listing/domain"
	"github.com/archive-commodities/marketplace/internal/shipping"
)

type SaleStore interface {
	// Create persists the sale, flips the listing's sold flag and writes the
	// outbox event as one transaction. It returns domain.ErrSaleExists when
	// another commit for the same payment session already won, and
	// domain.ErrAlreadySold when the listing was sold under a different
	// session.
	Create(ctx context.Context, sale domain.Sale, eventType string, payload []byte) (domain.Sale, error)
	BySession(ctx context.Context, sessionID string) (domain.Sale, error)
	ByID(ctx context.Context, id int64) (domain.Sale, error)
	ByBuyer(ctx context.Context, buyerID string) ([]domain.Sale, error)
	BySeller(ctx context.Context, sellerID string) ([]domain.Sale, error)
	AttachLabel(ctx context.Context, id int64, labelURL, trackingNumber string) (domain.Sale, error)
	MarkShipped(ctx context.Context, id int64, trackingNumber string) (domain.Sale, error)
}

type ListingStore interface {
	Get(ctx context.Context, id int64) (listingdomain.Listing, error)
}

type CreateSessionInput struct {
	Title       string
	Description string
	ImageURL    string
	// UnitAmountCents is the full charge: price + platform fee + shipping.
	UnitAmountCents int64
	SuccessURL      string
	CancelURL       string
	CollectAddress  bool
	International   bool
	Metadata        map[string]string
}

type PaymentProvider interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (domain.Session, error)
	// Session fetches the provider's own record by id; fulfillment never
	// trusts a session handed in by a caller.
	Session(ctx context.Context, id string) (domain.Session, error)
}

type ShippingProvider interface {
	EstimatedCost(size listingdomain.PackageSize) int64
	PurchaseLabel(ctx context.Context, to shipping.Address, size listingdomain.PackageSize) (shipping.Label, error)
}
