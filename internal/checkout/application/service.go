package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
	listingdomain "github.com/archive-commodities/marketplace/internal/listing/domain"
)

// Service covers the interactive side of checkout: session creation, sale
// queries and the seller's ship action. Fulfillment itself lives on the
// Coordinator.
type Service struct {
	log      *slog.Logger
	sales    SaleStore
	listings ListingStore
	payments PaymentProvider
	shipping ShippingProvider
	baseURL  string
}

func NewService(log *slog.Logger, sales SaleStore, listings ListingStore, payments PaymentProvider, shipping ShippingProvider, baseURL string) *Service {
	return &Service{
		log:      log,
		sales:    sales,
		listings: listings,
		payments: payments,
		shipping: shipping,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// CreateCheckout builds a provider session for a listing. buyerID is empty
// for guests. The metadata written here is re-verified during fulfillment;
// it is a hint, never an input the coordinator trusts.
func (s *Service) CreateCheckout(ctx context.Context, listingID int64, buyerID string) (domain.Session, error) {
	l, err := s.listings.Get(ctx, listingID)
	if errors.Is(err, listingdomain.ErrListingNotFound) {
		return domain.Session{}, domain.ErrListingNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load listing %d: %w", listingID, err)
	}
	if l.Sold {
		return domain.Session{}, domain.ErrAlreadySold
	}
	if buyerID != "" && buyerID == l.SellerID {
		return domain.Session{}, domain.ErrOwnListing
	}

	shippingCost := ExpectedShippingCost(s.shipping, l)
	total := l.PriceCents + domain.PlatformFeeCents + shippingCost
	international := l.ShippingPaidBy == listingdomain.ShippingInternational

	metaBuyer := buyerID
	if metaBuyer == "" {
		metaBuyer = domain.GuestBuyerID
	}

	in := CreateSessionInput{
		Title:           l.Title,
		Description:     l.Description,
		ImageURL:        s.absoluteURL(l.ImageURL),
		UnitAmountCents: total,
		SuccessURL:      fmt.Sprintf("%s/checkout/success?session_id={CHECKOUT_SESSION_ID}&listing_id=%d", s.baseURL, l.ID),
		CancelURL:       fmt.Sprintf("%s/listings/%d", s.baseURL, l.ID),
		CollectAddress:  true,
		International:   international,
		Metadata: map[string]string{
			domain.MetaListingID:     strconv.FormatInt(l.ID, 10),
			domain.MetaSellerID:      l.SellerID,
			domain.MetaBuyerID:       metaBuyer,
			domain.MetaPlatformFee:   strconv.Itoa(domain.PlatformFeeCents),
			domain.MetaShippingCost:  strconv.FormatInt(shippingCost, 10),
			domain.MetaPackageSize:   string(l.PackageSize),
			domain.MetaInternational: strconv.FormatBool(international),
		},
	}
	sess, err := s.payments.CreateSession(ctx, in)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Service) absoluteURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return s.baseURL + u
}

func (s *Service) SalesByBuyer(ctx context.Context, buyerID string) ([]domain.Sale, error) {
	return s.sales.ByBuyer(ctx, buyerID)
}

func (s *Service) SalesBySeller(ctx context.Context, sellerID string) ([]domain.Sale, error) {
	return s.sales.BySeller(ctx, sellerID)
}

// MarkShipped records the seller's hand-off to the carrier. When the sale
// has no label yet (label purchase failed at fulfillment, or no address was
// collected) and no tracking number is supplied, nothing is invented: the
// seller's own tracking number is required.
func (s *Service) MarkShipped(ctx context.Context, saleID int64, sellerID, trackingNumber string) (domain.Sale, error) {
	sale, err := s.sales.ByID(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.SellerID != sellerID {
		return domain.Sale{}, domain.ErrNotSeller
	}
	if trackingNumber == "" {
		trackingNumber = sale.TrackingNumber
	}
	if trackingNumber == "" {
		return domain.Sale{}, domain.ErrTrackingRequired
	}
	return s.sales.MarkShipped(ctx, saleID, trackingNumber)
}
