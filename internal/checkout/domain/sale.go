package domain

import "time"

// PlatformFeeCents is the flat surcharge added to every transaction.
const PlatformFeeCents = 100

// GuestBuyerID is the sentinel buyer identity for unauthenticated checkouts.
const GuestBuyerID = "guest"

// Sale is the durable record of a completed checkout. PaymentSessionID is
// unique across all sales; that uniqueness is what collapses duplicate
// fulfillment triggers into a single commit.
type Sale struct {
	ID               int64     `json:"id"`
	BuyerID          string    `json:"buyerId"`
	BuyerEmail       string    `json:"buyerEmail,omitempty"`
	SellerID         string    `json:"sellerId"`
	ListingID        int64     `json:"listingId"`
	AmountCents      int64     `json:"amount"`
	FeeCents         int64     `json:"fee"`
	ShippingCents    int64     `json:"shippingCost"`
	ShippingLabelURL string    `json:"shippingLabelUrl,omitempty"`
	TrackingNumber   string    `json:"trackingNumber,omitempty"`
	Shipped          bool      `json:"shipped"`
	IsInternational  bool      `json:"isInternational"`
	PaymentSessionID string    `json:"paymentSessionId"`
	CreatedAt        time.Time `json:"createdAt"`
}
