package domain

// EventSaleCompleted is the outbox event type written in the same
// transaction as the sale itself.
const EventSaleCompleted = "SaleCompleted"

type SaleCompleted struct {
	ListingID        int64  `json:"listingId"`
	BuyerID          string `json:"buyerId"`
	BuyerEmail       string `json:"buyerEmail,omitempty"`
	SellerID         string `json:"sellerId"`
	AmountCents      int64  `json:"amount"`
	FeeCents         int64  `json:"fee"`
	ShippingCents    int64  `json:"shippingCost"`
	IsInternational  bool   `json:"isInternational"`
	PaymentSessionID string `json:"paymentSessionId"`
}
