package domain

import "github.com/archive-commodities/marketplace/internal/shipping"

const PaymentStatusPaid = "paid"

// Metadata keys the checkout service writes onto the provider session at
// creation time. Fulfillment treats them as self-authored hints and
// re-verifies everything against the current catalog state.
const (
	MetaListingID     = "listingId"
	MetaSellerID      = "sellerId"
	MetaBuyerID       = "buyerId"
	MetaPlatformFee   = "platformFee"
	MetaShippingCost  = "shippingCost"
	MetaPackageSize   = "packageSize"
	MetaInternational = "isInternational"
)

// Session is the provider's view of a checkout, fetched by id. It is the
// single source of truth for payment status and the amount charged.
type Session struct {
	ID              string
	URL             string
	PaymentStatus   string
	AmountTotal     int64
	Metadata        map[string]string
	ShippingAddress *shipping.Address
	BuyerEmail      string
}

func (s Session) Paid() bool { return s.PaymentStatus == PaymentStatusPaid }
