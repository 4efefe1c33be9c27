package domain

import "errors"

// Fulfillment verdicts. All are terminal for the current call: none is
// retried internally, and infrastructure failures (provider timeouts, db
// errors) are deliberately kept distinct so callers can tell a policy
// violation from a transient fault.
var (
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrMalformedSession     = errors.New("session metadata missing listing id")
	ErrListingNotFound      = errors.New("listing not found")
	ErrAlreadySold          = errors.New("listing already sold")
	ErrShippingCostMismatch = errors.New("shipping cost mismatch")
	ErrAmountMismatch       = errors.New("amount mismatch")

	// ErrSaleExists is the storage layer's report of a unique violation on
	// the payment session id. Fulfillment resolves it by re-reading the
	// committed sale; it never escapes to callers.
	ErrSaleExists = errors.New("sale already recorded for session")

	ErrSaleNotFound     = errors.New("sale not found")
	ErrOwnListing       = errors.New("cannot buy your own listing")
	ErrNotSeller        = errors.New("sale belongs to another seller")
	ErrTrackingRequired = errors.New("tracking number required")
)

// ErrorKind maps a fulfillment error to the machine-readable kind exposed
// over HTTP. Unknown (infrastructure) errors return "".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrPaymentNotCompleted):
		return "payment_not_completed"
	case errors.Is(err, ErrMalformedSession):
		return "malformed_session"
	case errors.Is(err, ErrListingNotFound):
		return "listing_not_found"
	case errors.Is(err, ErrAlreadySold):
		return "already_sold"
	case errors.Is(err, ErrShippingCostMismatch):
		return "shipping_cost_mismatch"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrSaleNotFound):
		return "sale_not_found"
	case errors.Is(err, ErrOwnListing):
		return "own_listing"
	case errors.Is(err, ErrNotSeller):
		return "not_seller"
	case errors.Is(err, ErrTrackingRequired):
		return "tracking_required"
	}
	return ""
}
