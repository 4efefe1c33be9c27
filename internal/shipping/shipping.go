// Package shipping holds the carrier-facing types shared by the rate
// estimator and the label purchase flow.
package shipping

type Address struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type Rate struct {
	RateID        string `json:"rateId"`
	Carrier       string `json:"carrier"`
	Service       string `json:"service"`
	EstimatedDays int    `json:"estimatedDays"`
	// AmountCents is the quoted cost in minor currency units.
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type Label struct {
	LabelURL       string `json:"labelUrl"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl"`
}
