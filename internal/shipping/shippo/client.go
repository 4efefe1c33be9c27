// Package shippo talks to the Shippo REST API for live rates and label
// purchase. Without an API token it serves deterministic mock rates so the
// rest of the system keeps working in development.
package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	listingdomain "github.com/archive-commodities/marketplace/internal/listing/domain"
	"github.com/archive-commodities/marketplace/internal/shipping"
)

const defaultBaseURL = "https://api.goshippo.com"

const maxRates = 5

var ErrNoRates = errors.New("no shipping rates available")

// Fallback prices per package size, in cents. Also used as the pre-checkout
// estimate so the quoted shipping line never depends on a network call.
var estimatedCosts = map[listingdomain.PackageSize]int64{
	listingdomain.PackageSmall:  599,
	listingdomain.PackageMedium: 899,
	listingdomain.PackageLarge:  1299,
}

var warehouseAddress = shipping.Address{
	Name:    "Archive Commodities",
	Street1: "123 Archive Street",
	City:    "Los Angeles",
	State:   "CA",
	Zip:     "90001",
	Country: "US",
	Phone:   "+1 555 341 9393",
	Email:   "shipping@archive-commodities.com",
}

type Client struct {
	log     *slog.Logger
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(log *slog.Logger, apiKey string) *Client {
	return &Client{
		log:     log,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithBaseURL is used by tests to point the client at a local server.
func NewWithBaseURL(log *slog.Logger, apiKey, baseURL string) *Client {
	c := New(log, apiKey)
	c.baseURL = baseURL
	return c
}

func (c *Client) Configured() bool { return c.apiKey != "" }

// EstimatedCost quotes the buyer-pays shipping line for a package size.
// Deliberately local: checkout creation and fulfillment both recompute this
// and the two must agree.
func (c *Client) EstimatedCost(size listingdomain.PackageSize) int64 {
	if cost, ok := estimatedCosts[size]; ok {
		return cost
	}
	return estimatedCosts[listingdomain.PackageMedium]
}

func (c *Client) Rates(ctx context.Context, to shipping.Address, size listingdomain.PackageSize) ([]shipping.Rate, error) {
	if !c.Configured() {
		return mockRates(c.EstimatedCost(size)), nil
	}
	rates, err := c.liveRates(ctx, to, size)
	if err != nil {
		c.log.Error("shippo rate lookup failed, serving mock rates", "err", err)
		return mockRates(c.EstimatedCost(size)), nil
	}
	return rates, nil
}

// PurchaseLabel fetches rates for the destination, prefers USPS, and buys a
// label for the chosen rate. It goes straight to the live rate lookup: mock
// rate ids must never reach the transactions endpoint, so a failed lookup
// surfaces here instead of falling back.
func (c *Client) PurchaseLabel(ctx context.Context, to shipping.Address, size listingdomain.PackageSize) (shipping.Label, error) {
	if !c.Configured() {
		return mockLabel(), nil
	}
	rates, err := c.liveRates(ctx, to, size)
	if err != nil {
		return shipping.Label{}, fmt.Errorf("rate lookup: %w", err)
	}
	if len(rates) == 0 {
		return shipping.Label{}, ErrNoRates
	}
	selected := rates[0]
	for _, r := range rates {
		if strings.EqualFold(r.Carrier, "usps") {
			selected = r
			break
		}
	}
	return c.buyLabel(ctx, selected.RateID)
}

type shipmentRequest struct {
	AddressFrom shipping.Address `json:"address_from"`
	AddressTo   shipping.Address `json:"address_to"`
	Parcels     []parcel         `json:"parcels"`
	Async       bool             `json:"async"`
}

type parcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

type shipmentResponse struct {
	Rates []struct {
		ObjectID     string `json:"object_id"`
		Provider     string `json:"provider"`
		ServiceLevel struct {
			Name string `json:"name"`
		} `json:"servicelevel"`
		EstimatedDays int    `json:"estimated_days"`
		Amount        string `json:"amount"`
		Currency      string `json:"currency"`
	} `json:"rates"`
}

func (c *Client) liveRates(ctx context.Context, to shipping.Address, size listingdomain.PackageSize) ([]shipping.Rate, error) {
	spec, ok := listingdomain.PackageSizes[size]
	if !ok {
		spec = listingdomain.PackageSizes[listingdomain.PackageMedium]
	}
	req := shipmentRequest{
		AddressFrom: warehouseAddress,
		AddressTo:   to,
		Parcels: []parcel{{
			Length:       strconv.Itoa(spec.Length),
			Width:        strconv.Itoa(spec.Width),
			Height:       strconv.Itoa(spec.Height),
			DistanceUnit: "in",
			Weight:       strconv.Itoa(spec.MaxWeight),
			MassUnit:     "lb",
		}},
	}

	var resp shipmentResponse
	if err := c.post(ctx, "/shipments/", req, &resp); err != nil {
		return nil, err
	}

	rates := make([]shipping.Rate, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		if r.Amount == "" || r.Provider == "" || r.ServiceLevel.Name == "" {
			continue
		}
		amount, err := strconv.ParseFloat(r.Amount, 64)
		if err != nil {
			continue
		}
		days := r.EstimatedDays
		if days == 0 {
			days = 5
		}
		currency := r.Currency
		if currency == "" {
			currency = "USD"
		}
		rates = append(rates, shipping.Rate{
			RateID:        r.ObjectID,
			Carrier:       r.Provider,
			Service:       r.ServiceLevel.Name,
			EstimatedDays: days,
			AmountCents:   int64(math.Round(amount * 100)),
			Currency:      currency,
		})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].AmountCents < rates[j].AmountCents })
	if len(rates) > maxRates {
		rates = rates[:maxRates]
	}
	return rates, nil
}

type transactionRequest struct {
	Rate          string `json:"rate"`
	LabelFileType string `json:"label_file_type"`
	Async         bool   `json:"async"`
}

type transactionResponse struct {
	Status              string   `json:"status"`
	LabelURL            string   `json:"label_url"`
	TrackingNumber      string   `json:"tracking_number"`
	TrackingURLProvider string   `json:"tracking_url_provider"`
	Messages            []struct {
		Text string `json:"text"`
	} `json:"messages"`
}

func (c *Client) buyLabel(ctx context.Context, rateID string) (shipping.Label, error) {
	req := transactionRequest{Rate: rateID, LabelFileType: "PDF"}
	var resp transactionResponse
	if err := c.post(ctx, "/transactions/", req, &resp); err != nil {
		return shipping.Label{}, err
	}
	if resp.Status != "SUCCESS" {
		msgs := make([]string, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			msgs = append(msgs, m.Text)
		}
		if len(msgs) == 0 {
			msgs = append(msgs, "label purchase failed")
		}
		return shipping.Label{}, fmt.Errorf("shippo transaction %s: %s", resp.Status, strings.Join(msgs, ", "))
	}
	return shipping.Label{
		LabelURL:       resp.LabelURL,
		TrackingNumber: resp.TrackingNumber,
		TrackingURL:    resp.TrackingURLProvider,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "ShippoToken "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("shippo %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mockRates(base int64) []shipping.Rate {
	return []shipping.Rate{
		{RateID: "mock_usps_ground", Carrier: "USPS", Service: "Ground Advantage", EstimatedDays: 5, AmountCents: base, Currency: "USD"},
		{RateID: "mock_ups_ground", Carrier: "UPS", Service: "Ground", EstimatedDays: 5, AmountCents: base + 100, Currency: "USD"},
		{RateID: "mock_usps_priority", Carrier: "USPS", Service: "Priority Mail", EstimatedDays: 3, AmountCents: base + 300, Currency: "USD"},
	}
}

func mockLabel() shipping.Label {
	tracking := fmt.Sprintf("MOCK%d", time.Now().UnixMilli())
	return shipping.Label{
		LabelURL:       "https://example.com/labels/" + tracking + ".pdf",
		TrackingNumber: tracking,
		TrackingURL:    "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + tracking,
	}
}
