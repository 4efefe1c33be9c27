// Package stripe adapts the Stripe SDK to the checkout application's
// payment provider port.
package stripe

import (
	"context"
	"log/slog"

	stripelib "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/archive-commodities/marketplace/internal/checkout/application"
	"github.com/archive-commodities/marketplace/internal/checkout/domain"
	"github.com/archive-commodities/marketplace/internal/shipping"
)

type Client struct {
	log *slog.Logger
	api *client.API
}

func New(log *slog.Logger, apiKey string) *Client {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Client{log: log, api: api}
}

func (c *Client) CreateSession(ctx context.Context, in application.CreateSessionInput) (domain.Session, error) {
	allowed := []string{"US"}
	if in.International {
		allowed = []string{"US", "CA", "GB", "FR", "DE", "IT", "ES", "NL", "JP", "AU"}
	}

	params := &stripelib.CheckoutSessionParams{
		Mode:               stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripelib.StringSlice([]string{"card"}),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{{
			PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
				Currency: stripelib.String("usd"),
				ProductData: &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripelib.String(in.Title),
					Description: stripelib.String(in.Description),
					Images:      stripelib.StringSlice([]string{in.ImageURL}),
				},
				UnitAmount: stripelib.Int64(in.UnitAmountCents),
			},
			Quantity: stripelib.Int64(1),
		}},
		SuccessURL: stripelib.String(in.SuccessURL),
		CancelURL:  stripelib.String(in.CancelURL),
	}
	params.Context = ctx
	if in.CollectAddress {
		params.ShippingAddressCollection = &stripelib.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripelib.StringSlice(allowed),
		}
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return domain.Session{}, err
	}
	return fromStripe(sess), nil
}

func (c *Client) Session(ctx context.Context, id string) (domain.Session, error) {
	params := &stripelib.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return domain.Session{}, err
	}
	return fromStripe(sess), nil
}

func fromStripe(s *stripelib.CheckoutSession) domain.Session {
	out := domain.Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
	if s.CustomerDetails != nil {
		out.BuyerEmail = s.CustomerDetails.Email
	}
	if s.ShippingDetails != nil && s.ShippingDetails.Address != nil {
		addr := s.ShippingDetails.Address
		out.ShippingAddress = &shipping.Address{
			Name:    s.ShippingDetails.Name,
			Street1: addr.Line1,
			Street2: addr.Line2,
			City:    addr.City,
			State:   addr.State,
			Zip:     addr.PostalCode,
			Country: addr.Country,
			Email:   out.BuyerEmail,
		}
	}
	return out
}
