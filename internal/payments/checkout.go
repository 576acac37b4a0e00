package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/damsblt/helvetiforma-sub003/internal/core"
)

const checkoutCurrency = "chf"

// CheckoutSession is the subset of a created session the site needs:
// the ID (which later returns as the payment reference) and the hosted
// payment page URL.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutService creates Stripe Checkout Sessions for premium content
// items, embedding the metadata the Payment Event Ingestor will read
// back out of the completed-checkout webhook.
type CheckoutService struct {
	api *client.API
}

// NewCheckoutService creates a checkout service with its own API
// client; the secret key is injected, never read from globals.
func NewCheckoutService(secretKey string) *CheckoutService {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &CheckoutService{api: api}
}

// CreateCheckoutSession starts a one-off payment for item. The session
// metadata carries {contentItemId, userId, title} so the eventual
// webhook can be tied back to this user and item.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, item *core.ContentItem, userID, successURL, cancelURL string) (*CheckoutSession, error) {
	if !item.Sellable() {
		return nil, &core.ValidationError{Field: "contentItemId", Reason: "content item is not premium-priced"}
	}
	if userID == "" {
		return nil, &core.ValidationError{Field: "userId", Reason: "required"}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(successURL),
		CancelURL:     stripe.String(cancelURL),
		CustomerEmail: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(checkoutCurrency),
					UnitAmount: stripe.Int64(item.Price.Shift(2).Round(0).IntPart()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(item.Title),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaContentItemID, item.ID)
	params.AddMetadata(metaUserID, userID)
	params.AddMetadata(metaTitle, item.Title)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429 {
			return nil, fmt.Errorf("checkout session rejected: %w", err)
		}
		return nil, core.Transient("create checkout session", err)
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}
