// Package payments is the Stripe boundary: webhook authenticity,
// checkout metadata extraction, and checkout session creation.
package payments

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/damsblt/helvetiforma-sub003/internal/core"
)

// Metadata keys round-tripped from checkout initiation. contentItemId
// is the field; postId is the legacy synonym older checkout flows still
// send. The precedence rule (contentItemId wins) lives here and nowhere
// else.
const (
	metaContentItemID = "contentItemId"
	metaLegacyPostID  = "postId"
	metaUserID        = "userId"
	metaTitle         = "title"
)

// Verifier authenticates payment processor webhooks against the shared
// endpoint secret and extracts completed-payment events.
type Verifier struct {
	webhookSecret string
}

// NewVerifier creates a webhook verifier.
func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{webhookSecret: webhookSecret}
}

// VerifyAndParse implements core.EventVerifier. The signature check is
// the endpoint's entire authentication; any failure is *core.AuthError
// and nothing downstream runs. Event types other than completed
// checkouts return core.ErrIgnoredEvent so handlers can ack them.
func (v *Verifier) VerifyAndParse(payload []byte, sigHeader string) (*core.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &core.AuthError{Reason: "invalid webhook signature"}
	}

	if event.Type != "checkout.session.completed" {
		return nil, fmt.Errorf("%w: %s", core.ErrIgnoredEvent, event.Type)
	}
	return extractCheckout(event.Data.Raw, payload)
}

// extractCheckout turns a completed checkout session into a payment
// event. An event that cannot be tied to a user and a content item is
// unprocessable: no retry will fix it, so it is rejected for manual
// reconciliation.
func extractCheckout(raw json.RawMessage, payload []byte) (*core.PaymentEvent, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, &core.ValidationError{Field: "payload", Reason: "unparseable checkout session"}
	}
	if sess.ID == "" {
		return nil, &core.ValidationError{Field: "paymentReference", Reason: "checkout session has no id"}
	}

	contentItemID := sess.Metadata[metaContentItemID]
	if contentItemID == "" {
		contentItemID = sess.Metadata[metaLegacyPostID]
	}
	if contentItemID == "" {
		return nil, &core.ValidationError{Field: "contentItemId", Reason: "missing from checkout metadata", Ref: sess.ID}
	}

	userID := sess.Metadata[metaUserID]
	if userID == "" && sess.CustomerDetails != nil {
		userID = sess.CustomerDetails.Email
	}
	if userID == "" {
		userID = sess.CustomerEmail
	}
	if userID == "" {
		return nil, &core.ValidationError{Field: "userId", Reason: "missing from checkout metadata and customer details", Ref: sess.ID}
	}

	return &core.PaymentEvent{
		PaymentReference: sess.ID,
		UserID:           userID,
		ContentItemID:    contentItemID,
		Amount:           decimal.NewFromInt(sess.AmountTotal).Shift(-2),
		Currency:         string(sess.Currency),
		RawPayload:       payload,
	}, nil
}
