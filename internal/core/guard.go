package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// FulfillmentCriteria identifies a purchase across stores. The payment
// reference is the strongest key (unique per payment); the
// (user, content item) composite is weaker and exists for legacy or
// manually created orders that carry no reference.
type FulfillmentCriteria struct {
	PaymentReference string
	UserID           string
	ContentItemID    string
}

// DuplicateGuard finds already-recorded fulfillments before any write
// path acts. Two independent writers (the purchase ledger and the order
// mirror) plus at-least-once webhook delivery would otherwise mint
// duplicate entitlement facts.
type DuplicateGuard struct {
	content  ContentStore
	commerce CommerceBackend
	log      zerolog.Logger
}

// NewDuplicateGuard creates a duplicate guard over both purchase stores.
func NewDuplicateGuard(content ContentStore, commerce CommerceBackend, log zerolog.Logger) *DuplicateGuard {
	return &DuplicateGuard{
		content:  content,
		commerce: commerce,
		log:      log.With().Str("component", "duplicate_guard").Logger(),
	}
}

// FindExisting probes the purchase ledger and the commerce orders in
// order of key trust and returns the first match, or (nil, nil) when
// nothing is recorded.
//
// Ledger probe failures propagate: without the canonical store the
// guard cannot answer and the caller must retry. Order probe failures
// are logged and skipped — the ledger is canonical and the worst case
// of skipping is a duplicate best-effort mirror.
func (g *DuplicateGuard) FindExisting(ctx context.Context, crit FulfillmentCriteria) (*Fulfillment, error) {
	if crit.PaymentReference != "" {
		rec, err := g.content.FindPurchaseByReference(ctx, crit.PaymentReference)
		if err == nil {
			return &Fulfillment{Record: rec, MatchedBy: MatchPaymentReference}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		order, err := g.commerce.FindOrderByReference(ctx, crit.PaymentReference)
		if err == nil {
			return &Fulfillment{Order: order, MatchedBy: MatchPaymentReference}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			g.log.Warn().Err(err).Str("payment_reference", crit.PaymentReference).
				Msg("order probe by reference failed, continuing")
		}
	}

	if crit.UserID == "" || crit.ContentItemID == "" {
		return nil, nil
	}

	rec, err := g.content.FindCompletedPurchase(ctx, crit.UserID, crit.ContentItemID)
	if err == nil {
		return &Fulfillment{Record: rec, MatchedBy: MatchUserContent}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	order, err := g.findOrderByUserContent(ctx, crit.UserID, crit.ContentItemID)
	if err == nil && order != nil {
		return &Fulfillment{Order: order, MatchedBy: MatchUserContent}, nil
	}
	return nil, nil
}

// findOrderByUserContent resolves the product by deterministic SKU and
// scans completed orders for it. Absence of the product means no order
// can exist yet (the payment may have beaten the catalog sync).
func (g *DuplicateGuard) findOrderByUserContent(ctx context.Context, userID, contentItemID string) (*Order, error) {
	product, err := g.commerce.FindProductBySKU(ctx, DeriveSKU(contentItemID))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			g.log.Warn().Err(err).Str("content_item", contentItemID).
				Msg("product probe failed, continuing")
		}
		return nil, nil
	}

	order, err := g.commerce.FindOrder(ctx, userID, product.ExternalID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			g.log.Warn().Err(err).Str("content_item", contentItemID).Str("user", userID).
				Msg("order probe failed, continuing")
		}
		return nil, nil
	}
	return order, nil
}
