package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// EntitlementResolver answers "may this user view this content item"
// from multiple, independently-owned, eventually-consistent sources of
// truth. The fallback chain short-circuits in order of trust:
//
//  1. non-premium items are public
//  2. a completed PurchaseRecord in the canonical ledger
//  3. the commerce backend's purchase history, keyed by the product
//     Catalog Sync created (covers legacy purchases with no ledger
//     record, and payments whose product sync has not yet landed)
//  4. denied
//
// When a needed collaborator is unreachable the resolver answers
// undetermined rather than denied, so callers can show a retry
// affordance instead of a paywall.
type EntitlementResolver struct {
	content  ContentStore
	commerce CommerceBackend
	cache    *decisionCache
	log      zerolog.Logger
}

// NewEntitlementResolver creates a resolver. cacheTTL <= 0 disables the
// decision cache.
func NewEntitlementResolver(content ContentStore, commerce CommerceBackend, cacheTTL time.Duration, now Clock, log zerolog.Logger) *EntitlementResolver {
	return &EntitlementResolver{
		content:  content,
		commerce: commerce,
		cache:    newDecisionCache(cacheTTL, now),
		log:      log.With().Str("component", "entitlement_resolver").Logger(),
	}
}

// ResolveAccess runs the fallback chain for one (user, content item)
// pair. The returned error is non-nil only for undetermined decisions
// and carries the collaborator failure that caused them.
func (r *EntitlementResolver) ResolveAccess(ctx context.Context, userID, contentItemID string) (Decision, error) {
	if d, ok := r.cache.get(userID, contentItemID); ok {
		return d, nil
	}

	d, err := r.resolve(ctx, userID, contentItemID)
	if err == nil {
		r.cache.put(userID, contentItemID, d)
	}
	return d, err
}

// Invalidate drops the cached decision for a pair. Called after a
// purchase is recorded so the buyer's next view is granted immediately.
func (r *EntitlementResolver) Invalidate(userID, contentItemID string) {
	r.cache.invalidate(userID, contentItemID)
}

func (r *EntitlementResolver) resolve(ctx context.Context, userID, contentItemID string) (Decision, error) {
	item, err := r.content.GetContentItem(ctx, contentItemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{Granted: false, Reason: ReasonNotPurchased}, nil
		}
		return Decision{Granted: false, Reason: ReasonUndetermined}, err
	}
	if item.AccessLevel != AccessPremium {
		return Decision{Granted: true, Reason: ReasonPublic}, nil
	}

	// Canonical ledger first. A probe failure here is remembered but
	// does not end the chain: the commerce fallback may still grant.
	var ledgerErr error
	rec, err := r.content.FindCompletedPurchase(ctx, userID, contentItemID)
	switch {
	case err == nil && rec.Status == PurchaseCompleted:
		return Decision{Granted: true, Reason: ReasonPurchased}, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		ledgerErr = err
		r.log.Warn().Err(err).Str("user", userID).Str("content_item", contentItemID).
			Msg("ledger probe failed, falling back to commerce history")
	}

	bought, err := r.commerceBought(ctx, userID, contentItemID)
	switch {
	case err != nil:
		return Decision{Granted: false, Reason: ReasonUndetermined}, err
	case bought:
		return Decision{Granted: true, Reason: ReasonCommerceOrder}, nil
	case ledgerErr != nil:
		// Commerce says no but the canonical ledger never answered:
		// a denial would be a guess.
		return Decision{Granted: false, Reason: ReasonUndetermined}, ledgerErr
	default:
		return Decision{Granted: false, Reason: ReasonNotPurchased}, nil
	}
}

// commerceBought asks the backend's built-in purchase predicate, falling
// back to an order scan when the predicate endpoint is absent. The
// product may legitimately not exist yet (payment ahead of sync); that
// is a plain "no", not an error.
func (r *EntitlementResolver) commerceBought(ctx context.Context, userID, contentItemID string) (bool, error) {
	product, err := r.commerce.FindProductBySKU(ctx, DeriveSKU(contentItemID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	bought, err := r.commerce.HasPurchased(ctx, userID, product.ExternalID)
	if err == nil {
		return bought, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	// Predicate endpoint not installed on this backend; scan orders.
	_, err = r.commerce.FindOrder(ctx, userID, product.ExternalID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
