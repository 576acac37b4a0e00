package core

import (
	"context"
	"time"
)

// ContentStore reads content items and owns the canonical purchase
// ledger (append-only).
// Implementations: sanity.Client
type ContentStore interface {
	// GetContentItem returns the current snapshot of an item.
	// Returns ErrNotFound if the item does not exist.
	GetContentItem(ctx context.Context, id string) (*ContentItem, error)

	// CreatePurchaseRecord appends a purchase record to the ledger and
	// returns the stored record. The store may deduplicate on the
	// record's deterministic document identity.
	CreatePurchaseRecord(ctx context.Context, rec *PurchaseRecord) (*PurchaseRecord, error)

	// FindPurchaseByReference returns the record for a payment
	// reference, or ErrNotFound.
	FindPurchaseByReference(ctx context.Context, paymentReference string) (*PurchaseRecord, error)

	// FindCompletedPurchase returns a completed record for the
	// (user, content item) pair, or ErrNotFound.
	FindCompletedPurchase(ctx context.Context, userID, contentItemID string) (*PurchaseRecord, error)
}

// CommerceBackend is the legacy commerce system: products keyed by SKU,
// orders, and a purchase predicate.
// Implementations: woo.Client
type CommerceBackend interface {
	// FindProductBySKU returns the product with the given SKU, or
	// ErrNotFound.
	FindProductBySKU(ctx context.Context, sku string) (*Product, error)

	// CreateProduct creates a virtual, non-shippable product and
	// returns it with its backend-assigned external ID.
	CreateProduct(ctx context.Context, p *Product) (*Product, error)

	// UpdateProduct writes only the fields set in upd.
	UpdateProduct(ctx context.Context, externalID string, upd ProductUpdate) (*Product, error)

	// CreateOrder mirrors a purchase as a completed order.
	CreateOrder(ctx context.Context, o *Order) (*Order, error)

	// FindOrderByReference returns an order carrying the payment
	// reference, or ErrNotFound.
	FindOrderByReference(ctx context.Context, paymentReference string) (*Order, error)

	// FindOrder returns a completed order for the (customer, product)
	// pair, or ErrNotFound.
	FindOrder(ctx context.Context, customerEmail, productID string) (*Order, error)

	// HasPurchased asks the backend's built-in purchase predicate.
	// Returns ErrNotFound when the predicate endpoint is not available,
	// in which case callers fall back to FindOrder.
	HasPurchased(ctx context.Context, customerEmail, productID string) (bool, error)
}

// EventVerifier authenticates and parses payment processor webhooks.
// Implementations: payments.Verifier
type EventVerifier interface {
	// VerifyAndParse checks the payload signature and extracts a
	// completed-payment event. Bad signatures return *AuthError;
	// events missing required metadata return *ValidationError.
	VerifyAndParse(payload []byte, sigHeader string) (*PaymentEvent, error)
}

// Journal records payment events that could not be processed, for
// manual reconciliation. Never a source of entitlement.
// Implementations: journal.Store
type Journal interface {
	Flag(paymentReference, eventType, reason string, payload []byte) error
}

// Clock abstracts time for tests.
type Clock func() time.Time
