package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Access level constants for content items
const (
	AccessPublic  = "public"
	AccessMembers = "members"
	AccessPremium = "premium"
)

// Purchase record status constants
const (
	PurchaseCompleted = "completed"
	PurchaseRefunded  = "refunded"
)

// ContentItem is a snapshot of an article/course document in the content
// store. The core never mutates content items; editors own them.
type ContentItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	AccessLevel string          `json:"accessLevel"`
	Price       decimal.Decimal `json:"price"`
	HasPrice    bool            `json:"hasPrice"` // price is optional on non-premium items
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Sellable reports whether the item should have a commerce product.
func (c *ContentItem) Sellable() bool {
	return c.AccessLevel == AccessPremium && c.HasPrice && c.Price.IsPositive()
}

// Product is the sellable representation of a content item in the
// commerce backend, keyed externally by its deterministic SKU.
type Product struct {
	ExternalID string          `json:"externalId"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Status     string          `json:"status"`
}

// PurchaseRecord is the canonical, append-only proof of entitlement,
// stored in the content store. Created exactly once per successful
// payment.
type PurchaseRecord struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"` // cross-system identity: the buyer's email
	ContentItemID    string          `json:"contentItemId"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference string          `json:"paymentReference"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Order is the best-effort mirror of a purchase in the commerce backend.
// It may be absent even for a valid purchase.
type Order struct {
	ExternalID       string          `json:"externalId"`
	CustomerEmail    string          `json:"customerEmail"`
	ProductID        string          `json:"productId"`
	Total            decimal.Decimal `json:"total"`
	Status           string          `json:"status"`
	PaymentReference string          `json:"paymentReference,omitempty"`
}

// PaymentEvent is a verified, completed payment extracted from a
// processor webhook. UserID and ContentItemID come from checkout
// metadata round-tripped through the processor.
type PaymentEvent struct {
	PaymentReference string
	UserID           string
	ContentItemID    string
	Amount           decimal.Decimal
	Currency         string
	RawPayload       []byte
}

// SyncOutcome classifies what a catalog sync did.
type SyncOutcome string

const (
	SyncSkipped   SyncOutcome = "skipped"   // item is not premium-priced; nothing to do
	SyncCreated   SyncOutcome = "created"   // product did not exist and was created
	SyncUpdated   SyncOutcome = "updated"   // product existed, changed fields were written
	SyncUnchanged SyncOutcome = "unchanged" // product existed and already matched
)

// SyncResult is the outcome of one catalog sync pass.
type SyncResult struct {
	Outcome SyncOutcome `json:"outcome"`
	Product *Product    `json:"product,omitempty"`
}

// IngestStatus classifies the terminal state of a payment event.
type IngestStatus string

const (
	IngestRecorded  IngestStatus = "recorded"  // new PurchaseRecord written
	IngestDuplicate IngestStatus = "duplicate" // fulfillment already existed, no writes
)

// IngestResult is the outcome of handling one completed-payment event.
// For duplicates it returns the existing fulfillment unchanged, so a
// redelivered event completes exactly like a fresh success.
type IngestResult struct {
	Status    IngestStatus    `json:"status"`
	Record    *PurchaseRecord `json:"record,omitempty"`
	Order     *Order          `json:"order,omitempty"`
	MatchedBy MatchKey        `json:"matchedBy,omitempty"` // set when Status == duplicate
	Mirrored  bool            `json:"mirrored"`
}

// MatchKey names which identifying key the Duplicate Guard matched on,
// in order of trust.
type MatchKey string

const (
	MatchPaymentReference MatchKey = "payment_reference"
	MatchUserContent      MatchKey = "user_content"
)

// Fulfillment is an already-recorded purchase found by the Duplicate
// Guard in either store.
type Fulfillment struct {
	Record    *PurchaseRecord
	Order     *Order
	MatchedBy MatchKey
}

// AccessReason explains an entitlement decision.
type AccessReason string

const (
	ReasonPublic        AccessReason = "public"
	ReasonPurchased     AccessReason = "purchase_record"
	ReasonCommerceOrder AccessReason = "commerce_order"
	ReasonNotPurchased  AccessReason = "not_purchased"
	ReasonUndetermined  AccessReason = "undetermined"
)

// Decision is the answer to "may this user view this premium item".
// Undetermined means a needed collaborator was unreachable: callers must
// show a retry affordance, never a paywall.
type Decision struct {
	Granted bool         `json:"granted"`
	Reason  AccessReason `json:"reason"`
}

// Undetermined reports whether the decision could not be made.
func (d Decision) Undetermined() bool {
	return d.Reason == ReasonUndetermined
}
