package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentIngestor durably records completed payments exactly once under
// at-least-once webhook delivery. Per payment reference the flow is a
// small state machine: received → verified → (deduplicated | recorded)
// → mirrored (best-effort).
type PaymentIngestor struct {
	verifier EventVerifier
	guard    *DuplicateGuard
	content  ContentStore
	commerce CommerceBackend
	journal  Journal
	now      Clock
	log      zerolog.Logger

	// inflight serializes concurrent deliveries of one payment
	// reference so both return the same record.
	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// PaymentIngestorDeps holds dependencies for constructing a PaymentIngestor.
type PaymentIngestorDeps struct {
	Verifier EventVerifier
	Guard    *DuplicateGuard
	Content  ContentStore
	Commerce CommerceBackend
	Journal  Journal
	Now      Clock
	Log      zerolog.Logger
}

// NewPaymentIngestor creates a payment event ingestor.
func NewPaymentIngestor(deps PaymentIngestorDeps) *PaymentIngestor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PaymentIngestor{
		verifier: deps.Verifier,
		guard:    deps.Guard,
		content:  deps.Content,
		commerce: deps.Commerce,
		journal:  deps.Journal,
		now:      now,
		log:      deps.Log.With().Str("component", "payment_ingestor").Logger(),
		inflight: make(map[string]*sync.Mutex),
	}
}

// HandleWebhook verifies a raw processor webhook and ingests the event.
// Bad signatures return *AuthError with zero side effects; events that
// cannot be tied to a user and content item return *ValidationError and
// are flagged to the journal.
func (p *PaymentIngestor) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (IngestResult, error) {
	event, err := p.verifier.VerifyAndParse(payload, sigHeader)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			p.flag(event, ve, payload)
		}
		return IngestResult{}, err
	}
	return p.Ingest(ctx, event)
}

// Ingest records one verified completed-payment event. The
// PurchaseRecord write is the commit point: its failure propagates so
// the sender redelivers; the order mirror afterwards is best-effort.
func (p *PaymentIngestor) Ingest(ctx context.Context, event *PaymentEvent) (IngestResult, error) {
	unlock := p.lockReference(event.PaymentReference)
	defer unlock()

	existing, err := p.guard.FindExisting(ctx, FulfillmentCriteria{
		PaymentReference: event.PaymentReference,
		UserID:           event.UserID,
		ContentItemID:    event.ContentItemID,
	})
	if err != nil {
		return IngestResult{}, err
	}
	if existing != nil {
		p.log.Info().Str("payment_reference", event.PaymentReference).
			Str("matched_by", string(existing.MatchedBy)).Msg("duplicate delivery, returning existing fulfillment")
		return IngestResult{
			Status:    IngestDuplicate,
			Record:    existing.Record,
			Order:     existing.Order,
			MatchedBy: existing.MatchedBy,
		}, nil
	}

	rec, err := p.content.CreatePurchaseRecord(ctx, &PurchaseRecord{
		ID:               uuid.New().String(),
		UserID:           event.UserID,
		ContentItemID:    event.ContentItemID,
		Amount:           event.Amount,
		PaymentReference: event.PaymentReference,
		Status:           PurchaseCompleted,
		CreatedAt:        p.now().UTC(),
	})
	if err != nil {
		return IngestResult{}, err
	}
	p.log.Info().Str("payment_reference", event.PaymentReference).
		Str("user", event.UserID).Str("content_item", event.ContentItemID).
		Str("record_id", rec.ID).Msg("purchase recorded")

	result := IngestResult{Status: IngestRecorded, Record: rec}
	if order := p.mirror(ctx, event, rec); order != nil {
		result.Order = order
		result.Mirrored = true
	}
	return result, nil
}

// mirror writes the secondary commerce order. The canonical fact is
// already durable, so every failure here is logged and swallowed.
func (p *PaymentIngestor) mirror(ctx context.Context, event *PaymentEvent, rec *PurchaseRecord) *Order {
	product, err := p.commerce.FindProductBySKU(ctx, DeriveSKU(event.ContentItemID))
	if err != nil {
		// The payment may arrive before catalog sync lands; the
		// entitlement resolver tolerates the missing mirror either way.
		if errors.Is(err, ErrNotFound) {
			p.log.Warn().Str("content_item", event.ContentItemID).
				Msg("no product for content item yet, skipping order mirror")
		} else {
			p.log.Warn().Err(err).Str("content_item", event.ContentItemID).
				Msg("product lookup failed, skipping order mirror")
		}
		return nil
	}

	order, err := p.commerce.CreateOrder(ctx, &Order{
		CustomerEmail:    event.UserID,
		ProductID:        product.ExternalID,
		Total:            rec.Amount,
		Status:           "completed",
		PaymentReference: event.PaymentReference,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("payment_reference", event.PaymentReference).
			Msg("order mirror failed, purchase record already durable")
		return nil
	}

	p.log.Info().Str("payment_reference", event.PaymentReference).
		Str("order_id", order.ExternalID).Msg("order mirrored")
	return order
}

func (p *PaymentIngestor) flag(event *PaymentEvent, ve *ValidationError, payload []byte) {
	if p.journal == nil {
		return
	}
	ref := ve.Ref
	if ref == "" && event != nil {
		ref = event.PaymentReference
	}
	if err := p.journal.Flag(ref, "payment.completed", ve.Error(), payload); err != nil {
		p.log.Error().Err(err).Str("payment_reference", ref).Msg("failed to journal unprocessable event")
	}
}

func (p *PaymentIngestor) lockReference(ref string) func() {
	p.mu.Lock()
	m, ok := p.inflight[ref]
	if !ok {
		m = &sync.Mutex{}
		p.inflight[ref] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
