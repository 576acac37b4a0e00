package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Engine bundles the four reconciliation components behind one
// constructor so every entry point (HTTP surface, CLI) builds the same
// thing from the same dependencies.
type Engine struct {
	Catalog  *CatalogSync
	Guard    *DuplicateGuard
	Ingestor *PaymentIngestor
	Resolver *EntitlementResolver
}

// EngineDeps holds the external collaborators an Engine coordinates.
type EngineDeps struct {
	Content  ContentStore
	Commerce CommerceBackend
	Verifier EventVerifier
	Journal  Journal
	CacheTTL time.Duration
	Now      Clock
	Log      zerolog.Logger
}

// NewEngine wires the components. No ambient singletons: every
// collaborator is injected here and nowhere else.
func NewEngine(deps EngineDeps) *Engine {
	guard := NewDuplicateGuard(deps.Content, deps.Commerce, deps.Log)
	return &Engine{
		Catalog: NewCatalogSync(deps.Content, deps.Commerce, deps.Log),
		Guard:   guard,
		Ingestor: NewPaymentIngestor(PaymentIngestorDeps{
			Verifier: deps.Verifier,
			Guard:    guard,
			Content:  deps.Content,
			Commerce: deps.Commerce,
			Journal:  deps.Journal,
			Now:      deps.Now,
			Log:      deps.Log,
		}),
		Resolver: NewEntitlementResolver(deps.Content, deps.Commerce, deps.CacheTTL, deps.Now, deps.Log),
	}
}

// SyncContentItem runs a catalog sync pass for one content item.
func (e *Engine) SyncContentItem(ctx context.Context, contentItemID string) (SyncResult, error) {
	return e.Catalog.SyncContentItem(ctx, contentItemID)
}

// ResolveAccess answers an entitlement query.
func (e *Engine) ResolveAccess(ctx context.Context, userID, contentItemID string) (Decision, error) {
	return e.Resolver.ResolveAccess(ctx, userID, contentItemID)
}

// HandlePaymentWebhook ingests a raw processor webhook and, when a new
// purchase lands, drops the buyer's cached access decision so the next
// page view reflects it.
func (e *Engine) HandlePaymentWebhook(ctx context.Context, payload []byte, sigHeader string) (IngestResult, error) {
	result, err := e.Ingestor.HandleWebhook(ctx, payload, sigHeader)
	if err == nil && result.Status == IngestRecorded && result.Record != nil {
		e.Resolver.Invalidate(result.Record.UserID, result.Record.ContentItemID)
	}
	return result, err
}
