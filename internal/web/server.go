// Package web exposes the reconciliation core over HTTP: the two inbound
// webhooks and the operator/service API.
package web

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/damsblt/helvetiforma-sub003/internal/core"
	"github.com/damsblt/helvetiforma-sub003/internal/journal"
	"github.com/damsblt/helvetiforma-sub003/internal/payments"
)

// Engine is the slice of the reconciliation core the handlers call.
// Implementations: core.Engine
type Engine interface {
	SyncContentItem(ctx context.Context, contentItemID string) (core.SyncResult, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, sigHeader string) (core.IngestResult, error)
	ResolveAccess(ctx context.Context, userID, contentItemID string) (core.Decision, error)
}

// CheckoutCreator starts payment sessions.
// Implementations: payments.CheckoutService
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, item *core.ContentItem, userID, successURL, cancelURL string) (*payments.CheckoutSession, error)
}

// JournalBrowser is the operator view of the reconciliation journal.
// Implementations: journal.Store
type JournalBrowser interface {
	List(unresolvedOnly bool) ([]*journal.Entry, error)
	Resolve(id string) error
}

// Options configures the server surface.
type Options struct {
	// TriggerSecret authenticates every non-Stripe route. The Stripe
	// webhook authenticates by signature instead.
	TriggerSecret string

	// Checkout redirect URLs handed to the payment processor.
	SuccessURL string
	CancelURL  string
}

// Server is the hfcore web server.
type Server struct {
	engine   Engine
	content  core.ContentStore
	checkout CheckoutCreator
	journal  JournalBrowser
	opts     Options
	router   *gin.Engine
}

// NewServer creates the server and registers all routes.
func NewServer(engine Engine, content core.ContentStore, checkout CheckoutCreator, jrnl JournalBrowser, opts Options) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		content:  content,
		checkout: checkout,
		journal:  jrnl,
		opts:     opts,
		router:   router,
	}

	router.GET("/health", s.handleHealth)

	// Webhooks. The Stripe route carries its own authentication (the
	// signature); the content store route uses the trigger secret.
	hooks := router.Group("/hooks")
	{
		hooks.POST("/content", s.requireBearer(), s.handleContentWebhook)
		hooks.POST("/stripe", s.handleStripeWebhook)
	}

	// Service/operator API, all bearer-authenticated. Every operation
	// here is idempotent and safe to invoke manually at arbitrary
	// times.
	api := router.Group("/api", s.requireBearer())
	{
		api.GET("/access", s.handleAccess)
		api.POST("/sync/:id", s.handleManualSync)
		api.POST("/checkout", s.handleCheckout)
		api.GET("/journal", s.handleJournalList)
		api.POST("/journal/:id/resolve", s.handleJournalResolve)
	}

	return s
}

// Run starts the web server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the handler for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
