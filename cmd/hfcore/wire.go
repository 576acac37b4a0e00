package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/damsblt/helvetiforma-sub003/internal/config"
	"github.com/damsblt/helvetiforma-sub003/internal/core"
	"github.com/damsblt/helvetiforma-sub003/internal/journal"
	"github.com/damsblt/helvetiforma-sub003/internal/payments"
	"github.com/damsblt/helvetiforma-sub003/internal/sanity"
	"github.com/damsblt/helvetiforma-sub003/internal/woo"
)

// app is everything a command can need, built once from configuration.
// All collaborators are constructed here and injected; nothing reads
// credentials from ambient state.
type app struct {
	cfg      *config.Config
	content  *sanity.Client
	commerce *woo.Client
	engine   *core.Engine
	checkout *payments.CheckoutService
	journal  *journal.Store
}

func buildApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	content := sanity.NewClient(sanity.Config{
		ProjectID:  cfg.Sanity.ProjectID,
		Dataset:    cfg.Sanity.Dataset,
		APIVersion: cfg.Sanity.APIVersion,
		Token:      cfg.Sanity.Token,
		BaseURL:    cfg.Sanity.BaseURL,
		Timeout:    cfg.Sanity.Timeout,
	})
	commerce := woo.NewClient(woo.Config{
		BaseURL:        cfg.Woo.BaseURL,
		ConsumerKey:    cfg.Woo.ConsumerKey,
		ConsumerSecret: cfg.Woo.ConsumerSecret,
		Timeout:        cfg.Woo.Timeout,
	})

	jrnl, err := journal.Open(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open reconciliation journal: %w", err)
	}

	engine := core.NewEngine(core.EngineDeps{
		Content:  content,
		Commerce: commerce,
		Verifier: payments.NewVerifier(cfg.Stripe.WebhookSecret),
		Journal:  jrnl,
		CacheTTL: cfg.Resolver.CacheTTL,
		Log:      log.Logger,
	})

	a := &app{
		cfg:      cfg,
		content:  content,
		commerce: commerce,
		engine:   engine,
		journal:  jrnl,
	}
	if cfg.Stripe.SecretKey != "" {
		a.checkout = payments.NewCheckoutService(cfg.Stripe.SecretKey)
	}
	return a, nil
}

func (a *app) close() {
	if a.journal != nil {
		a.journal.Close()
	}
}
