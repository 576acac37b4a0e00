package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/damsblt/helvetiforma-sub003/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and reconciliation HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	var checkout web.CheckoutCreator
	if a.checkout != nil {
		checkout = a.checkout
	}

	server := web.NewServer(a.engine, a.content, checkout, a.journal, web.Options{
		TriggerSecret: a.cfg.Server.TriggerSecret,
		SuccessURL:    a.cfg.Stripe.SuccessURL,
		CancelURL:     a.cfg.Stripe.CancelURL,
	})

	log.Info().Str("addr", addr).Msg("starting hfcore")
	return server.Run(addr)
}
