package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [contentItemId]",
	Short: "Sync one content item's commerce product (idempotent, safe to re-run)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.engine.SyncContentItem(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("outcome: %s\n", result.Outcome)
		if result.Product != nil {
			fmt.Printf("product: id=%s sku=%s price=%s\n",
				result.Product.ExternalID, result.Product.SKU, result.Product.Price.StringFixed(2))
		}
		return nil
	},
}
