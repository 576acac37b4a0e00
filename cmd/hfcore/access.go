package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var accessCmd = &cobra.Command{
	Use:   "access [userId] [contentItemId]",
	Short: "Check whether a user may view a content item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		decision, err := a.engine.ResolveAccess(context.Background(), args[0], args[1])
		if decision.Undetermined() {
			return fmt.Errorf("undetermined (retry later): %w", err)
		}
		if err != nil {
			return err
		}

		verdict := "denied"
		if decision.Granted {
			verdict = "granted"
		}
		fmt.Printf("%s (%s)\n", verdict, decision.Reason)
		return nil
	},
}
