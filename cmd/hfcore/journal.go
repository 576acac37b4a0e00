package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var journalAll bool

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List payment events flagged for manual reconciliation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := a.journal.List(!journalAll)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("nothing flagged")
			return nil
		}
		for _, e := range entries {
			status := "open"
			if e.Resolved {
				status = "resolved"
			}
			fmt.Printf("%s  %s  ref=%s  %s  [%s]\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.ID, e.PaymentReference, e.Reason, status)
		}
		return nil
	},
}

var journalResolveCmd = &cobra.Command{
	Use:   "resolve [id]",
	Short: "Mark a flagged event as handled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.journal.Resolve(args[0]); err != nil {
			return err
		}
		fmt.Println("resolved")
		return nil
	},
}

func init() {
	journalCmd.Flags().BoolVar(&journalAll, "all", false, "include resolved entries")
	journalCmd.AddCommand(journalResolveCmd)
}
