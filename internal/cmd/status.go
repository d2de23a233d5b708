package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tbonner/vaultd/internal/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault stage counts and pending approvals",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	counts, err := a.store.StageCounts()
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Stage", "Items"})
	for _, stage := range vault.Stages() {
		tw.AppendRow(table.Row{string(stage), counts[stage]})
	}
	tw.Render()

	pending, err := a.gate.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("\nNo pending approvals")
		return nil
	}

	fmt.Println()
	pt := table.NewWriter()
	pt.SetOutputMirror(os.Stdout)
	pt.AppendHeader(table.Row{"ID", "Action", "Expiry", "Justification"})
	for _, ref := range pending {
		rec, err := a.store.Read(ref)
		if err != nil {
			continue
		}
		expiry := ""
		if rec.Expiry != nil {
			expiry = rec.Expiry.Format("2006-01-02 15:04")
		}
		pt.AppendRow(table.Row{rec.ID, rec.ActionType, expiry, rec.Justification})
	}
	pt.Render()
	return nil
}
