package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var rejectReason string

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List and decide pending approval requests",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests awaiting a decision",
	RunE:  runApprovalsList,
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending request",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending request",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

func init() {
	approvalsRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the request is rejected (required)")
	_ = approvalsRejectCmd.MarkFlagRequired("reason")

	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsRejectCmd)
	rootCmd.AddCommand(approvalsCmd)
}

func runApprovalsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	pending, err := a.gate.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending approvals")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Action", "Created", "Expiry", "Justification"})
	for _, ref := range pending {
		rec, err := a.store.Read(ref)
		if err != nil {
			continue
		}
		expiry := ""
		if rec.Expiry != nil {
			expiry = rec.Expiry.Format("2006-01-02 15:04")
		}
		tw.AppendRow(table.Row{
			rec.ID, rec.ActionType,
			rec.CreatedAt.Format("2006-01-02 15:04"), expiry, rec.Justification,
		})
	}
	tw.Render()
	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ref, err := a.gate.Approve(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Approved %s; it will execute on the next pass\n", ref.ID())
	return nil
}

func runReject(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ref, err := a.gate.Reject(args[0], rejectReason)
	if err != nil {
		return err
	}
	fmt.Printf("Rejected %s: %s\n", ref.ID(), rejectReason)
	return nil
}
