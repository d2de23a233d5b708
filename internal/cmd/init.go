package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the vault directory structure",
	Long: `Create the stage folders, Files/, Logs/, the dedup ledger location,
the drop folder, and the dashboard skeleton. Safe to run on an existing
vault; nothing already present is touched.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	dropDir := a.cfg.Vault.ResolveDropDir()
	if err := os.MkdirAll(dropDir, 0o755); err != nil {
		return fmt.Errorf("create drop folder: %w", err)
	}

	fmt.Printf("Vault initialized at %s\n", a.store.Root())
	fmt.Printf("Drop folder: %s\n", dropDir)
	if a.dash.HoldsToken() {
		fmt.Printf("Dashboard: %s\n", a.store.DashboardPath())
	}
	return nil
}
