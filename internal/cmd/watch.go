package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tbonner/vaultd/internal/errors"
	"github.com/tbonner/vaultd/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the drop folder for new files",
	Long: `Watch the configured drop folder and deposit each new file into the
vault's Inbox stage: the artifact is copied into Files/, categorized,
and given a suggested-actions checklist. Runs until SIGINT/SIGTERM.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	dropDir := a.cfg.Vault.ResolveDropDir()
	if err := os.MkdirAll(dropDir, 0o755); err != nil {
		return fmt.Errorf("create drop folder: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drop := watcher.NewDropFolder(dropDir, a.log)
	err = drop.Run(ctx, func(item watcher.Item) error {
		_, rec, err := a.intake.Deposit(item, drop.Describe(item))
		if err != nil {
			return err
		}
		fmt.Printf("deposited %s (%s)\n", rec.ID, item.Source)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
