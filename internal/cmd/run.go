package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbonner/vaultd/internal/errors"
)

var (
	runOnce     bool
	runInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestration loop",
	Long: `Run orchestration passes over the vault: admit and dedup Inbox items,
execute approved actions, claim and dispatch actionable items, and sweep
expired approvals and stale claims. Stops cleanly on SIGINT/SIGTERM.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single pass and exit")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "seconds between passes (overrides loop.interval_seconds)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runOnce {
		sum, err := a.orch.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("admitted=%d deduped=%d claimed=%d completed=%d held=%d requeued=%d quarantined=%d expired=%d\n",
			sum.Admitted, sum.Deduped, sum.Claimed, sum.Completed,
			sum.HeldForOK, sum.Requeued, sum.Quarantined, sum.Expired)
		return nil
	}

	interval := runInterval
	if interval <= 0 {
		interval = a.cfg.Loop.Interval()
	}

	err = a.orch.Run(ctx, interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
