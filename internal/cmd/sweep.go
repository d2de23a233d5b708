package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Recover stale claims and expire stale approvals",
	Long: `Run the recovery sweeps once, outside the loop: claims older than the
stale threshold are requeued (or quarantined once out of attempts), and
pending approval requests past their expiry are auto-rejected.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	now := time.Now()
	result, err := a.store.SweepStaleClaims(now, a.cfg.Claim.StaleAfter(), a.cfg.Claim.AttemptCeiling)
	if err != nil {
		return err
	}
	expired, err := a.gate.SweepExpired(now)
	if err != nil {
		return err
	}

	fmt.Printf("requeued=%d quarantined=%d expired=%d\n",
		len(result.Requeued), len(result.Quarantined), len(expired))
	return nil
}
