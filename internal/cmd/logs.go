package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logsDate string

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the audit log for a day",
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsDate, "date", "", "day to show, YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	day := time.Now()
	if logsDate != "" {
		day, err = time.Parse("2006-01-02", logsDate)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
	}

	entries, err := a.audit.Read(day)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No audit entries for %s\n", day.Format("2006-01-02"))
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("%s  %-8s  %s: %s\n",
			entry.Timestamp.Format("15:04:05"), entry.Status, entry.Action, entry.Details)
	}
	return nil
}
