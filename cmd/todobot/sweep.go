package main

import (
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one delivery sweep and exit",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, appOptions{logOutput: cmd.ErrOrStderr(), withLedger: true})
	if err != nil {
		return err
	}
	sweeper, err := a.sweeper(a.baseNotifier())
	if err != nil {
		return err
	}
	report := sweeper.SweepNow(ctx)
	printf(cmd, "sweep %s: %d reminder(s), %d deadline(s); delivered %d, forbidden %d, failed %d, skipped %d\n",
		report.ID, report.Reminders, report.Deadlines, report.Delivered, report.Forbidden, report.Failed, report.Skipped)
	if err := a.close(); err != nil {
		return err
	}
	return report.Err
}
