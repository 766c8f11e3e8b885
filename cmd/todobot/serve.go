package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reminder and deadline sweeper until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, appOptions{logOutput: cmd.ErrOrStderr(), withLedger: true})
	if err != nil {
		return err
	}
	sweeper, err := a.sweeper(a.baseNotifier())
	if err != nil {
		return err
	}

	a.logger.Info("sweeper started",
		"interval", cfg.ScanInterval.Duration,
		"lookahead", cfg.DeadlineLookahead(),
		"encryption", a.crypter.Enabled(),
	)
	sweeper.Start(ctx)
	<-ctx.Done()
	sweeper.Stop()

	st := sweeper.Stats()
	a.logger.Info("sweeper stopped", "sweeps", st.Sweeps, "delivered", st.Delivered, "failed", st.Failed)
	return a.close()
}
