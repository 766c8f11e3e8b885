package main

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todobot/internal/notify"
	"github.com/sandeepkv93/todobot/internal/update"
)

var (
	consoleUser    string
	consoleLogFile string
	consolePlain   bool
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the bot locally as a single user",
	Args:  cobra.NoArgs,
	RunE:  runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleUser, "user", "", "user id for this session (default console-user from config)")
	consoleCmd.Flags().StringVar(&consoleLogFile, "log-file", "", "write logs to this file instead of discarding them")
	consoleCmd.Flags().BoolVar(&consolePlain, "plain", false, "show replies as raw markdown")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	user := cfg.ConsoleUser
	if consoleUser != "" {
		user = consoleUser
	}

	var logOut io.Writer = io.Discard
	if consoleLogFile != "" {
		f, err := os.OpenFile(consoleLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, appOptions{logOutput: logOut, withLedger: true})
	if err != nil {
		return err
	}

	// Only the session user is reachable; other stored users are reported
	// as forbidden and retried on a later sweep.
	channel := notify.NewChannelNotifier(64)
	targets := notify.Multi{channel}
	if cfg.DesktopNotifications {
		targets = append(targets, notify.NewDesktopNotifier())
	}
	sweeper, err := a.sweeper(notify.Recipients{
		Allowed: map[string]bool{user: true},
		Next:    targets,
	})
	if err != nil {
		return err
	}
	sweeper.Start(ctx)

	model := update.NewModel(update.Config{
		User:          user,
		Handler:       a.dispatcher(),
		Notifications: channel.C(),
		Now:           a.now,
		Plain:         consolePlain,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()

	sweeper.Stop()
	if dropped := channel.Dropped(); dropped > 0 {
		a.logger.Warn("console notifications dropped", "count", dropped)
	}
	if err := a.close(); err != nil {
		return err
	}
	return runErr
}
