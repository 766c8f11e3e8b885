// Command todobot runs the to-do and reminder bot core: the delivery
// sweeper, a local chat console and operator tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todobot/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configPath   string
	dataFileFlag string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:           "todobot",
	Short:         "Private to-do lists and reminders with encrypted storage",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a TOML config file (default todobot.toml if present)")
	flags.StringVar(&dataFileFlag, "data-file", "", "override the data file path")
	flags.StringVar(&logLevelFlag, "log-level", "", "override the log level (debug, info, warn, error)")
}

// loadConfig resolves configuration from file, .env, environment and the
// persistent flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("data-file") {
		cfg.DataFile = dataFileFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
