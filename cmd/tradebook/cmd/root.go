package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/config"
)

var (
	cfgFile string
	envFile string
	debug   bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tradebook",
	Short: "A trading journal with offline-first sync",
	Long: `Tradebook records futures and stock trades, derives P/L and risk
multiples, and reports on them by period, strategy, session and more.

Journals live in a local SQLite cache and are mirrored to Postgres when
remote.database_url is set. Without it everything still works locally.

It provides tools for:
  - Logging and editing trades from the command line
  - Period summaries, group breakdowns, goals and a monthly calendar
  - JSON backups and CSV exports
  - Serving the journal over HTTP with live updates`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile, envFile)
		if err != nil {
			return err
		}
		if debug {
			c.Log.Level, c.Log.Development = "debug", true
		}
		l, err := c.Log.NewLogger()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file applied before TRADEBOOK_* variables")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging with the development encoder")
}
