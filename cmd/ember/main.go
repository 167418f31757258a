package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zackbrooks84/Ember/internal/config"
	"github.com/zackbrooks84/Ember/internal/telemetry"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ember",
		Short: "Identity stability experiments over embedded transcripts",
		Long: `ember measures how a conversational trajectory settles. It computes
drift (xi) between consecutive state vectors, runs a stabilizer
simulation with anchor and attack events, reweights anchors by observed
effect, and evaluates stability endpoints over identity/null run pairs.`,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimCmd(),
		newEvalCmd(),
		newRunPairCmd(),
		newReplayCmd(),
		newInspectCmd(),
		newWeightsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "{\"version\":%q}\n", version)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ember version %s\n", version)
		},
	}
}

// loadConfig resolves the layered configuration and applies the global
// flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return telemetry.NewLogger(cfg.Logging.Level, os.Stderr)
}
