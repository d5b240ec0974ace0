package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ml-under-the-hood/traceplay/playback/observability"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Path to defaults.yaml
	endpoint   string // Base URL of the algorithm service

	// cfg is the effective configuration after the defaults file and flags are applied.
	cfg = DefaultConfig()

	tracingShutdown func(context.Context) error
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "traceplay",
	Short: "Fetch and step through recorded ML algorithm traces",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg = loadConfig(configPath, cmd.Flags().Changed("config"))
		if cmd.Flags().Changed("endpoint") {
			cfg.Endpoint = endpoint
		}
		if err := cfg.Apply(); err != nil {
			logrus.Fatalf("Invalid family configuration: %v", err)
		}

		tracingShutdown, err = observability.InitTracing(cmd.Context(), observability.ConfigFromEnv(cfg.Tracing))
		if err != nil {
			logrus.Fatalf("Failed to initialise tracing: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.ShutdownWithTimeout(context.Background(), tracingShutdown)
	},
}

// loadConfig reads the defaults file. A missing default file falls back to the
// built-in configuration; a missing file named with --config is fatal.
func loadConfig(path string, explicit bool) Config {
	loaded, err := LoadConfig(path)
	if err == nil {
		logrus.Debugf("Loaded defaults from %s", path)
		return loaded
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		logrus.Debugf("No defaults file at %s; using built-in defaults", path)
		return DefaultConfig()
	}
	logrus.Fatalf("Failed to load configuration: %v", err)
	return Config{}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "defaults.yaml", "Path to the defaults YAML file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Base URL of the algorithm service (overrides defaults file)")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(exportCmd)
}
