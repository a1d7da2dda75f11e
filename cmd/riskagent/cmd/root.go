// Package cmd provides the CLI commands for riskagent.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shohbitgupta/contract-risk-agent/internal/config"
	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/logging"
	"github.com/shohbitgupta/contract-risk-agent/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the riskagent CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "riskagent",
		Short: "Statutory evidence retrieval and groundedness engine",
		Long: `riskagent retrieves statutory evidence for contract clauses using
hybrid (dense + BM25) search over jurisdiction-scoped statute indexes,
guarantees expected citations survive ranking, and scores how well the
retrieved evidence grounds a risk judgment.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("riskagent version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFileName, "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newRetrieveCmd())
	cmd.AddCommand(newRegistryCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the configured slog default before any command runs.
// A missing config file falls back to default logging; commands that need
// the file report the error themselves.
func setupLogging(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		if riskerr.GetCode(err) != riskerr.ErrCodeConfigNotFound {
			return err
		}
		cfg = config.Default()
	}

	logCfg := logging.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.File,
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	_, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig reads the config file named by the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
