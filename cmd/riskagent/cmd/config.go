package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shohbitgupta/contract-risk-agent/internal/config"
	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage engine configuration",
		Long: `Manage the engine configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. Config file (riskagent.yaml, or the --config path)
  3. Environment variables (RISKAGENT_*)`,
		Example: `  # Create a config file from defaults
  riskagent config init

  # Show effective configuration (merged from all sources)
  riskagent config show

  # Print the config file path in use
  riskagent config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return riskerr.New(riskerr.ErrCodeInvalidInput,
					fmt.Sprintf("config file %s already exists; use --force to overwrite", configPath), nil)
			}
			if dir := filepath.Dir(configPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create config directory: %w", err)
				}
			}
			if err := config.Default().WriteYAML(configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration after merging all sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path in use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), configPath)
			return nil
		},
	}
}
