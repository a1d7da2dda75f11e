package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

// newRegistryCmd groups the index registry maintenance subcommands.
func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and validate the jurisdiction index registry",
	}

	cmd.AddCommand(newRegistryListCmd())
	cmd.AddCommand(newRegistryValidateCmd())

	return cmd
}

// newRegistryListCmd lists the jurisdictions present under the index dir.
func newRegistryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jurisdictions with on-disk indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embedder := newEmbedder(cfg)
			defer func() { _ = embedder.Close() }()

			reg, err := newRegistry(cfg, embedder)
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()

			jurisdictions, err := reg.ListJurisdictions()
			if err != nil {
				return err
			}
			if len(jurisdictions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No indexes found in", cfg.Paths.IndexDir)
				return nil
			}
			for _, j := range jurisdictions {
				fmt.Fprintln(cmd.OutOrStdout(), j)
			}
			return nil
		},
	}
}

// newRegistryValidateCmd loads every index pair fail-closed, surfacing
// corruption or dimension mismatches before they hit a retrieval call.
func newRegistryValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every index pair and fail on the first inconsistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embedder := newEmbedder(cfg)
			defer func() { _ = embedder.Close() }()

			reg, err := newRegistry(cfg, embedder)
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()

			jurisdictions, err := reg.ListJurisdictions()
			if err != nil {
				return err
			}
			if len(jurisdictions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No indexes found in", cfg.Paths.IndexDir)
				return nil
			}

			validated := 0
			for _, j := range jurisdictions {
				for _, docType := range statute.KnownDocumentTypes {
					idx, err := reg.Resolve(cmd.Context(), j, docType)
					if err != nil {
						if riskerr.GetCode(err) == riskerr.ErrCodeIndexNotFound {
							continue
						}
						return fmt.Errorf("%s/%s: %w", j, docType, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: %d documents\n", j, docType, idx.Count())
					validated++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Validated %d index pairs\n", validated)
			return nil
		},
	}
}
