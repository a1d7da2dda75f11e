package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shohbitgupta/contract-risk-agent/internal/ingest"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

// newBuildCmd creates the build command: parse statute text and persist the
// index pair for one (jurisdiction, document-type) corpus.
func newBuildCmd() *cobra.Command {
	var (
		actName      string
		docType      string
		jurisdiction string
		state        string
		actVersion   string
		indexName    string
	)

	cmd := &cobra.Command{
		Use:   "build <statute-text-file>",
		Short: "Parse statute text into sections and build an index pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read statute text: %w", err)
			}

			embedder := newEmbedder(cfg)
			defer func() { _ = embedder.Close() }()

			builder, err := ingest.NewBuilder(embedder, cfg.Paths.IndexDir)
			if err != nil {
				return err
			}

			result, err := builder.Build(cmd.Context(), string(text), ingest.BuildOptions{
				ActName:      actName,
				DocType:      statute.DocumentType(docType),
				Jurisdiction: jurisdiction,
				State:        state,
				Version:      actVersion,
				IndexName:    indexName,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d sections into %s\n", result.Documents, result.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&actName, "act", "", "Act or rule name (required)")
	cmd.Flags().StringVar(&docType, "doc-type", string(statute.DocTypeActSection), "Document type")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "Jurisdiction code, e.g. IN-MH (required)")
	cmd.Flags().StringVar(&state, "state", "", "State name; empty for central law")
	cmd.Flags().StringVar(&actVersion, "act-version", "", "Act version label")
	cmd.Flags().StringVar(&indexName, "index-name", "", "Chunk ID prefix; defaults to the doc type")
	_ = cmd.MarkFlagRequired("act")
	_ = cmd.MarkFlagRequired("jurisdiction")

	return cmd
}
