package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/ground"
	"github.com/shohbitgupta/contract-risk-agent/internal/retrieval"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

// retrieveOutput is the per-clause JSON emitted by the retrieve command.
type retrieveOutput struct {
	Pack         *evidence.Pack `json:"pack,omitempty"`
	Groundedness *ground.Result `json:"groundedness,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// newRetrieveCmd creates the retrieve command: run the hybrid pipeline
// for one clause from flags, or a batch from a JSON file.
func newRetrieveCmd() *cobra.Command {
	var (
		jurisdiction string
		clauseID     string
		intent       string
		anchors      []string
		clausesFile  string
		skipScore    bool
	)

	cmd := &cobra.Command{
		Use:   "retrieve [clause text]",
		Short: "Retrieve and score statutory evidence for contract clauses",
		Long: `Retrieve runs the hybrid retrieval pipeline for contract clauses against
the indexes of one jurisdiction and prints the evidence packs as JSON.

A single clause is given as the positional argument; a batch is given
as a JSON file via --clauses (an array of clause objects). Expected
citations are passed as --anchor "Act Name|Section" and are guaranteed
a slot in the result when the corpus contains them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			clauses, err := collectClauses(args, clauseID, intent, anchors, clausesFile)
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

			orch, err := newOrchestrator(cfg, reg, embedder)
			if err != nil {
				return err
			}

			var evaluator *ground.Evaluator
			if !skipScore {
				evaluator, err = ground.New(cfg.Ground)
				if err != nil {
					return err
				}
			}

			results := orch.RetrieveAll(cmd.Context(), jurisdiction, clauses)

			// Single-clause mode surfaces failures directly; batch mode
			// reports them per clause so one bad clause cannot sink the rest.
			if len(results) == 1 && clausesFile == "" && results[0].Err != nil {
				return results[0].Err
			}

			outputs := make([]retrieveOutput, 0, len(results))
			for i, res := range results {
				out := retrieveOutput{Pack: res.Pack}
				if res.Err != nil {
					out.Error = res.Err.Error()
				} else if evaluator != nil {
					score, serr := evaluator.Evaluate(clauses[i].Text, res.Pack)
					if serr != nil {
						return serr
					}
					out.Groundedness = score
				}
				outputs = append(outputs, out)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(outputs) == 1 && clausesFile == "" {
				return enc.Encode(outputs[0])
			}
			return enc.Encode(outputs)
		},
	}

	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "Jurisdiction code, e.g. IN-MH (required)")
	cmd.Flags().StringVar(&clauseID, "clause-id", "clause-1", "Clause identifier for single-clause mode")
	cmd.Flags().StringVar(&intent, "intent", "", "Clause intent label, e.g. refund")
	cmd.Flags().StringArrayVar(&anchors, "anchor", nil, `Expected citation as "Act Name|Section"; repeatable`)
	cmd.Flags().StringVar(&clausesFile, "clauses", "", "JSON file with an array of clause objects")
	cmd.Flags().BoolVar(&skipScore, "no-score", false, "Skip groundedness scoring")
	_ = cmd.MarkFlagRequired("jurisdiction")

	return cmd
}

// collectClauses assembles the clause batch from either the positional
// argument or the --clauses file; exactly one source must be given.
func collectClauses(args []string, clauseID, intent string, anchors []string, clausesFile string) ([]retrieval.ClauseInput, error) {
	if clausesFile != "" {
		if len(args) > 0 {
			return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "pass either clause text or --clauses, not both", nil)
		}
		data, err := os.ReadFile(clausesFile)
		if err != nil {
			return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "read clauses file", err)
		}
		var clauses []retrieval.ClauseInput
		if err := json.Unmarshal(data, &clauses); err != nil {
			return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "parse clauses file", err)
		}
		if len(clauses) == 0 {
			return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "clauses file contains no clauses", nil)
		}
		return clauses, nil
	}

	if len(args) == 0 {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "clause text or --clauses is required", nil)
	}

	parsed, err := parseAnchorFlags(anchors)
	if err != nil {
		return nil, err
	}
	return []retrieval.ClauseInput{{
		ClauseID:        clauseID,
		Text:            args[0],
		Intent:          intent,
		ExpectedAnchors: parsed,
	}}, nil
}

// parseAnchorFlags parses repeated --anchor values of the form
// "Act Name|Section".
func parseAnchorFlags(values []string) ([]statute.Anchor, error) {
	anchors := make([]statute.Anchor, 0, len(values))
	for _, v := range values {
		act, section, ok := strings.Cut(v, "|")
		if !ok || strings.TrimSpace(act) == "" || strings.TrimSpace(section) == "" {
			return nil, riskerr.New(riskerr.ErrCodeInvalidInput,
				fmt.Sprintf("anchor %q must be of the form \"Act Name|Section\"", v), nil)
		}
		anchors = append(anchors, statute.NewAnchor(act, section))
	}
	return anchors, nil
}
