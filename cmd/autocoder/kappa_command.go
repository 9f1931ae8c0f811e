package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autocoder/internal/kappa"
	"autocoder/internal/store"
)

func newKappaCommand(ctx *commandContext) *cobra.Command {
	var workspaceID int64

	cmd := &cobra.Command{
		Use:   "kappa",
		Short: "Compute Cohen's Kappa agreement between autocoder and manual coding",
		Long: `Compute Cohen's Kappa for every double-coded unit/variable of a workspace,
comparing the first autocoder run against the manual coding pass, plus a
workspace-level average.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID <= 0 {
				return errors.New("--workspace is required")
			}
			return ctx.withResponses(func(s *store.Store) error {
				raw, err := s.DoubleCodedPairs(cmd.Context(), workspaceID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(raw) == 0 {
					fmt.Fprintln(out, "No double-coded responses found.")
					return nil
				}

				results := kappa.Calculate(groupPairs(raw))
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					rows = append(rows, []string{
						result.UnitName,
						result.VariableID,
						fmt.Sprintf("%d", result.ValidPairs),
						fmt.Sprintf("%.1f%%", result.Agreement),
						formatKappa(result.Kappa),
						result.Interpretation,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Unit", "Variable", "Pairs", "Agreement", "Kappa", "Interpretation"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))

				summary := kappa.Summarize(results)
				fmt.Fprintf(out, "Workspace average kappa: %.3f over %d of %d pairs (%s)\n",
					summary.AverageKappa, summary.DefinedPairs, summary.PairCount, summary.Interpretation)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workspaceID, "workspace", "w", 0, "Workspace id")
	return cmd
}

// groupPairs folds the flat store rows into one coder pair per unit/variable.
// The rows arrive ordered by unit and variable.
func groupPairs(raw []store.DoubleCodedPair) []kappa.CoderPair {
	var pairs []kappa.CoderPair
	for _, row := range raw {
		n := len(pairs)
		if n == 0 || pairs[n-1].UnitName != row.UnitName || pairs[n-1].VariableID != row.VariableID {
			pairs = append(pairs, kappa.CoderPair{
				Coder1:     "autocoder",
				Coder2:     "manual",
				UnitName:   row.UnitName,
				VariableID: row.VariableID,
			})
			n++
		}
		pairs[n-1].Observations = append(pairs[n-1].Observations, kappa.Observation{
			Code1: row.Code1,
			Code2: row.Code2,
		})
	}
	return pairs
}

func formatKappa(value *float64) string {
	if value == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *value)
}
