package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autocoder/internal/jobs"
	"autocoder/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine databases and job-queue summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := ctx.withResponses(func(s *store.Store) error {
				fmt.Fprintf(out, "Response store: %s\n", s.Path())
				return nil
			})
			if err != nil {
				return err
			}
			return ctx.withJobs(func(s *jobs.Store) error {
				fmt.Fprintf(out, "Job store:      %s\n", s.Path())
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if stats.Total() == 0 {
					fmt.Fprintln(out, "No coding jobs recorded.")
					return nil
				}
				rows := make([][]string, 0, len(stats))
				for _, state := range []jobs.State{
					jobs.StateWaiting, jobs.StateActive, jobs.StateDelayed,
					jobs.StatePaused, jobs.StateCompleted, jobs.StateFailed,
				} {
					if count, ok := stats[state]; ok {
						rows = append(rows, []string{string(state), fmt.Sprintf("%d", count)})
					}
				}
				fmt.Fprintln(out, renderTable(
					[]string{"State", "Jobs"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
