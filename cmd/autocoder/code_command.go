package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"autocoder/internal/jobs"
)

func newCodeCommand(ctx *commandContext) *cobra.Command {
	var (
		workspaceID int64
		persons     []string
		groups      []string
		run         int
		delay       time.Duration
		wait        bool
	)

	cmd := &cobra.Command{
		Use:   "code",
		Short: "Enqueue an automated coding run",
		Long: `Enqueue an automated coding run for a workspace. The target population is
either an explicit person list (--persons) or every considered person of the
given groups (--groups). Run 1 writes the first autocoder result slot, run 2
the second.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID <= 0 {
				return errors.New("--workspace is required")
			}
			if len(persons) == 0 && len(groups) == 0 {
				return errors.New("either --persons or --groups is required")
			}
			if len(persons) > 0 && len(groups) > 0 {
				return errors.New("--persons and --groups are mutually exclusive")
			}
			if run != 1 && run != 2 {
				return fmt.Errorf("--run must be 1 or 2, got %d", run)
			}

			return ctx.withJobs(func(store *jobs.Store) error {
				job, err := store.Enqueue(cmd.Context(), jobs.BatchSpec{
					WorkspaceID: workspaceID,
					PersonIDs:   persons,
					Groups:      groups,
					Run:         run,
				}, delay)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Enqueued coding job %s (%s)\n", job.ID, job.State)
				if !wait {
					fmt.Fprintln(out, "Track it with `autocoder queue show <id>` while the daemon processes it.")
					return nil
				}
				return waitForJob(cmd, store, job.ID)
			})
		},
	}

	cmd.Flags().Int64VarP(&workspaceID, "workspace", "w", 0, "Workspace id")
	cmd.Flags().StringSliceVar(&persons, "persons", nil, "Person ids to code")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "Group names whose considered persons are coded")
	cmd.Flags().IntVarP(&run, "run", "r", 1, "Coding run (1 or 2)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay before the job becomes runnable")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish and print its statistics")
	return cmd
}

func waitForJob(cmd *cobra.Command, store *jobs.Store, id string) error {
	out := cmd.OutOrStdout()
	lastProgress := -1.0
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(500 * time.Millisecond):
		}

		job, err := store.GetJob(cmd.Context(), id)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s disappeared", id)
		}
		if job.State == jobs.StateActive && job.Progress != lastProgress {
			fmt.Fprintf(out, "  %3.0f%%\n", job.Progress)
			lastProgress = job.Progress
		}
		switch job.State {
		case jobs.StateCompleted, jobs.StatePaused:
			printJobResult(cmd, job)
			return nil
		case jobs.StateFailed:
			return fmt.Errorf("job failed: %s", job.ErrorMessage)
		}
	}
}

func printJobResult(cmd *cobra.Command, job *jobs.Job) {
	out := cmd.OutOrStdout()
	if job.State == jobs.StatePaused {
		fmt.Fprintln(out, "Job stopped before completion; partial statistics:")
	}
	if job.ResultJSON == "" {
		fmt.Fprintln(out, "No statistics recorded.")
		return
	}
	var result jobs.Result
	if err := json.Unmarshal([]byte(job.ResultJSON), &result); err != nil {
		fmt.Fprintf(out, "Unreadable result payload: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Coded %d responses\n", result.TotalResponses)
	if len(result.StatusCounts) == 0 {
		return
	}
	names := make([]string, 0, len(result.StatusCounts))
	for name := range result.StatusCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", result.StatusCounts[name])})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Status", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}
