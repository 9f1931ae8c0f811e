package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"autocoder/internal/jobs"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the coding-job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent coding jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(store *jobs.Store) error {
				list, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No coding jobs found.")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, job := range list {
					rows = append(rows, []string{
						job.ID,
						fmt.Sprintf("%d", job.WorkspaceID),
						fmt.Sprintf("%d", job.Spec.Run),
						string(job.State),
						fmt.Sprintf("%.0f%%", job.Progress),
						job.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Workspace", "Run", "State", "Progress", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one coding job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(store *jobs.Store) error {
				job, err := store.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:        %s\n", job.ID)
				fmt.Fprintf(out, "Workspace:  %d\n", job.WorkspaceID)
				fmt.Fprintf(out, "Run:        %d\n", job.Spec.Run)
				if len(job.Spec.PersonIDs) > 0 {
					fmt.Fprintf(out, "Persons:    %v\n", job.Spec.PersonIDs)
				}
				if len(job.Spec.Groups) > 0 {
					fmt.Fprintf(out, "Groups:     %v\n", job.Spec.Groups)
				}
				fmt.Fprintf(out, "State:      %s\n", job.State)
				fmt.Fprintf(out, "Paused:     %v\n", job.IsPaused)
				fmt.Fprintf(out, "Progress:   %.0f%%\n", job.Progress)
				fmt.Fprintf(out, "Created:    %s\n", job.CreatedAt.Local().Format(time.DateTime))
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:      %s\n", job.ErrorMessage)
				}
				if job.ResultJSON != "" {
					printResultSummary(out, job.ResultJSON)
				}
				return nil
			})
		},
	}
}

func printResultSummary(out io.Writer, payload string) {
	var result jobs.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		fmt.Fprintf(out, "Result:     unreadable (%v)\n", err)
		return
	}
	fmt.Fprintf(out, "Responses:  %d\n", result.TotalResponses)
	names := make([]string, 0, len(result.StatusCounts))
	for name := range result.StatusCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-20s %d\n", name, result.StatusCounts[name])
	}
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <job-id>",
		Short: "Pause a coding job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(store *jobs.Store) error {
				if err := store.Pause(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paused job %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Resume a paused coding job from the start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(store *jobs.Store) error {
				if err := store.Resume(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed job %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a coding job",
		Long: `Cancel a coding job. A running job stops at its next checkpoint with the
statistics computed so far; nothing from the interrupted pass is persisted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(store *jobs.Store) error {
				if err := store.Cancel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
				return nil
			})
		},
	}
}
