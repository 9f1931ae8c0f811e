package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"autocoder/internal/store"
	"autocoder/internal/unitdef"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Manage workspace definition files",
	}

	filesCmd.AddCommand(newFilesUploadCommand(ctx))
	filesCmd.AddCommand(newFilesListCommand(ctx))
	filesCmd.AddCommand(newSchemeUploadCommand(ctx))

	return filesCmd
}

func newFilesUploadCommand(ctx *commandContext) *cobra.Command {
	var (
		workspaceID int64
		alias       string
	)

	cmd := &cobra.Command{
		Use:   "upload <unit-definition.xml>",
		Short: "Upload a unit-definition file into a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID <= 0 {
				return errors.New("--workspace is required")
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read definition file: %w", err)
			}
			def, err := unitdef.Parse(content)
			if err != nil {
				return fmt.Errorf("parse definition file: %w", err)
			}

			key := strings.TrimSpace(alias)
			if key == "" {
				key = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			return ctx.withResponses(func(s *store.Store) error {
				if err := s.UpsertTestFile(cmd.Context(), workspaceID, key, string(content)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Uploaded unit %s as alias %s (%d declared variables)\n",
					def.Name, strings.ToUpper(key), len(def.Variables))
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workspaceID, "workspace", "w", 0, "Workspace id")
	cmd.Flags().StringVarP(&alias, "alias", "a", "", "Unit alias (defaults to the file name)")
	return cmd
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	var workspaceID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a workspace's unit-definition files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspaceID <= 0 {
				return errors.New("--workspace is required")
			}
			return ctx.withResponses(func(s *store.Store) error {
				files, err := s.TestFilesForWorkspace(cmd.Context(), workspaceID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintln(out, "No definition files uploaded.")
					return nil
				}
				rows := make([][]string, 0, len(files))
				for _, file := range files {
					unitName := ""
					schemeRef := ""
					if def, parseErr := unitdef.Parse([]byte(file.Content)); parseErr == nil {
						unitName = def.Name
						schemeRef = def.SchemeRef
					} else {
						unitName = "(unparseable)"
					}
					rows = append(rows, []string{file.Alias, unitName, schemeRef})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Alias", "Unit", "Scheme"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&workspaceID, "workspace", "w", 0, "Workspace id")
	return cmd
}

func newSchemeUploadCommand(ctx *commandContext) *cobra.Command {
	var schemeID string

	cmd := &cobra.Command{
		Use:   "upload-scheme <scheme.json>",
		Short: "Upload a coding scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(schemeID)
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read scheme file: %w", err)
			}
			return ctx.withResponses(func(s *store.Store) error {
				if err := s.UpsertScheme(cmd.Context(), id, string(content)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded scheme %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&schemeID, "id", "", "Scheme reference id (defaults to the file name)")
	return cmd
}
