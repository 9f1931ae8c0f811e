package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertTestFile stores or replaces a unit-definition file for a workspace.
// Aliases are normalized to upper case, matching unit alias resolution.
func (s *Store) UpsertTestFile(ctx context.Context, workspaceID int64, alias, content string) error {
	alias = strings.ToUpper(strings.TrimSpace(alias))
	if alias == "" {
		return errors.New("test file alias is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO test_files (workspace_id, alias, content, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (workspace_id, alias) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		workspaceID, alias, content, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert test file: %w", err)
	}
	return nil
}

// TestFilesByAliases returns test-definition file contents for the requested
// aliases in one workspace, keyed by alias. Missing aliases are simply absent
// from the result.
func (s *Store) TestFilesByAliases(ctx context.Context, workspaceID int64, aliases []string) (map[string]string, error) {
	if len(aliases) == 0 {
		return map[string]string{}, nil
	}
	args := make([]any, 0, len(aliases)+1)
	args = append(args, workspaceID)
	for _, alias := range aliases {
		args = append(args, strings.ToUpper(strings.TrimSpace(alias)))
	}
	query := `SELECT alias, content FROM test_files
        WHERE workspace_id = ? AND alias IN (` + makePlaceholders(len(aliases)) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query test files: %w", err)
	}
	defer rows.Close()

	files := make(map[string]string, len(aliases))
	for rows.Next() {
		var alias, content string
		if err := rows.Scan(&alias, &content); err != nil {
			return nil, fmt.Errorf("scan test file: %w", err)
		}
		files[alias] = content
	}
	return files, rows.Err()
}

// TestFilesForWorkspace returns every test-definition file of a workspace.
func (s *Store) TestFilesForWorkspace(ctx context.Context, workspaceID int64) ([]TestFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, alias, content FROM test_files WHERE workspace_id = ? ORDER BY alias`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query workspace test files: %w", err)
	}
	defer rows.Close()

	var files []TestFile
	for rows.Next() {
		var file TestFile
		if err := rows.Scan(&file.WorkspaceID, &file.Alias, &file.Content); err != nil {
			return nil, fmt.Errorf("scan workspace test file: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// UpsertScheme stores or replaces a raw coding-scheme payload.
func (s *Store) UpsertScheme(ctx context.Context, id, content string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("scheme id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO scheme_files (id, content, updated_at) VALUES (?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		id, content, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert scheme: %w", err)
	}
	return nil
}

// Scheme returns one raw scheme payload, or sql.ErrNoRows absence mapped to
// ok=false.
func (s *Store) Scheme(ctx context.Context, id string) (string, bool, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM scheme_files WHERE id = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get scheme: %w", err)
	}
	return content, true, nil
}

// SchemesByIDs returns raw scheme payloads keyed by scheme id. Missing ids are
// absent from the result.
func (s *Store) SchemesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, content FROM scheme_files WHERE id IN (` + makePlaceholders(len(ids)) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schemes: %w", err)
	}
	defer rows.Close()

	schemes := make(map[string]string, len(ids))
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scan scheme: %w", err)
		}
		schemes[id] = content
	}
	return schemes, rows.Err()
}
