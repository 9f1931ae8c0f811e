package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"autocoder/internal/coder"
)

const responseColumns = `id, unit_id, variable_id, value, status,
    code_v1, score_v1, status_v1,
    code_v2, score_v2, status_v2,
    code_v3, score_v3, status_v3`

// InsertResponses bulk-inserts imported responses. A response with a zero
// Status gets its base status derived from the value: empty values start
// UNSET, everything else VALUE_CHANGED.
func (s *Store) InsertResponses(ctx context.Context, responses []Response) ([]int64, error) {
	if len(responses) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO responses (unit_id, variable_id, value, status) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(responses))
	for _, response := range responses {
		if strings.TrimSpace(response.VariableID) == "" {
			return nil, errors.New("response variable id is required")
		}
		status := response.Status
		if status == 0 {
			status = coder.StatusValueChanged
			if strings.TrimSpace(response.Value) == "" {
				status = coder.StatusUnset
			}
		}
		res, err := stmt.ExecContext(ctx, response.UnitID, response.VariableID, response.Value, status.Numeric())
		if err != nil {
			return nil, fmt.Errorf("insert response: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit inserts: %w", err)
	}
	return ids, nil
}

// GetResponse fetches a single response by id, or nil when absent.
func (s *Store) GetResponse(ctx context.Context, id int64) (*Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id)
	response, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	return response, nil
}

// ResponsesForCoding returns the responses of the given units whose
// run-relevant status is runnable, plus responses still awaiting derivation
// from a prior run. For the second run the relevant status falls back from
// the manual slot to the first run's slot to the base status.
func (s *Store) ResponsesForCoding(ctx context.Context, unitIDs []int64, run coder.RunVersion) ([]*Response, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	if !run.Valid() {
		return nil, fmt.Errorf("run version %d not supported", int(run))
	}

	relevant := "status"
	if run == coder.RunSecond {
		relevant = "COALESCE(status_v2, status_v1, status)"
	}

	args := make([]any, 0, len(unitIDs)+4)
	for _, id := range unitIDs {
		args = append(args, id)
	}
	args = append(args,
		coder.StatusUnset.Numeric(),
		coder.StatusValueChanged.Numeric(),
		coder.StatusCodingIncomplete.Numeric(),
		coder.StatusDerivePending.Numeric(),
	)

	query := `SELECT ` + responseColumns + ` FROM responses
        WHERE unit_id IN (` + makePlaceholders(len(unitIDs)) + `)
        AND (` + relevant + ` IN (?, ?, ?) OR status_v1 = ?)
        ORDER BY unit_id, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var responses []*Response
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, response)
	}
	return responses, rows.Err()
}

func scanResponse(scanner interface{ Scan(dest ...any) error }) (*Response, error) {
	var (
		response Response
		status   int
		v1Code   sql.NullInt64
		v1Score  sql.NullInt64
		v1Status sql.NullInt64
		v2Code   sql.NullInt64
		v2Score  sql.NullInt64
		v2Status sql.NullInt64
		v3Code   sql.NullInt64
		v3Score  sql.NullInt64
		v3Status sql.NullInt64
	)
	if err := scanner.Scan(
		&response.ID,
		&response.UnitID,
		&response.VariableID,
		&response.Value,
		&status,
		&v1Code, &v1Score, &v1Status,
		&v2Code, &v2Score, &v2Status,
		&v3Code, &v3Score, &v3Status,
	); err != nil {
		return nil, err
	}
	response.Status = coder.Status(status)
	response.V1 = tripleFromNulls(v1Code, v1Score, v1Status)
	response.V2 = tripleFromNulls(v2Code, v2Score, v2Status)
	response.V3 = tripleFromNulls(v3Code, v3Score, v3Status)
	return &response, nil
}

func tripleFromNulls(code, score, status sql.NullInt64) Triple {
	var triple Triple
	if code.Valid {
		v := code.Int64
		triple.Code = &v
	}
	if score.Valid {
		v := score.Int64
		triple.Score = &v
	}
	if status.Valid {
		v := coder.Status(status.Int64)
		triple.Status = &v
	}
	return triple
}
