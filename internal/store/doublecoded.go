package store

import (
	"context"
	"database/sql"
	"fmt"

	"autocoder/internal/coder"
)

// ManualCode is one externally produced manual coding result destined for a
// response's v2 slot.
type ManualCode struct {
	ResponseID int64
	Code       *int64
	Score      *int64
	Status     coder.Status
}

// ImportManualCodes writes externally produced manual results into the v2
// slots of the named responses. The engine itself never touches v2; this is
// the import path that makes agreement analysis possible.
func (s *Store) ImportManualCodes(ctx context.Context, codes []ManualCode) error {
	if len(codes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin manual import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE responses SET code_v2 = ?, score_v2 = ?, status_v2 = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare manual import: %w", err)
	}
	defer stmt.Close()

	for _, mc := range codes {
		if _, err := stmt.ExecContext(ctx,
			nullableInt64(mc.Code), nullableInt64(mc.Score), mc.Status.Numeric(), mc.ResponseID,
		); err != nil {
			return fmt.Errorf("import manual code for response %d: %w", mc.ResponseID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit manual import: %w", err)
	}
	return nil
}

// DoubleCodedPair is one response coded by both the first autocoder run and
// the manual pass, grouped for agreement analysis.
type DoubleCodedPair struct {
	UnitName   string
	VariableID string
	Code1      *int64
	Code2      *int64
}

// DoubleCodedPairs returns every response in a workspace carrying both a v1
// (autocoder run one) and a v2 (manual) result, ordered by unit name and
// variable id so callers can group them into coder pairs.
func (s *Store) DoubleCodedPairs(ctx context.Context, workspaceID int64) ([]DoubleCodedPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.name, r.variable_id, r.code_v1, r.code_v2
         FROM responses r
         JOIN units u ON u.id = r.unit_id
         JOIN booklets b ON b.id = u.booklet_id
         JOIN persons p ON p.id = b.person_id
         WHERE p.workspace_id = ?
           AND r.status_v1 IS NOT NULL
           AND r.status_v2 IS NOT NULL
         ORDER BY u.name, r.variable_id, r.id`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query double-coded responses: %w", err)
	}
	defer rows.Close()

	var pairs []DoubleCodedPair
	for rows.Next() {
		var pair DoubleCodedPair
		var code1, code2 sql.NullInt64
		if err := rows.Scan(&pair.UnitName, &pair.VariableID, &code1, &code2); err != nil {
			return nil, fmt.Errorf("scan double-coded pair: %w", err)
		}
		if code1.Valid {
			pair.Code1 = &code1.Int64
		}
		if code2.Valid {
			pair.Code2 = &code2.Int64
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}
