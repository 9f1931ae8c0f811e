package store

import (
	"context"
	"fmt"

	"autocoder/internal/coder"
)

// PersistOptions controls how coded results are applied.
type PersistOptions struct {
	// Run selects which result slot receives the coded triples.
	Run coder.RunVersion
	// ChunkSize bounds the number of updates per statement batch. Values
	// below one fall back to 500.
	ChunkSize int
	// Cancelled is consulted between chunks; when it reports true the whole
	// transaction is rolled back. Optional.
	Cancelled func() bool
	// Progress receives (applied, total) after each chunk. Optional.
	Progress func(applied, total int)
}

const defaultPersistChunk = 500

// PersistCodedResponses applies every coded result to its response's
// run-specific triple inside one transaction, in bounded chunks. It returns
// true when the transaction committed. Observing cancellation rolls back and
// returns false without error; any other failure rolls back and returns the
// error.
func (s *Store) PersistCodedResponses(ctx context.Context, coded []CodedResponse, opts PersistOptions) (bool, error) {
	if len(coded) == 0 {
		return true, nil
	}
	if !opts.Run.Valid() {
		return false, fmt.Errorf("run version %d not supported", int(opts.Run))
	}
	chunkSize := opts.ChunkSize
	if chunkSize < 1 {
		chunkSize = defaultPersistChunk
	}

	var codeCol, scoreCol, statusCol string
	switch opts.Run {
	case coder.RunFirst:
		codeCol, scoreCol, statusCol = "code_v1", "score_v1", "status_v1"
	case coder.RunSecond:
		codeCol, scoreCol, statusCol = "code_v3", "score_v3", "status_v3"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin persist tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(
		`UPDATE responses SET %s = ?, %s = ?, %s = ? WHERE id = ?`,
		codeCol, scoreCol, statusCol,
	)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("prepare persist: %w", err)
	}
	defer stmt.Close()

	total := len(coded)
	for start := 0; start < total; start += chunkSize {
		if opts.Cancelled != nil && opts.Cancelled() {
			return false, nil
		}
		end := start + chunkSize
		if end > total {
			end = total
		}
		for _, record := range coded[start:end] {
			if _, err := stmt.ExecContext(ctx,
				nullableInt64(record.Code),
				nullableInt64(record.Score),
				record.Status.Numeric(),
				record.ResponseID,
			); err != nil {
				return false, fmt.Errorf("apply coded response %d: %w", record.ResponseID, err)
			}
		}
		if opts.Progress != nil {
			opts.Progress(end, total)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit persist: %w", err)
	}
	return true, nil
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}
