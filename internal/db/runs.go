package db

import (
	"context"
	"database/sql"
	"time"
)

const runColumns = `id, scout_id, status, started_at, completed_at, results_count, high_relevance_count, error`

// CreateScoutRun creates a new run record and stamps the scout's last_run_at
func (db *DB) CreateScoutRun(ctx context.Context, run *ScoutRun) error {
	return db.WithTransaction(ctx, func(tx *Tx) error {
		_, err := tx.exec(ctx, `
			INSERT INTO scout_runs (id, scout_id, status, started_at, completed_at, results_count, high_relevance_count, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.ScoutID,
			run.Status,
			run.StartedAt,
			run.CompletedAt,
			run.ResultsCount,
			run.HighRelevanceCount,
			run.Error,
		)
		if err != nil {
			if IsDuplicate(err) {
				return ErrDuplicate
			}
			if IsForeignKey(err) {
				return ErrForeignKey
			}
			return err
		}

		_, err = tx.exec(ctx, `UPDATE scouts SET last_run_at = ? WHERE id = ?`, run.StartedAt, run.ScoutID)
		return err
	})
}

// GetScoutRun retrieves a run by its ID
func (db *DB) GetScoutRun(ctx context.Context, runID string) (*ScoutRun, error) {
	query := `SELECT ` + runColumns + ` FROM scout_runs WHERE id = ?`

	run, err := scanRun(db.QueryRowContext(ctx, db.rebind(query), runID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// GetScoutRuns retrieves the most recent runs for a scout
func (db *DB) GetScoutRuns(ctx context.Context, scoutID string, limit int) ([]ScoutRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM scout_runs
		WHERE scout_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, db.rebind(query), scoutID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScoutRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice instead of nil
	if runs == nil {
		runs = []ScoutRun{}
	}

	return runs, nil
}

// FinishScoutRun records the terminal state of a run. Rows that are already
// terminal are left untouched and reported as not found.
func (db *DB) FinishScoutRun(ctx context.Context, run *ScoutRun) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	query := `
		UPDATE scout_runs
		SET status = ?, completed_at = ?, results_count = ?, high_relevance_count = ?, error = ?
		WHERE id = ? AND status NOT IN ('completed', 'failed')
	`

	result, err := db.ExecContext(ctx, db.rebind(query),
		run.Status,
		run.CompletedAt,
		run.ResultsCount,
		run.HighRelevanceCount,
		run.Error,
		run.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func scanRun(row rowScanner) (*ScoutRun, error) {
	run := &ScoutRun{}
	err := row.Scan(
		&run.ID,
		&run.ScoutID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ResultsCount,
		&run.HighRelevanceCount,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
