package db

import (
	"context"
	"database/sql"
	"time"
)

const resultColumns = `scout_id, url, run_id, category, relevance_score, title, detail, rationale, updated_at`

// UpsertScoutResults writes a batch of results in one transaction, keyed by
// (scout_id, url). Existing rows take the newer values and run provenance.
func (db *DB) UpsertScoutResults(ctx context.Context, results []ScoutResult) (inserted, updated int, err error) {
	if len(results) == 0 {
		return 0, 0, nil
	}

	err = db.WithTransaction(ctx, func(tx *Tx) error {
		inserted, updated = 0, 0
		for i := range results {
			created, err := tx.UpsertScoutResult(ctx, &results[i])
			if err != nil {
				return err
			}
			if created {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return inserted, updated, nil
}

// UpsertScoutResult writes one result within a transaction and reports
// whether a new row was created
func (tx *Tx) UpsertScoutResult(ctx context.Context, result *ScoutResult) (bool, error) {
	if result.UpdatedAt.IsZero() {
		result.UpdatedAt = time.Now().UTC()
	}

	var exists int
	err := tx.queryRow(ctx, `SELECT 1 FROM scout_results WHERE scout_id = ? AND url = ?`,
		result.ScoutID, result.URL).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	if err == sql.ErrNoRows {
		_, err = tx.exec(ctx, `
			INSERT INTO scout_results (scout_id, url, run_id, category, relevance_score, title, detail, rationale, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			result.ScoutID,
			result.URL,
			result.RunID,
			result.Category,
			result.RelevanceScore,
			result.Title,
			result.Detail,
			result.Rationale,
			result.UpdatedAt,
		)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	_, err = tx.exec(ctx, `
		UPDATE scout_results
		SET run_id = ?, category = ?, relevance_score = ?, title = ?, detail = ?, rationale = ?, updated_at = ?
		WHERE scout_id = ? AND url = ?
	`,
		result.RunID,
		result.Category,
		result.RelevanceScore,
		result.Title,
		result.Detail,
		result.Rationale,
		result.UpdatedAt,
		result.ScoutID,
		result.URL,
	)
	if err != nil {
		return false, err
	}
	return false, nil
}

// GetScoutResult retrieves a single result by its natural key
func (db *DB) GetScoutResult(ctx context.Context, scoutID, url string) (*ScoutResult, error) {
	query := `SELECT ` + resultColumns + ` FROM scout_results WHERE scout_id = ? AND url = ?`

	result, err := scanResult(db.QueryRowContext(ctx, db.rebind(query), scoutID, url))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetScoutResults retrieves persisted results for a scout, best first
func (db *DB) GetScoutResults(ctx context.Context, scoutID string, limit int) ([]ScoutResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM scout_results
		WHERE scout_id = ?
		ORDER BY relevance_score DESC, url
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, db.rebind(query), scoutID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ScoutResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice instead of nil
	if results == nil {
		results = []ScoutResult{}
	}

	return results, nil
}

func scanResult(row rowScanner) (*ScoutResult, error) {
	result := &ScoutResult{}
	err := row.Scan(
		&result.ScoutID,
		&result.URL,
		&result.RunID,
		&result.Category,
		&result.RelevanceScore,
		&result.Title,
		&result.Detail,
		&result.Rationale,
		&result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}
