package db

import (
	"context"
	"database/sql"
	"time"
)

// =============================================================================
// Scout Operations
// =============================================================================

const scoutColumns = `id, name, instructions, keywords, platform, platform_config, max_results,
	quality_threshold, frequency, is_running, total_runs, last_run_at, created_at, updated_at`

// CreateScout creates a new scout
func (db *DB) CreateScout(ctx context.Context, scout *Scout) error {
	now := time.Now().UTC()
	scout.CreatedAt = now
	scout.UpdatedAt = now

	query := `
		INSERT INTO scouts (id, name, instructions, keywords, platform, platform_config, max_results,
			quality_threshold, frequency, is_running, total_runs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, db.rebind(query),
		scout.ID,
		scout.Name,
		scout.Instructions,
		scout.Keywords,
		scout.Platform,
		scout.PlatformConfig,
		scout.MaxResults,
		scout.QualityThreshold,
		scout.Frequency,
		scout.IsRunning,
		scout.TotalRuns,
		scout.CreatedAt,
		scout.UpdatedAt,
	)
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// SaveScout inserts a scout or updates its configuration. Runtime state
// (is_running, total_runs, last_run_at) is never touched by an update.
func (db *DB) SaveScout(ctx context.Context, scout *Scout) error {
	return db.WithTransaction(ctx, func(tx *Tx) error {
		var exists int
		err := tx.queryRow(ctx, `SELECT 1 FROM scouts WHERE id = ?`, scout.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			now := time.Now().UTC()
			scout.CreatedAt = now
			scout.UpdatedAt = now
			_, err = tx.exec(ctx, `
				INSERT INTO scouts (id, name, instructions, keywords, platform, platform_config, max_results,
					quality_threshold, frequency, is_running, total_runs, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				scout.ID, scout.Name, scout.Instructions, scout.Keywords, scout.Platform,
				scout.PlatformConfig, scout.MaxResults, scout.QualityThreshold, scout.Frequency,
				false, 0, scout.CreatedAt, scout.UpdatedAt)
			return err
		}
		if err != nil {
			return err
		}

		scout.UpdatedAt = time.Now().UTC()
		_, err = tx.exec(ctx, `
			UPDATE scouts
			SET name = ?, instructions = ?, keywords = ?, platform = ?, platform_config = ?,
				max_results = ?, quality_threshold = ?, frequency = ?, updated_at = ?
			WHERE id = ?
		`,
			scout.Name, scout.Instructions, scout.Keywords, scout.Platform, scout.PlatformConfig,
			scout.MaxResults, scout.QualityThreshold, scout.Frequency, scout.UpdatedAt, scout.ID)
		return err
	})
}

// GetScout retrieves a scout by ID
func (db *DB) GetScout(ctx context.Context, id string) (*Scout, error) {
	query := `SELECT ` + scoutColumns + ` FROM scouts WHERE id = ?`

	scout, err := scanScout(db.QueryRowContext(ctx, db.rebind(query), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return scout, nil
}

// GetAllScouts retrieves all scouts
func (db *DB) GetAllScouts(ctx context.Context) ([]Scout, error) {
	query := `SELECT ` + scoutColumns + ` FROM scouts ORDER BY created_at, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scouts []Scout
	for rows.Next() {
		scout, err := scanScout(rows)
		if err != nil {
			return nil, err
		}
		scouts = append(scouts, *scout)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice instead of nil
	if scouts == nil {
		scouts = []Scout{}
	}

	return scouts, nil
}

// SetScoutRunning flips is_running with a single compare-and-set. It returns
// false when the flag already held the requested value.
func (db *DB) SetScoutRunning(ctx context.Context, id string, running bool) (bool, error) {
	query := `
		UPDATE scouts
		SET is_running = ?, updated_at = ?
		WHERE id = ? AND is_running = ?
	`

	result, err := db.ExecContext(ctx, db.rebind(query), running, time.Now().UTC(), id, !running)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
		return true, nil
	}

	// Distinguish a lost race from a missing scout
	var exists int
	err = db.QueryRowContext(ctx, db.rebind(`SELECT 1 FROM scouts WHERE id = ?`), id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	return false, nil
}

// IncrementScoutTotalRuns adds one to the scout's run counter
func (db *DB) IncrementScoutTotalRuns(ctx context.Context, id string) error {
	query := `
		UPDATE scouts
		SET total_runs = total_runs + 1, updated_at = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, db.rebind(query), time.Now().UTC(), id)
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

// DeleteScout deletes a scout and, through the foreign keys, its runs and results
func (db *DB) DeleteScout(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, db.rebind(`DELETE FROM scouts WHERE id = ?`), id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScout(row rowScanner) (*Scout, error) {
	scout := &Scout{}
	err := row.Scan(
		&scout.ID,
		&scout.Name,
		&scout.Instructions,
		&scout.Keywords,
		&scout.Platform,
		&scout.PlatformConfig,
		&scout.MaxResults,
		&scout.QualityThreshold,
		&scout.Frequency,
		&scout.IsRunning,
		&scout.TotalRuns,
		&scout.LastRunAt,
		&scout.CreatedAt,
		&scout.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return scout, nil
}
