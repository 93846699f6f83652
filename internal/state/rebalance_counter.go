/*

This file manages the persistent global rebalance counter. The counter is
stored in the database to ensure continuity across restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureRebalanceCounterTable creates the rebalance_counter table if it doesn't exist
func ensureRebalanceCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS rebalance_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_rebalance INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO rebalance_counter (id, current_rebalance)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create rebalance_counter table: %w", err)
	}

	log.Debug().Msg("Ensured rebalance_counter table exists")
	return nil
}

// GetCurrentRebalanceNumber retrieves the current rebalance number from the database
func GetCurrentRebalanceNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureRebalanceCounterTable(); err != nil {
		return 0, err
	}

	query := `SELECT current_rebalance FROM rebalance_counter WHERE id = 1;`

	var current int
	row := DB.QueryRow(query)
	err := row.Scan(&current)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn().Msg("No rebalance counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current rebalance number: %w", err)
	}

	log.Debug().Int("currentRebalance", current).Msg("Retrieved current rebalance number")
	return current, nil
}

// IncrementRebalanceNumber increments the rebalance counter and returns the new value
func IncrementRebalanceNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureRebalanceCounterTable(); err != nil {
		return 0, err
	}

	updateQuery := `
		UPDATE rebalance_counter
		SET current_rebalance = current_rebalance + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_rebalance;`

	var next int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&next)

	if err != nil {
		return 0, fmt.Errorf("failed to increment rebalance number: %w", err)
	}

	log.Info().Int("newRebalance", next).Msg("Incremented rebalance counter")
	return next, nil
}

// ResetRebalanceNumber resets the counter to a specific value (for testing/maintenance)
func ResetRebalanceNumber(number int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := ensureRebalanceCounterTable(); err != nil {
		return err
	}

	if number < 0 {
		return fmt.Errorf("rebalance number cannot be negative: %d", number)
	}

	updateQuery := `
		UPDATE rebalance_counter
		SET current_rebalance = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateQuery, number)
	if err != nil {
		return fmt.Errorf("failed to reset rebalance number to %d: %w", number, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting rebalance number")
	}

	log.Warn().Int("rebalanceNumber", number).Msg("Reset rebalance counter")
	return nil
}
