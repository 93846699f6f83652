// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amun/limavault/internal/types"
)

// SaveVaultParameters saves a new version of the vault's fee and cadence
// parameters, optionally marking it active.
func SaveVaultParameters(params types.VaultParameters, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE vault_parameters SET is_active = FALSE WHERE is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters: %w", err)
		}
	}

	stmt := `
        INSERT INTO vault_parameters (
            version, is_active, activated_at, created_at,
            mint_fee_bps, burn_fee_bps, performance_fee_bps,
            rebalance_interval_seconds, fee_recipient
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, makeActive, currentTime, currentTime,
		params.MintFeeBps, params.BurnFeeBps, params.PerformanceFeeBps,
		int64(params.RebalanceInterval/time.Second), params.FeeRecipient.String(),
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert vault parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved vault parameters")
	return paramsID, nil
}

// LoadActiveVaultParameters loads the currently active vault parameters.
func LoadActiveVaultParameters() (*types.VaultParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            mint_fee_bps, burn_fee_bps, performance_fee_bps,
            rebalance_interval_seconds, fee_recipient
        FROM vault_parameters
        WHERE is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	p := &types.VaultParameters{}
	var intervalSeconds int64
	var feeRecipient string
	row := DB.QueryRow(query)
	err := row.Scan(
		&p.MintFeeBps, &p.BurnFeeBps, &p.PerformanceFeeBps,
		&intervalSeconds, &feeRecipient,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active vault parameters found")
		}
		return nil, fmt.Errorf("failed to scan active vault parameters: %w", err)
	}

	p.RebalanceInterval = time.Duration(intervalSeconds) * time.Second
	if p.FeeRecipient, err = types.ParseAddress(feeRecipient); err != nil {
		return nil, fmt.Errorf("bad fee_recipient %q: %w", feeRecipient, err)
	}
	log.Info().Msg("Loaded active vault parameters")
	return p, nil
}

// GetActiveVaultParametersID returns the params_id of the active row, or nil
// if no row has ever been activated.
func GetActiveVaultParametersID() (*int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params_id
        FROM vault_parameters
        WHERE is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsID int64
	row := DB.QueryRow(query)
	err := row.Scan(&paramsID)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug().Msg("No active vault parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active vault parameters ID: %w", err)
	}

	log.Debug().Int64("params_id", paramsID).Msg("Retrieved active vault parameters ID")

	return &paramsID, nil
}
