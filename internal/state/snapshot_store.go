// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/amun/limavault/internal/types"
)

// Store adapts the package-level persistence functions to the interface the
// rebalance machine consumes.
type Store struct{}

func (Store) SaveRebalanceSnapshot(snapshot types.RebalanceSnapshot) (int64, error) {
	return SaveRebalanceSnapshot(snapshot)
}

func (Store) IncrementRebalanceNumber() (int, error) {
	return IncrementRebalanceNumber()
}

// SaveRebalanceSnapshot saves a completed or failed rebalance to the database.
func SaveRebalanceSnapshot(snapshot types.RebalanceSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO rebalance_snapshots (
			rebalance_number, request_id, started_at, completed_at,
			from_asset, to_asset,
			nav_before, nav_after,
			performance_fee_paid, fee_funding_bought, governance_sold,
			status, failure_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.Number, snapshot.RequestID, snapshot.StartedAt, snapshot.CompletedAt,
		snapshot.FromAsset.String(), snapshot.ToAsset.String(),
		intColumn(snapshot.NavBefore), intColumn(snapshot.NavAfter),
		intColumn(snapshot.PerformanceFeePaid), intColumn(snapshot.FeeFundingBought), intColumn(snapshot.GovernanceSold),
		snapshot.Status, nullIfEmpty(snapshot.FailureReason),
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save rebalance snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("rebalance_number", snapshot.Number).
		Str("status", snapshot.Status).
		Msg("Rebalance snapshot saved to database")

	return snapshotID, nil
}

// GetRecentRebalances retrieves recent rebalance snapshots, newest first.
func GetRecentRebalances(limit int) ([]types.RebalanceSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT
			rebalance_number, request_id, started_at, completed_at,
			from_asset, to_asset,
			nav_before, nav_after,
			performance_fee_paid, fee_funding_bought, governance_sold,
			status, failure_reason
		FROM rebalance_snapshots
		ORDER BY completed_at DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent rebalances")
		return nil, fmt.Errorf("failed to query recent rebalances: %w", err)
	}
	defer rows.Close()

	var snapshots []types.RebalanceSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan rebalance row")
			continue // Skip this row and continue with others
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// GetRebalanceByNumber retrieves a single rebalance snapshot by its number.
func GetRebalanceByNumber(number int) (types.RebalanceSnapshot, error) {
	if DB == nil {
		return types.RebalanceSnapshot{}, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			rebalance_number, request_id, started_at, completed_at,
			from_asset, to_asset,
			nav_before, nav_after,
			performance_fee_paid, fee_funding_bought, governance_sold,
			status, failure_reason
		FROM rebalance_snapshots
		WHERE rebalance_number = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`
	return scanSnapshot(DB.QueryRow(query, number))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (types.RebalanceSnapshot, error) {
	var snapshot types.RebalanceSnapshot
	var fromAsset, toAsset, status string
	var navBefore, navAfter string
	var perfFee, feeBought, govSold, failureReason sql.NullString

	err := row.Scan(
		&snapshot.Number, &snapshot.RequestID, &snapshot.StartedAt, &snapshot.CompletedAt,
		&fromAsset, &toAsset,
		&navBefore, &navAfter,
		&perfFee, &feeBought, &govSold,
		&status, &failureReason,
	)
	if err != nil {
		return types.RebalanceSnapshot{}, err
	}

	if snapshot.FromAsset, err = types.ParseAddress(fromAsset); err != nil {
		return types.RebalanceSnapshot{}, fmt.Errorf("bad from_asset %q: %w", fromAsset, err)
	}
	if snapshot.ToAsset, err = types.ParseAddress(toAsset); err != nil {
		return types.RebalanceSnapshot{}, fmt.Errorf("bad to_asset %q: %w", toAsset, err)
	}
	if snapshot.NavBefore, err = parseIntColumn(navBefore); err != nil {
		return types.RebalanceSnapshot{}, err
	}
	if snapshot.NavAfter, err = parseIntColumn(navAfter); err != nil {
		return types.RebalanceSnapshot{}, err
	}
	snapshot.PerformanceFeePaid = parseNullableInt(perfFee)
	snapshot.FeeFundingBought = parseNullableInt(feeBought)
	snapshot.GovernanceSold = parseNullableInt(govSold)
	snapshot.Status = status
	snapshot.FailureReason = failureReason.String
	return snapshot, nil
}

// intColumn renders an SDK Int for a NUMERIC(78, 0) column, mapping nil to NULL.
func intColumn(amount sdkmath.Int) interface{} {
	if amount.IsNil() {
		return nil
	}
	return amount.String()
}

func parseIntColumn(raw string) (sdkmath.Int, error) {
	value, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("bad numeric column value %q", raw)
	}
	return value, nil
}

func parseNullableInt(raw sql.NullString) sdkmath.Int {
	if !raw.Valid {
		return sdkmath.ZeroInt()
	}
	value, ok := sdkmath.NewIntFromString(raw.String)
	if !ok {
		return sdkmath.ZeroInt()
	}
	return value
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
