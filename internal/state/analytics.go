package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// RebalanceStats represents aggregated rebalance history data
type RebalanceStats struct {
	TotalRebalances      int    `json:"total_rebalances"`
	CompletedRebalances  int    `json:"completed_rebalances"`
	FailedRebalances     int    `json:"failed_rebalances"`
	LastCompletedAt      string `json:"last_completed_at,omitempty"`
	LastFromAsset        string `json:"last_from_asset,omitempty"`
	LastToAsset          string `json:"last_to_asset,omitempty"`
	CurrentRebalanceNum  int    `json:"current_rebalance_number"`
}

// GetRebalanceStats aggregates the rebalance history for the web API.
func GetRebalanceStats() (*RebalanceStats, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	stats := &RebalanceStats{}

	countQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM rebalance_snapshots;`
	if err := DB.QueryRow(countQuery).Scan(
		&stats.TotalRebalances, &stats.CompletedRebalances, &stats.FailedRebalances,
	); err != nil {
		return nil, fmt.Errorf("failed to aggregate rebalance counts: %w", err)
	}

	lastQuery := `
		SELECT completed_at, from_asset, to_asset
		FROM rebalance_snapshots
		WHERE status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1;`
	rows, err := DB.Query(lastQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query last completed rebalance: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&stats.LastCompletedAt, &stats.LastFromAsset, &stats.LastToAsset); err != nil {
			log.Error().Err(err).Msg("Failed to scan last completed rebalance")
		}
	}

	current, err := GetCurrentRebalanceNumber()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read rebalance counter for stats")
	} else {
		stats.CurrentRebalanceNum = current
	}

	return stats, nil
}
