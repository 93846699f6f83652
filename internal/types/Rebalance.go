/*

Shared value types for the rebalancing flow: the decoded oracle result that
drives an execution, and the snapshot row persisted after every attempt.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// RebalanceTarget is the decoded oracle answer staged between the callback
// and execution. The min-return values were fixed off-chain before execution
// is triggered, so the executing caller cannot choose its own bounds.
type RebalanceTarget struct {
	TargetAsset             Asset       `json:"target_asset"`
	MinReturnUnderlying     sdkmath.Int `json:"min_return_underlying"`
	MinReturnGovernance     sdkmath.Int `json:"min_return_governance"`
	AmountToSellForFeeAsset sdkmath.Int `json:"amount_to_sell_for_fee_asset"`
}

// Rebalance outcome labels stored with each snapshot.
const (
	RebalanceStatusCompleted = "completed"
	RebalanceStatusFailed    = "failed"
)

// RebalanceSnapshot is the persistent record of one rebalance attempt,
// written after execution (or after an aborted execution).
type RebalanceSnapshot struct {
	Number             int         `json:"number"`
	RequestID          string      `json:"request_id"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        time.Time   `json:"completed_at"`
	FromAsset          Asset       `json:"from_asset"`
	ToAsset            Asset       `json:"to_asset"`
	NavBefore          sdkmath.Int `json:"nav_before"`
	NavAfter           sdkmath.Int `json:"nav_after"`
	PerformanceFeePaid sdkmath.Int `json:"performance_fee_paid"`
	FeeFundingBought   sdkmath.Int `json:"fee_funding_bought"`
	GovernanceSold     sdkmath.Int `json:"governance_sold"`
	Status             string      `json:"status"`
	FailureReason      string      `json:"failure_reason,omitempty"`
}
