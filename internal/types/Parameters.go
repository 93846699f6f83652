package types

import "time"

// VaultParameters is the owner-tunable fee and cadence configuration, as
// persisted for audit history. Live values are held by the registry; rows in
// the parameter store record what was active when.
type VaultParameters struct {
	MintFeeBps        uint32        `json:"mint_fee_bps"`
	BurnFeeBps        uint32        `json:"burn_fee_bps"`
	PerformanceFeeBps uint32        `json:"performance_fee_bps"`
	RebalanceInterval time.Duration `json:"rebalance_interval"`
	FeeRecipient      Address       `json:"fee_recipient"`
}
