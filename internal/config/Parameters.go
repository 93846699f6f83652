/*

This file contains the default fee and cadence parameters for the vault.

These defaults are used when no active parameter row exists in the database
at startup. Values can be changed at runtime by the owner through the
registry setters and are versioned into the parameter store.

*/

package config

import (
	"time"

	"github.com/amun/limavault/internal/types"
)

// DefaultVaultParameters provides the baseline fee configuration.
var DefaultVaultParameters = types.VaultParameters{
	// No entry fee by default. Creation friction discourages deposits more
	// than it protects existing holders.
	MintFeeBps: 0,

	// 50 bps exit fee, charged in the fee settlement asset. Covers the
	// cost the vault bears unwinding position for a redemption.
	BurnFeeBps: 50,

	// 10% of gains above the per-1000-share high-water mark, charged at
	// rebalance time only.
	PerformanceFeeBps: 1_000,

	// One rebalance per day at most. The oracle data pipeline refreshes
	// daily; a tighter cadence would just churn the position.
	RebalanceInterval: 24 * time.Hour,
}
