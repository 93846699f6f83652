/*

SwapRouter abstraction. The vault core never talks to a lending protocol or
liquidity venue directly; it converts between assets through this interface
and treats the concrete execution logic as an external collaborator.

*/

package swap

import (
	sdkmath "cosmossdk.io/math"

	"github.com/amun/limavault/internal/types"
)

// Router converts between the canonical asset set (stable coins and the
// interest-bearing wrappers of the lending back-ends) and quotes expected
// output before committing.
type Router interface {
	// Convert swaps amount of from into to, moving the vault's balances.
	// Fails with ErrRouteNotFound when no path is known and
	// ErrInsufficientLiquidity when the venue cannot fill.
	Convert(from, to types.Asset, amount sdkmath.Int) (sdkmath.Int, error)

	// Quote estimates Convert's output without moving funds. The estimate
	// only needs to be monotonic enough for callers to derive sane slippage
	// bounds; it is not required to be exact.
	Quote(from, to types.Asset, amount sdkmath.Int) (sdkmath.Int, error)
}
