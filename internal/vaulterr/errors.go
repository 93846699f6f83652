/*

Registered error taxonomy for the vault core. Every public operation fails
with exactly one of these codes; callers branch on them with errors.Is. The
codespace/code registration gives each failure a stable numeric identity for
API responses and logs.

*/

package vaulterr

import (
	errorsmod "cosmossdk.io/errors"
)

const codespace = "limavault"

var (
	// ErrUnauthorized covers owner checks, restricted-mode membership, and
	// oracle-callback sender mismatches.
	ErrUnauthorized = errorsmod.Register(codespace, 2, "unauthorized")

	// ErrInvalidAmount rejects zero or otherwise nonsensical quantities.
	ErrInvalidAmount = errorsmod.Register(codespace, 3, "invalid amount")

	// ErrInvalidAsset rejects empty identities and unregistered assets.
	ErrInvalidAsset = errorsmod.Register(codespace, 4, "invalid asset")

	// ErrUnsupportedAsset means the swap router knows no route for the asset.
	ErrUnsupportedAsset = errorsmod.Register(codespace, 5, "unsupported asset")

	// ErrSlippageExceeded means a conversion produced less than the minimum
	// the caller (or the staged oracle data) demanded.
	ErrSlippageExceeded = errorsmod.Register(codespace, 6, "slippage exceeded")

	// ErrStateViolation covers every illegal state-machine transition:
	// double init, execute before data, interval not elapsed, removing the
	// active underlying, and reentrant calls.
	ErrStateViolation = errorsmod.Register(codespace, 7, "state violation")

	// ErrRouteFailure wraps downstream swap router failures.
	ErrRouteFailure = errorsmod.Register(codespace, 8, "swap route failure")

	// ErrDecodeFailure means an oracle payload could not be decoded.
	ErrDecodeFailure = errorsmod.Register(codespace, 9, "payload decode failure")

	// ErrRouteNotFound is returned by routers that know no path between the
	// requested pair.
	ErrRouteNotFound = errorsmod.Register(codespace, 10, "route not found")

	// ErrInsufficientLiquidity is returned by routers whose venue cannot
	// fill the requested size.
	ErrInsufficientLiquidity = errorsmod.Register(codespace, 11, "insufficient liquidity")

	// ErrInsufficientBalance rejects transfers and burns beyond the holder's
	// balance.
	ErrInsufficientBalance = errorsmod.Register(codespace, 12, "insufficient balance")

	// ErrPaused rejects value-moving operations while the vault is paused.
	ErrPaused = errorsmod.Register(codespace, 13, "vault paused")
)
