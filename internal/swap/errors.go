package swap

import (
	"errors"

	"github.com/amun/limavault/internal/vaulterr"
)

// NormalizeError maps router failures onto the vault's error taxonomy. A
// missing route means the caller handed us an asset the venue does not
// recognize; liquidity shortfalls pass through; anything else is a
// downstream route failure.
func NormalizeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, vaulterr.ErrRouteNotFound):
		return vaulterr.ErrUnsupportedAsset.Wrap(err.Error())
	case errors.Is(err, vaulterr.ErrInsufficientLiquidity),
		errors.Is(err, vaulterr.ErrInvalidAmount),
		errors.Is(err, vaulterr.ErrInsufficientBalance):
		return err
	default:
		return vaulterr.ErrRouteFailure.Wrap(err.Error())
	}
}
