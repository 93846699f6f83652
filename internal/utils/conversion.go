/*
Conversion helpers between SDK integer amounts and the float64 values the
metrics gauges and the web API expose. Display only. Vault accounting never
goes through floats.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
)

// IntToFloat converts an SDK Int to float64 for display. Large values lose
// low-order precision, which is acceptable for gauges and dashboards.
func IntToFloat(amount sdkmath.Int) float64 {
	if amount.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// IntToDisplayUnits converts a base-unit amount into whole-token units with
// the given decimal precision, e.g. 1_500_000 with precision 6 -> 1.5.
func IntToDisplayUnits(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	dec := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(10).Power(uint64(precision))
	result, err := dec.Quo(factor).Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// DisplayUnitsToInt converts whole-token units into a base-unit SDK Int,
// truncating anything below the precision.
func DisplayUnitsToInt(amount float64, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// String round-trip avoids binary float artifacts in the low digits.
	dec, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf(fmt.Sprintf("%%.%df", precision), amount))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	factor := sdkmath.LegacyNewDec(10).Power(uint64(precision))
	return dec.Mul(factor).TruncateInt(), nil
}
