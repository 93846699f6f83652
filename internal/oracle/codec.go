/*

Wire codec for the oracle answer. The off-chain job packs three large
integers and a 20-byte asset identifier into a single 32-byte payload. Each
integer is stored as 1 shift byte plus the top 24 bits of the value after the
shift, so the encoding keeps roughly 24 significant bits and drops the
low-order rest. The loss is intentional and load-bearing: slippage bounds
derived from decoded values must carry margin for it, and this codec must not
be "improved" to round-trip exactly.

Layout (big-endian, 32 bytes total):

  [0]     shift of minReturnUnderlying
  [1:4]   top 24 bits of minReturnUnderlying
  [4]     shift of minReturnGovernance
  [5:8]   top 24 bits of minReturnGovernance
  [8]     shift of amountToSellForFeeAsset
  [9:12]  top 24 bits of amountToSellForFeeAsset
  [12:32] target asset identifier

*/

package oracle

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

// PayloadSize is the exact byte length of an encoded oracle answer.
const PayloadSize = 3*4 + types.AddressLength

const significantBits = 24

// EncodePayload packs a rebalance target into the 32-byte wire format.
func EncodePayload(target types.RebalanceTarget) ([]byte, error) {
	if target.TargetAsset.IsZero() {
		return nil, vaulterr.ErrInvalidAsset.Wrap("target asset is empty")
	}
	out := make([]byte, 0, PayloadSize)
	for _, v := range []sdkmath.Int{
		target.MinReturnUnderlying,
		target.MinReturnGovernance,
		target.AmountToSellForFeeAsset,
	} {
		field, err := encodeUint824(v)
		if err != nil {
			return nil, err
		}
		out = append(out, field[:]...)
	}
	out = append(out, target.TargetAsset[:]...)
	return out, nil
}

// DecodePayload reverses EncodePayload. Reconstructed values equal
// storedBits << shift, i.e. the original with its low-order bits zeroed.
func DecodePayload(payload []byte) (types.RebalanceTarget, error) {
	if len(payload) != PayloadSize {
		return types.RebalanceTarget{}, vaulterr.ErrDecodeFailure.Wrapf("payload is %d bytes, want %d", len(payload), PayloadSize)
	}
	var target types.RebalanceTarget
	var err error
	if target.MinReturnUnderlying, err = decodeUint824(payload[0:4]); err != nil {
		return types.RebalanceTarget{}, err
	}
	if target.MinReturnGovernance, err = decodeUint824(payload[4:8]); err != nil {
		return types.RebalanceTarget{}, err
	}
	if target.AmountToSellForFeeAsset, err = decodeUint824(payload[8:12]); err != nil {
		return types.RebalanceTarget{}, err
	}
	copy(target.TargetAsset[:], payload[12:PayloadSize])
	if target.TargetAsset.IsZero() {
		return types.RebalanceTarget{}, vaulterr.ErrDecodeFailure.Wrap("payload carries empty target asset")
	}
	return target, nil
}

// encodeUint824 packs a non-negative integer of up to 256 bits into the
// 1-byte-shift + 3-byte-mantissa format.
func encodeUint824(v sdkmath.Int) ([4]byte, error) {
	var field [4]byte
	if v.IsNil() || v.IsNegative() {
		return field, vaulterr.ErrInvalidAmount.Wrap("encoded values must be non-negative")
	}
	raw := v.BigInt()
	bitLen := raw.BitLen()
	if bitLen > 256 {
		return field, vaulterr.ErrInvalidAmount.Wrapf("value of %d bits exceeds 256", bitLen)
	}
	shift := 0
	if bitLen > significantBits {
		shift = bitLen - significantBits
	}
	stored := new(big.Int).Rsh(raw, uint(shift)).Uint64()
	field[0] = byte(shift)
	field[1] = byte(stored >> 16)
	field[2] = byte(stored >> 8)
	field[3] = byte(stored)
	return field, nil
}

// decodeUint824 reverses encodeUint824. The shift byte comes off the wire,
// so a reconstructed value wider than 256 bits is rejected rather than let
// it blow past the integer type's capacity.
func decodeUint824(b []byte) (sdkmath.Int, error) {
	stored := uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3])
	shift := int(b[0])
	storedBits := new(big.Int).SetUint64(stored)
	if shift+storedBits.BitLen() > 256 {
		return sdkmath.ZeroInt(), vaulterr.ErrDecodeFailure.Wrapf("shift %d reconstructs a value beyond 256 bits", shift)
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).Lsh(storedBits, uint(shift))), nil
}
