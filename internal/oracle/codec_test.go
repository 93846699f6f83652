package oracle

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

func testAsset(last byte) types.Asset {
	var a types.Asset
	a[types.AddressLength-1] = last
	return a
}

func TestEncodePayloadByteLayout(t *testing.T) {
	target := types.RebalanceTarget{
		TargetAsset:             testAsset(0x42),
		MinReturnUnderlying:     sdkmath.NewInt(0x0ABCDEF9), // 28 bits, shift 4
		MinReturnGovernance:     sdkmath.NewInt(5),          // fits exactly
		AmountToSellForFeeAsset: sdkmath.ZeroInt(),
	}

	payload, err := EncodePayload(target)
	require.NoError(t, err)
	require.Len(t, payload, PayloadSize)

	// 0x0ABCDEF9 >> 4 == 0xABCDEF with 4 low bits dropped.
	require.Equal(t, []byte{0x04, 0xAB, 0xCD, 0xEF}, payload[0:4])
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x05}, payload[4:8])
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, payload[8:12])
	require.Equal(t, byte(0x42), payload[PayloadSize-1])
}

func TestRoundTripExactForSmallValues(t *testing.T) {
	target := types.RebalanceTarget{
		TargetAsset:             testAsset(1),
		MinReturnUnderlying:     sdkmath.NewInt(1_000_000), // 20 bits, below the mantissa width
		MinReturnGovernance:     sdkmath.NewInt(0xFFFFFF),  // exactly 24 bits
		AmountToSellForFeeAsset: sdkmath.NewInt(1),
	}

	payload, err := EncodePayload(target)
	require.NoError(t, err)

	decoded, err := DecodePayload(payload)
	require.NoError(t, err)
	require.Equal(t, target.TargetAsset, decoded.TargetAsset)
	require.True(t, target.MinReturnUnderlying.Equal(decoded.MinReturnUnderlying))
	require.True(t, target.MinReturnGovernance.Equal(decoded.MinReturnGovernance))
	require.True(t, target.AmountToSellForFeeAsset.Equal(decoded.AmountToSellForFeeAsset))
}

func TestRoundTripLossyForLargeValues(t *testing.T) {
	// 18-decimal token amounts far exceed 24 bits; the low-order bits must
	// come back zeroed, never inflated.
	original := sdkmath.NewInt(1_234_567_890_123_456_789)
	target := types.RebalanceTarget{
		TargetAsset:             testAsset(7),
		MinReturnUnderlying:     original,
		MinReturnGovernance:     sdkmath.ZeroInt(),
		AmountToSellForFeeAsset: sdkmath.ZeroInt(),
	}

	payload, err := EncodePayload(target)
	require.NoError(t, err)
	decoded, err := DecodePayload(payload)
	require.NoError(t, err)

	got := decoded.MinReturnUnderlying
	require.True(t, got.LTE(original), "decoded value must never exceed the original")

	// 24 significant bits survive, so the relative error is below 2^-23.
	diff := original.Sub(got)
	require.True(t, diff.Mul(sdkmath.NewInt(1<<23)).LTE(original),
		"loss %s too large for original %s", diff, original)
}

func TestRoundTripExactForPowersOfTwo(t *testing.T) {
	original := sdkmath.NewInt(1 << 40)
	payload, err := EncodePayload(types.RebalanceTarget{
		TargetAsset:             testAsset(2),
		MinReturnUnderlying:     original,
		MinReturnGovernance:     sdkmath.ZeroInt(),
		AmountToSellForFeeAsset: sdkmath.ZeroInt(),
	})
	require.NoError(t, err)
	decoded, err := DecodePayload(payload)
	require.NoError(t, err)
	require.True(t, original.Equal(decoded.MinReturnUnderlying))
}

func TestEncodeRejectsNegativeAndZeroAsset(t *testing.T) {
	_, err := EncodePayload(types.RebalanceTarget{
		TargetAsset:             types.ZeroAddress,
		MinReturnUnderlying:     sdkmath.OneInt(),
		MinReturnGovernance:     sdkmath.ZeroInt(),
		AmountToSellForFeeAsset: sdkmath.ZeroInt(),
	})
	require.ErrorIs(t, err, vaulterr.ErrInvalidAsset)

	_, err = EncodePayload(types.RebalanceTarget{
		TargetAsset:             testAsset(1),
		MinReturnUnderlying:     sdkmath.NewInt(-1),
		MinReturnGovernance:     sdkmath.ZeroInt(),
		AmountToSellForFeeAsset: sdkmath.ZeroInt(),
	})
	require.ErrorIs(t, err, vaulterr.ErrInvalidAmount)
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	_, err := DecodePayload(make([]byte, PayloadSize-1))
	require.ErrorIs(t, err, vaulterr.ErrDecodeFailure)

	_, err = DecodePayload(make([]byte, PayloadSize+1))
	require.ErrorIs(t, err, vaulterr.ErrDecodeFailure)

	// Correct length but all-zero asset bytes.
	_, err = DecodePayload(make([]byte, PayloadSize))
	require.ErrorIs(t, err, vaulterr.ErrDecodeFailure)
}

func TestDecodeRejectsOversizedShift(t *testing.T) {
	// The shift byte is relay-controlled; a shift that reconstructs a value
	// beyond 256 bits must fail cleanly, not blow up integer construction.
	payload := make([]byte, PayloadSize)
	payload[0] = 0xFF
	payload[1], payload[2], payload[3] = 0xFF, 0xFF, 0xFF
	payload[PayloadSize-1] = 0x01

	_, err := DecodePayload(payload)
	require.ErrorIs(t, err, vaulterr.ErrDecodeFailure)

	// Oversized shift on a later field is caught too.
	payload[0], payload[1], payload[2], payload[3] = 0, 0, 0, 1
	payload[4] = 0xE9 // shift 233 with a full 24-bit mantissa crosses 256 bits
	payload[5], payload[6], payload[7] = 0xFF, 0xFF, 0xFF
	_, err = DecodePayload(payload)
	require.ErrorIs(t, err, vaulterr.ErrDecodeFailure)
}

func TestDecodeAcceptsMaximumWidthValue(t *testing.T) {
	// shift 232 with a full mantissa reconstructs exactly 256 bits, the
	// widest value the encoder can produce.
	payload := make([]byte, PayloadSize)
	payload[0] = 232
	payload[1], payload[2], payload[3] = 0xFF, 0xFF, 0xFF
	payload[PayloadSize-1] = 0x01

	decoded, err := DecodePayload(payload)
	require.NoError(t, err)
	require.Equal(t, 256, decoded.MinReturnUnderlying.BigInt().BitLen())
}
