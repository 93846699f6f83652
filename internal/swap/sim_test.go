package swap

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/amun/limavault/internal/token"
	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

func addr(last byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = last
	return a
}

var (
	vault = addr(0xAA)
	dai   = addr(0xD1)
	usdt  = addr(0xD2)
)

func newRouter(t *testing.T) (*SimRouter, *token.Ledger) {
	t.Helper()
	ledger := token.NewLedger()
	return NewSimRouter(ledger, vault), ledger
}

func TestConvertMovesBalancesAtRate(t *testing.T) {
	router, ledger := newRouter(t)
	require.NoError(t, ledger.Mint(dai, vault, sdkmath.NewInt(1000)))
	router.SetRate(dai, usdt, sdkmath.LegacyMustNewDecFromStr("0.5"))

	out, err := router.Convert(dai, usdt, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.True(t, out.Equal(sdkmath.NewInt(50)))
	require.True(t, ledger.BalanceOf(dai, vault).Equal(sdkmath.NewInt(900)))
	require.True(t, ledger.BalanceOf(usdt, vault).Equal(sdkmath.NewInt(50)))
}

func TestQuoteDoesNotMoveBalances(t *testing.T) {
	router, ledger := newRouter(t)
	require.NoError(t, ledger.Mint(dai, vault, sdkmath.NewInt(1000)))
	router.SetRate(dai, usdt, sdkmath.LegacyOneDec())

	out, err := router.Quote(dai, usdt, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.True(t, out.Equal(sdkmath.NewInt(100)))
	require.True(t, ledger.BalanceOf(dai, vault).Equal(sdkmath.NewInt(1000)))
	require.True(t, ledger.BalanceOf(usdt, vault).IsZero())
}

func TestSameAssetConvertIsIdentity(t *testing.T) {
	router, ledger := newRouter(t)
	require.NoError(t, ledger.Mint(dai, vault, sdkmath.NewInt(1000)))

	out, err := router.Convert(dai, dai, sdkmath.NewInt(100))
	require.NoError(t, err)
	require.True(t, out.Equal(sdkmath.NewInt(100)))
	require.True(t, ledger.BalanceOf(dai, vault).Equal(sdkmath.NewInt(1000)))
}

func TestMissingRouteAndDepth(t *testing.T) {
	router, ledger := newRouter(t)
	require.NoError(t, ledger.Mint(dai, vault, sdkmath.NewInt(1000)))

	_, err := router.Convert(dai, usdt, sdkmath.NewInt(100))
	require.ErrorIs(t, err, vaulterr.ErrRouteNotFound)

	router.SetRate(dai, usdt, sdkmath.LegacyOneDec())
	router.SetMaxFill(usdt, sdkmath.NewInt(50))
	_, err = router.Convert(dai, usdt, sdkmath.NewInt(100))
	require.ErrorIs(t, err, vaulterr.ErrInsufficientLiquidity)

	// Balances untouched by the failed fill.
	require.True(t, ledger.BalanceOf(dai, vault).Equal(sdkmath.NewInt(1000)))
}

func TestConvertRejectsNonPositive(t *testing.T) {
	router, _ := newRouter(t)
	_, err := router.Convert(dai, usdt, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrInvalidAmount)
}

func TestNormalizeErrorMapping(t *testing.T) {
	require.NoError(t, NormalizeError(nil))

	err := NormalizeError(vaulterr.ErrRouteNotFound.Wrap("no route"))
	require.ErrorIs(t, err, vaulterr.ErrUnsupportedAsset)

	err = NormalizeError(vaulterr.ErrInsufficientLiquidity.Wrap("thin book"))
	require.ErrorIs(t, err, vaulterr.ErrInsufficientLiquidity)

	err = NormalizeError(vaulterr.ErrStateViolation.Wrap("venue exploded"))
	require.ErrorIs(t, err, vaulterr.ErrRouteFailure)
}
