package token

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

func addr(last byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = last
	return a
}

func TestLedgerMintBurnTransfer(t *testing.T) {
	l := NewLedger()
	dai := addr(0xD1)
	alice := addr(1)
	bob := addr(2)

	require.NoError(t, l.Mint(dai, alice, sdkmath.NewInt(100)))
	require.True(t, l.BalanceOf(dai, alice).Equal(sdkmath.NewInt(100)))

	require.NoError(t, l.Transfer(dai, alice, bob, sdkmath.NewInt(40)))
	require.True(t, l.BalanceOf(dai, alice).Equal(sdkmath.NewInt(60)))
	require.True(t, l.BalanceOf(dai, bob).Equal(sdkmath.NewInt(40)))

	require.NoError(t, l.Burn(dai, bob, sdkmath.NewInt(40)))
	require.True(t, l.BalanceOf(dai, bob).IsZero())
}

func TestLedgerRejectsOverdraft(t *testing.T) {
	l := NewLedger()
	dai := addr(0xD1)
	alice := addr(1)
	bob := addr(2)

	require.NoError(t, l.Mint(dai, alice, sdkmath.NewInt(10)))

	err := l.Transfer(dai, alice, bob, sdkmath.NewInt(11))
	require.ErrorIs(t, err, vaulterr.ErrInsufficientBalance)
	require.True(t, l.BalanceOf(dai, alice).Equal(sdkmath.NewInt(10)))

	err = l.Burn(dai, alice, sdkmath.NewInt(11))
	require.ErrorIs(t, err, vaulterr.ErrInsufficientBalance)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	l := NewLedger()
	dai := addr(0xD1)
	alice := addr(1)

	require.ErrorIs(t, l.Mint(dai, alice, sdkmath.NewInt(-1)), vaulterr.ErrInvalidAmount)
	require.ErrorIs(t, l.Mint(dai, alice, sdkmath.ZeroInt()), vaulterr.ErrInvalidAmount)
}

func TestLedgerSnapshotRestore(t *testing.T) {
	l := NewLedger()
	dai := addr(0xD1)
	alice := addr(1)
	bob := addr(2)

	require.NoError(t, l.Mint(dai, alice, sdkmath.NewInt(100)))
	snap := l.Snapshot()

	require.NoError(t, l.Transfer(dai, alice, bob, sdkmath.NewInt(70)))
	require.NoError(t, l.Burn(dai, bob, sdkmath.NewInt(20)))

	l.Restore(snap)
	require.True(t, l.BalanceOf(dai, alice).Equal(sdkmath.NewInt(100)))
	require.True(t, l.BalanceOf(dai, bob).IsZero())
}

func TestShareTokenSupplyTracking(t *testing.T) {
	s := NewShareToken("Lima Vault Shares", "LVS")
	alice := addr(1)
	bob := addr(2)

	require.Equal(t, "Lima Vault Shares", s.Name())
	require.Equal(t, "LVS", s.Symbol())
	require.True(t, s.TotalSupply().IsZero())

	require.NoError(t, s.Mint(alice, sdkmath.NewInt(1000)))
	require.True(t, s.TotalSupply().Equal(sdkmath.NewInt(1000)))

	require.NoError(t, s.Transfer(alice, bob, sdkmath.NewInt(400)))
	require.True(t, s.TotalSupply().Equal(sdkmath.NewInt(1000)), "transfer must not change supply")
	require.True(t, s.BalanceOf(bob).Equal(sdkmath.NewInt(400)))

	require.NoError(t, s.Burn(alice, sdkmath.NewInt(600)))
	require.True(t, s.TotalSupply().Equal(sdkmath.NewInt(400)))

	require.ErrorIs(t, s.Burn(bob, sdkmath.NewInt(401)), vaulterr.ErrInsufficientBalance)
}

func TestShareTokenSnapshotRestore(t *testing.T) {
	s := NewShareToken("Lima Vault Shares", "LVS")
	alice := addr(1)

	require.NoError(t, s.Mint(alice, sdkmath.NewInt(500)))
	snap := s.Snapshot()

	require.NoError(t, s.Burn(alice, sdkmath.NewInt(300)))
	require.True(t, s.TotalSupply().Equal(sdkmath.NewInt(200)))

	s.Restore(snap)
	require.True(t, s.TotalSupply().Equal(sdkmath.NewInt(500)))
	require.True(t, s.BalanceOf(alice).Equal(sdkmath.NewInt(500)))
}
