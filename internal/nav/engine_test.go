package nav

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/amun/limavault/internal/registry"
	"github.com/amun/limavault/internal/swap"
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
	owner     = addr(0x01)
	alice     = addr(0x02)
	bob       = addr(0x03)
	feeWallet = addr(0x04)
	vaultAddr = addr(0xAA)
	dai       = addr(0xD1)
	usdt      = addr(0xD2)
)

type fixture struct {
	reg    *registry.Registry
	shares *token.ShareToken
	ledger *token.Ledger
	router *swap.SimRouter
	engine *Engine
}

func newFixture(t *testing.T, cfg registry.Config) *fixture {
	t.Helper()
	if cfg.Owner.IsZero() {
		cfg.Owner = owner
	}
	if cfg.FeeRecipient.IsZero() {
		cfg.FeeRecipient = feeWallet
	}
	if cfg.CurrentUnderlying.IsZero() {
		cfg.CurrentUnderlying = dai
	}
	if cfg.UnderlyingAssets == nil {
		cfg.UnderlyingAssets = []types.Asset{dai, usdt}
	}
	if cfg.FeeSettlementAsset.IsZero() {
		cfg.FeeSettlementAsset = dai
	}

	reg, err := registry.New(cfg)
	require.NoError(t, err)

	ledger := token.NewLedger()
	shares := token.NewShareToken("Lima Vault Shares", "LVS")
	router := swap.NewSimRouter(ledger, vaultAddr)
	engine, err := NewEngine(reg, shares, ledger, router, vaultAddr)
	require.NoError(t, err)

	return &fixture{reg: reg, shares: shares, ledger: ledger, router: router, engine: engine}
}

func (f *fixture) fund(t *testing.T, asset types.Asset, holder types.Address, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(asset, holder, sdkmath.NewInt(amount)))
}

func TestCreateBootstrapMintsOneToOne(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 5)

	minted, err := f.engine.Create(alice, dai, sdkmath.NewInt(5), alice, sdkmath.ZeroInt())
	require.NoError(t, err)
	require.True(t, minted.Equal(sdkmath.NewInt(5)), "first deposit mints shares 1:1")
	require.True(t, f.shares.BalanceOf(alice).Equal(sdkmath.NewInt(5)))
	require.True(t, f.engine.TotalManagedValue().Equal(sdkmath.NewInt(5)))
}

func TestCreateTakesMintFeeBeforePricing(t *testing.T) {
	f := newFixture(t, registry.Config{MintFeeBps: 2_000}) // 20%
	f.fund(t, dai, alice, 5)

	minted, err := f.engine.Create(alice, dai, sdkmath.NewInt(5), alice, sdkmath.ZeroInt())
	require.NoError(t, err)
	require.True(t, minted.Equal(sdkmath.NewInt(4)), "5 in, 1 fee, 4 shares")
	require.True(t, f.ledger.BalanceOf(dai, feeWallet).Equal(sdkmath.NewInt(1)))
	require.True(t, f.engine.TotalManagedValue().Equal(sdkmath.NewInt(4)))
}

func TestCreateProportionalAfterBootstrap(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 100)
	f.fund(t, dai, bob, 50)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)

	// Simulate yield: vault gains 100 dai with supply unchanged.
	f.fund(t, dai, vaultAddr, 100)

	minted, err := f.engine.Create(bob, dai, sdkmath.NewInt(50), bob, sdkmath.ZeroInt())
	require.NoError(t, err)
	// 50 * 100 supply / 200 tmv = 25 shares.
	require.True(t, minted.Equal(sdkmath.NewInt(25)))
}

func TestCreateConvertsForeignPayment(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, usdt, alice, 100)
	f.router.SetRate(usdt, dai, sdkmath.LegacyMustNewDecFromStr("2"))

	minted, err := f.engine.Create(alice, usdt, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)
	require.True(t, minted.Equal(sdkmath.NewInt(200)))
	require.True(t, f.ledger.BalanceOf(usdt, alice).IsZero())
}

func TestCreateUnroutablePaymentRestoresState(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, usdt, alice, 100)

	_, err := f.engine.Create(alice, usdt, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrUnsupportedAsset)

	// The payment transfer preceding the failed conversion must be undone.
	require.True(t, f.ledger.BalanceOf(usdt, alice).Equal(sdkmath.NewInt(100)))
	require.True(t, f.ledger.BalanceOf(usdt, vaultAddr).IsZero())
	require.True(t, f.shares.TotalSupply().IsZero())
}

func TestCreateSlippageGuard(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 5)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(5), alice, sdkmath.NewInt(6))
	require.ErrorIs(t, err, vaulterr.ErrSlippageExceeded)
	require.True(t, f.ledger.BalanceOf(dai, alice).Equal(sdkmath.NewInt(5)))
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t, registry.Config{})

	_, err := f.engine.Create(alice, dai, sdkmath.ZeroInt(), alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrInvalidAmount)

	_, err = f.engine.Create(alice, dai, sdkmath.NewInt(1), types.ZeroAddress, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrInvalidAsset)
}

func TestRedeemRoundTrip(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 100)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)

	payout, err := f.engine.Redeem(alice, dai, sdkmath.NewInt(40), alice, sdkmath.ZeroInt())
	require.NoError(t, err)
	require.True(t, payout.Equal(sdkmath.NewInt(40)))
	require.True(t, f.ledger.BalanceOf(dai, alice).Equal(sdkmath.NewInt(40)))
	require.True(t, f.shares.BalanceOf(alice).Equal(sdkmath.NewInt(60)))
}

func TestRedeemBurnFeeSettledInSettlementAsset(t *testing.T) {
	f := newFixture(t, registry.Config{BurnFeeBps: 1_000, FeeSettlementAsset: usdt}) // 10%
	f.fund(t, dai, alice, 100)
	f.router.SetRate(dai, usdt, sdkmath.LegacyOneDec())

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)

	payout, err := f.engine.Redeem(alice, dai, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)
	require.True(t, payout.Equal(sdkmath.NewInt(90)))
	// Fee converted dai -> usdt and paid to the fee wallet.
	require.True(t, f.ledger.BalanceOf(usdt, feeWallet).Equal(sdkmath.NewInt(10)))
	require.True(t, f.shares.TotalSupply().IsZero())
}

func TestRedeemSlippageGuardRestoresState(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 100)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)

	_, err = f.engine.Redeem(alice, dai, sdkmath.NewInt(40), alice, sdkmath.NewInt(41))
	require.ErrorIs(t, err, vaulterr.ErrSlippageExceeded)
	require.True(t, f.shares.BalanceOf(alice).Equal(sdkmath.NewInt(100)), "burn must be undone")
	require.True(t, f.engine.TotalManagedValue().Equal(sdkmath.NewInt(100)))
}

func TestRedeemMoreThanHeld(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 10)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(10), alice, sdkmath.ZeroInt())
	require.NoError(t, err)

	_, err = f.engine.Redeem(alice, dai, sdkmath.NewInt(11), alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrInsufficientBalance)
}

func TestRestrictedModeGatesCreateAndRedeem(t *testing.T) {
	f := newFixture(t, registry.Config{})
	require.NoError(t, f.reg.SwitchRestrictedMode(owner))
	f.fund(t, dai, alice, 10)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(10), alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrUnauthorized)

	require.NoError(t, f.reg.AddAllowedUser(owner, alice))
	_, err = f.engine.Create(alice, dai, sdkmath.NewInt(10), alice, sdkmath.ZeroInt())
	require.NoError(t, err)
}

func TestPausedVaultRejectsOperations(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 10)
	require.NoError(t, f.reg.Pause(owner))

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(10), alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrPaused)

	_, err = f.engine.ForceRedeem(owner, alice, dai, sdkmath.NewInt(1), alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrPaused)
}

func TestForceRedeemOwnerOnly(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 100)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)

	_, err = f.engine.ForceRedeem(bob, alice, dai, sdkmath.NewInt(50), bob, sdkmath.ZeroInt())
	require.ErrorIs(t, err, vaulterr.ErrUnauthorized)

	payout, err := f.engine.ForceRedeem(owner, alice, dai, sdkmath.NewInt(50), bob, sdkmath.ZeroInt())
	require.NoError(t, err)
	require.True(t, payout.Equal(sdkmath.NewInt(50)))
	require.True(t, f.ledger.BalanceOf(dai, bob).Equal(sdkmath.NewInt(50)))
	require.True(t, f.shares.BalanceOf(alice).Equal(sdkmath.NewInt(50)))
}

func TestMintIsOwnerOnlySeeding(t *testing.T) {
	f := newFixture(t, registry.Config{})

	require.ErrorIs(t, f.engine.Mint(alice, alice, sdkmath.NewInt(10)), vaulterr.ErrUnauthorized)
	require.NoError(t, f.engine.Mint(owner, alice, sdkmath.NewInt(10)))
	require.True(t, f.shares.BalanceOf(alice).Equal(sdkmath.NewInt(10)))
}

func TestExpectedReturnsMatchExecution(t *testing.T) {
	f := newFixture(t, registry.Config{MintFeeBps: 100, BurnFeeBps: 100})
	f.fund(t, dai, alice, 10_000)

	quoted, err := f.engine.ExpectedReturnCreate(dai, sdkmath.NewInt(10_000))
	require.NoError(t, err)
	minted, err := f.engine.Create(alice, dai, sdkmath.NewInt(10_000), alice, quoted)
	require.NoError(t, err)
	require.True(t, quoted.Equal(minted))

	quotedOut, err := f.engine.ExpectedReturnRedeem(dai, sdkmath.NewInt(5_000))
	require.NoError(t, err)
	payout, err := f.engine.Redeem(alice, dai, sdkmath.NewInt(5_000), alice, quotedOut)
	require.NoError(t, err)
	require.True(t, quotedOut.Equal(payout))
}

// reentrantRouter calls back into the engine mid-conversion, the way a
// malicious venue would.
type reentrantRouter struct {
	inner  swap.Router
	engine *Engine
	caller types.Address
	err    error
}

func (r *reentrantRouter) Convert(from, to types.Asset, amount sdkmath.Int) (sdkmath.Int, error) {
	_, r.err = r.engine.Redeem(r.caller, to, sdkmath.OneInt(), r.caller, sdkmath.ZeroInt())
	return r.inner.Convert(from, to, amount)
}

func (r *reentrantRouter) Quote(from, to types.Asset, amount sdkmath.Int) (sdkmath.Int, error) {
	return r.inner.Quote(from, to, amount)
}

func TestReentrantCallThroughRouterIsRejected(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 100)
	f.fund(t, usdt, alice, 100)

	_, err := f.engine.Create(alice, dai, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err)

	sim := swap.NewSimRouter(f.ledger, vaultAddr)
	sim.SetRate(usdt, dai, sdkmath.LegacyOneDec())
	evil := &reentrantRouter{inner: sim, engine: f.engine, caller: alice}

	reentrant, err := NewEngine(f.reg, f.shares, f.ledger, evil, vaultAddr)
	require.NoError(t, err)
	evil.engine = reentrant

	_, err = reentrant.Create(alice, usdt, sdkmath.NewInt(100), alice, sdkmath.ZeroInt())
	require.NoError(t, err, "outer create proceeds")
	require.ErrorIs(t, evil.err, vaulterr.ErrStateViolation, "inner redeem must bounce off the guard")
}

func TestNilMinimumsTreatedAsNoFloor(t *testing.T) {
	f := newFixture(t, registry.Config{})
	f.fund(t, dai, alice, 10)

	minted, err := f.engine.Create(alice, dai, sdkmath.NewInt(10), alice, sdkmath.Int{})
	require.NoError(t, err)
	require.True(t, minted.Equal(sdkmath.NewInt(10)))

	payout, err := f.engine.Redeem(alice, dai, minted, alice, sdkmath.Int{})
	require.NoError(t, err)
	require.True(t, payout.Equal(sdkmath.NewInt(10)))
}
