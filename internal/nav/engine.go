/*

NAV engine: share accounting for the vault. Everything is priced in units of
the current underlying. Cross-asset valuation is delegated to the swap
router at conversion time, never cached, and all integer math truncates
toward zero so rounding dust always stays with the vault.

*/

package nav

import (
	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/metrics"
	"github.com/amun/limavault/internal/registry"
	"github.com/amun/limavault/internal/swap"
	"github.com/amun/limavault/internal/token"
	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/utils"
	"github.com/amun/limavault/internal/vaulterr"
)

const bpsDenominator = 10_000

// Engine implements create, redeem and forceRedeem against a registry,
// share token, balance ledger and swap router.
type Engine struct {
	log    zerolog.Logger
	guard  *CallGuard
	reg    *registry.Registry
	shares *token.ShareToken
	ledger *token.Ledger
	router swap.Router
	vault  types.Address
}

// NewEngine wires the engine to its collaborators. The vault address is the
// account whose balances are the vault position.
func NewEngine(reg *registry.Registry, shares *token.ShareToken, ledger *token.Ledger, router swap.Router, vault types.Address) (*Engine, error) {
	if reg == nil || shares == nil || ledger == nil || router == nil {
		return nil, vaulterr.ErrInvalidAsset.Wrap("engine requires registry, shares, ledger and router")
	}
	if vault.IsZero() {
		return nil, vaulterr.ErrInvalidAsset.Wrap("vault address is empty")
	}
	return &Engine{
		log:    logger.GetForComponent("nav_engine"),
		guard:  &CallGuard{},
		reg:    reg,
		shares: shares,
		ledger: ledger,
		router: router,
		vault:  vault,
	}, nil
}

// Guard exposes the call guard so the rebalance state machine shares the
// same single-operation-in-flight discipline.
func (e *Engine) Guard() *CallGuard { return e.guard }

// VaultAddress returns the account holding the vault position.
func (e *Engine) VaultAddress() types.Address { return e.vault }

// TotalManagedValue is the vault's balance of the current underlying. Always
// a fresh read so valuation stays correct regardless of rebalance phase.
func (e *Engine) TotalManagedValue() sdkmath.Int {
	return e.ledger.BalanceOf(e.reg.CurrentUnderlying(), e.vault)
}

// TotalSupply returns the outstanding share supply.
func (e *Engine) TotalSupply() sdkmath.Int {
	return e.shares.TotalSupply()
}

// ValuePerShare values shareAmount in units of the current underlying:
// shareAmount * TMV / totalSupply, truncating. When supply is zero the
// amount is returned unscaled (bootstrap convention).
func (e *Engine) ValuePerShare(shareAmount sdkmath.Int) sdkmath.Int {
	supply := e.shares.TotalSupply()
	if supply.IsZero() {
		return shareAmount
	}
	return shareAmount.Mul(e.TotalManagedValue()).Quo(supply)
}

// UnderlyingBalanceOf is the client-facing name for ValuePerShare.
func (e *Engine) UnderlyingBalanceOf(shareAmount sdkmath.Int) sdkmath.Int {
	return e.ValuePerShare(shareAmount)
}

// ExpectedReturnCreate quotes the shares a deposit would mint right now.
// Clients use it to derive minSharesOut before calling Create.
func (e *Engine) ExpectedReturnCreate(paymentAsset types.Asset, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), vaulterr.ErrInvalidAmount.Wrap("create amount must be positive")
	}
	current := e.reg.CurrentUnderlying()
	received := amount
	if paymentAsset != current {
		out, err := e.router.Quote(paymentAsset, current, amount)
		if err != nil {
			return sdkmath.ZeroInt(), swap.NormalizeError(err)
		}
		received = out
	}
	net := received.Sub(feePortion(received, e.reg.MintFeeBps()))
	supply := e.shares.TotalSupply()
	tmv := e.TotalManagedValue()
	if supply.IsZero() || tmv.IsZero() {
		return net, nil
	}
	return net.Mul(supply).Quo(tmv), nil
}

// ExpectedReturnRedeem quotes the payout a redemption would produce right
// now. Clients use it to derive minPayoutOut before calling Redeem.
func (e *Engine) ExpectedReturnRedeem(payoutAsset types.Asset, shareAmount sdkmath.Int) (sdkmath.Int, error) {
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		return sdkmath.ZeroInt(), vaulterr.ErrInvalidAmount.Wrap("redeem amount must be positive")
	}
	current := e.reg.CurrentUnderlying()
	owed := e.ValuePerShare(shareAmount)
	net := owed.Sub(feePortion(owed, e.reg.BurnFeeBps()))
	if payoutAsset == current {
		return net, nil
	}
	if net.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	out, err := e.router.Quote(current, payoutAsset, net)
	if err != nil {
		return sdkmath.ZeroInt(), swap.NormalizeError(err)
	}
	return out, nil
}

// Create pulls amount of paymentAsset from the caller, converts it into the
// current underlying unless already matching, extracts the mint fee, and
// mints shares to the recipient at the pre-deposit share price. Fails with
// ErrSlippageExceeded when fewer than minSharesOut shares would be minted.
func (e *Engine) Create(caller types.Address, paymentAsset types.Asset, amount sdkmath.Int, recipient types.Address, minSharesOut sdkmath.Int) (sdkmath.Int, error) {
	if err := e.guard.Enter("create"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer e.guard.Exit()

	if err := e.checkAccess(caller); err != nil {
		metrics.OperationErrors.WithLabelValues("create").Inc()
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNil() || !amount.IsPositive() {
		metrics.OperationErrors.WithLabelValues("create").Inc()
		return sdkmath.ZeroInt(), vaulterr.ErrInvalidAmount.Wrap("create amount must be positive")
	}
	if recipient.IsZero() {
		metrics.OperationErrors.WithLabelValues("create").Inc()
		return sdkmath.ZeroInt(), vaulterr.ErrInvalidAsset.Wrap("recipient is empty")
	}
	// A nil minimum means no floor.
	if minSharesOut.IsNil() {
		minSharesOut = sdkmath.ZeroInt()
	}

	ledgerSnap := e.ledger.Snapshot()
	shareSnap := e.shares.Snapshot()
	minted, err := e.createLocked(caller, paymentAsset, amount, recipient, minSharesOut)
	if err != nil {
		e.ledger.Restore(ledgerSnap)
		e.shares.Restore(shareSnap)
		metrics.OperationErrors.WithLabelValues("create").Inc()
		return sdkmath.ZeroInt(), err
	}

	metrics.Creates.Inc()
	e.publishGauges()
	e.log.Info().
		Str("caller", caller.String()).
		Str("paymentAsset", paymentAsset.String()).
		Str("amount", amount.String()).
		Str("sharesMinted", minted.String()).
		Msg("Create completed")
	return minted, nil
}

func (e *Engine) createLocked(caller types.Address, paymentAsset types.Asset, amount sdkmath.Int, recipient types.Address, minSharesOut sdkmath.Int) (sdkmath.Int, error) {
	current := e.reg.CurrentUnderlying()

	if err := e.ledger.Transfer(paymentAsset, caller, e.vault, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	received := amount
	if paymentAsset != current {
		out, err := e.router.Convert(paymentAsset, current, amount)
		if err != nil {
			return sdkmath.ZeroInt(), swap.NormalizeError(err)
		}
		received = out
	}

	// Mint fee is taken from the received underlying before shares are
	// priced. A fee rounding to zero is simply skipped.
	fee := feePortion(received, e.reg.MintFeeBps())
	if fee.IsPositive() {
		if err := e.ledger.Transfer(current, e.vault, e.reg.FeeRecipient(), fee); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	net := received.Sub(fee)

	// Share price must be read as if the deposit had not landed yet.
	tmvBefore := e.ledger.BalanceOf(current, e.vault).Sub(net)
	supply := e.shares.TotalSupply()

	var sharesToMint sdkmath.Int
	if supply.IsZero() || tmvBefore.IsZero() {
		sharesToMint = net
	} else {
		sharesToMint = net.Mul(supply).Quo(tmvBefore)
	}

	if sharesToMint.LT(minSharesOut) {
		return sdkmath.ZeroInt(), vaulterr.ErrSlippageExceeded.Wrapf("would mint %s shares, caller requires %s", sharesToMint, minSharesOut)
	}
	if err := e.shares.Mint(recipient, sharesToMint); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return sharesToMint, nil
}

// Redeem burns shareAmount from the caller and pays out in payoutAsset,
// taking the burn fee in the fee settlement asset. Fails with
// ErrSlippageExceeded when the payout would be below minPayoutOut.
func (e *Engine) Redeem(caller types.Address, payoutAsset types.Asset, shareAmount sdkmath.Int, recipient types.Address, minPayoutOut sdkmath.Int) (sdkmath.Int, error) {
	if err := e.guard.Enter("redeem"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer e.guard.Exit()

	if err := e.checkAccess(caller); err != nil {
		metrics.OperationErrors.WithLabelValues("redeem").Inc()
		return sdkmath.ZeroInt(), err
	}
	return e.redeem("redeem", caller, payoutAsset, shareAmount, recipient, minPayoutOut)
}

// ForceRedeem is the owner's emergency unwind: it burns shares belonging to
// onBehalfOf instead of the caller. Fee and slippage logic match Redeem.
func (e *Engine) ForceRedeem(caller, onBehalfOf types.Address, payoutAsset types.Asset, shareAmount sdkmath.Int, recipient types.Address, minPayoutOut sdkmath.Int) (sdkmath.Int, error) {
	if err := e.guard.Enter("forceRedeem"); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer e.guard.Exit()

	if caller != e.reg.Owner() {
		metrics.OperationErrors.WithLabelValues("forceRedeem").Inc()
		return sdkmath.ZeroInt(), vaulterr.ErrUnauthorized.Wrap("forceRedeem is owner-only")
	}
	if e.reg.Paused() {
		metrics.OperationErrors.WithLabelValues("forceRedeem").Inc()
		return sdkmath.ZeroInt(), vaulterr.ErrPaused
	}
	return e.redeem("forceRedeem", onBehalfOf, payoutAsset, shareAmount, recipient, minPayoutOut)
}

func (e *Engine) redeem(op string, burnFrom types.Address, payoutAsset types.Asset, shareAmount sdkmath.Int, recipient types.Address, minPayoutOut sdkmath.Int) (sdkmath.Int, error) {
	if shareAmount.IsNil() || !shareAmount.IsPositive() {
		metrics.OperationErrors.WithLabelValues(op).Inc()
		return sdkmath.ZeroInt(), vaulterr.ErrInvalidAmount.Wrap("redeem amount must be positive")
	}
	if recipient.IsZero() {
		metrics.OperationErrors.WithLabelValues(op).Inc()
		return sdkmath.ZeroInt(), vaulterr.ErrInvalidAsset.Wrap("recipient is empty")
	}
	// A nil minimum means no floor.
	if minPayoutOut.IsNil() {
		minPayoutOut = sdkmath.ZeroInt()
	}

	ledgerSnap := e.ledger.Snapshot()
	shareSnap := e.shares.Snapshot()
	payout, err := e.redeemLocked(burnFrom, payoutAsset, shareAmount, recipient, minPayoutOut)
	if err != nil {
		e.ledger.Restore(ledgerSnap)
		e.shares.Restore(shareSnap)
		metrics.OperationErrors.WithLabelValues(op).Inc()
		return sdkmath.ZeroInt(), err
	}

	metrics.Redeems.Inc()
	e.publishGauges()
	e.log.Info().
		Str("burnFrom", burnFrom.String()).
		Str("payoutAsset", payoutAsset.String()).
		Str("shares", shareAmount.String()).
		Str("payout", payout.String()).
		Msg("Redeem completed")
	return payout, nil
}

func (e *Engine) redeemLocked(burnFrom types.Address, payoutAsset types.Asset, shareAmount sdkmath.Int, recipient types.Address, minPayoutOut sdkmath.Int) (sdkmath.Int, error) {
	current := e.reg.CurrentUnderlying()

	// Owed amount is the holder's proportional slice of the pool, valued
	// before the burn shrinks the supply.
	owed := e.ValuePerShare(shareAmount)

	if err := e.shares.Burn(burnFrom, shareAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Burn fee is settled in the designated fee-settlement asset, so the
	// fee slice of the owed underlying is converted before transfer.
	fee := feePortion(owed, e.reg.BurnFeeBps())
	if fee.IsPositive() {
		settlement := e.reg.FeeSettlementAsset()
		feeOut := fee
		if settlement != current {
			out, err := e.router.Convert(current, settlement, fee)
			if err != nil {
				return sdkmath.ZeroInt(), swap.NormalizeError(err)
			}
			feeOut = out
		}
		if feeOut.IsPositive() {
			if err := e.ledger.Transfer(settlement, e.vault, e.reg.FeeRecipient(), feeOut); err != nil {
				return sdkmath.ZeroInt(), err
			}
		}
	}

	net := owed.Sub(fee)
	payout := net
	if payoutAsset != current && net.IsPositive() {
		out, err := e.router.Convert(current, payoutAsset, net)
		if err != nil {
			return sdkmath.ZeroInt(), swap.NormalizeError(err)
		}
		payout = out
	}

	if payout.LT(minPayoutOut) {
		return sdkmath.ZeroInt(), vaulterr.ErrSlippageExceeded.Wrapf("would pay out %s, caller requires %s", payout, minPayoutOut)
	}
	if payout.IsPositive() {
		if err := e.ledger.Transfer(payoutAsset, e.vault, recipient, payout); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	return payout, nil
}

// Mint is the owner-only direct share mint used for seeding.
func (e *Engine) Mint(caller, to types.Address, amount sdkmath.Int) error {
	if caller != e.reg.Owner() {
		return vaulterr.ErrUnauthorized.Wrap("mint is owner-only")
	}
	if amount.IsNil() || !amount.IsPositive() {
		return vaulterr.ErrInvalidAmount.Wrap("mint amount must be positive")
	}
	if err := e.shares.Mint(to, amount); err != nil {
		return err
	}
	e.publishGauges()
	return nil
}

func (e *Engine) checkAccess(caller types.Address) error {
	if e.reg.Paused() {
		return vaulterr.ErrPaused
	}
	if !e.reg.IsAllowed(caller) {
		return vaulterr.ErrUnauthorized.Wrapf("%s is not on the allow list", caller)
	}
	return nil
}

func (e *Engine) publishGauges() {
	metrics.NAV.Set(utils.IntToFloat(e.TotalManagedValue()))
	metrics.ShareSupply.Set(utils.IntToFloat(e.shares.TotalSupply()))
}

// feePortion computes amount * bps / 10000, truncating.
func feePortion(amount sdkmath.Int, bps uint32) sdkmath.Int {
	if bps == 0 || !amount.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return amount.Mul(sdkmath.NewInt(int64(bps))).Quo(sdkmath.NewInt(bpsDenominator))
}
