/*

In-process token ledger. The vault core prices and moves value through two
books: a multi-asset balance book (Ledger) holding every account's balance of
every token, and the vault's own share token (ShareToken). Both support
cheap snapshot/restore so the engine and the rebalance state machine can make
every public operation all-or-nothing even when it fails halfway through a
sequence of transfers and conversions.

*/

package token

import (
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

// Ledger tracks per-account balances for every asset the vault touches.
type Ledger struct {
	mu       sync.Mutex
	balances map[types.Asset]map[types.Address]sdkmath.Int
}

// NewLedger creates an empty balance book.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[types.Asset]map[types.Address]sdkmath.Int),
	}
}

// BalanceOf returns the holder's balance of asset. Unknown pairs are zero.
func (l *Ledger) BalanceOf(asset types.Asset, holder types.Address) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(asset, holder)
}

func (l *Ledger) balanceLocked(asset types.Asset, holder types.Address) sdkmath.Int {
	if book, ok := l.balances[asset]; ok {
		if bal, ok := book[holder]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) setLocked(asset types.Asset, holder types.Address, amount sdkmath.Int) {
	book, ok := l.balances[asset]
	if !ok {
		book = make(map[types.Address]sdkmath.Int)
		l.balances[asset] = book
	}
	if amount.IsZero() {
		delete(book, holder)
		return
	}
	book[holder] = amount
}

// Mint credits newly issued units of asset to an account. Used for genesis
// seeding and by swap venues crediting conversion output.
func (l *Ledger) Mint(asset types.Asset, to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return vaulterr.ErrInvalidAmount.Wrap("mint amount must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setLocked(asset, to, l.balanceLocked(asset, to).Add(amount))
	return nil
}

// Burn destroys units of asset held by an account.
func (l *Ledger) Burn(asset types.Asset, from types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return vaulterr.ErrInvalidAmount.Wrap("burn amount must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(asset, from)
	if bal.LT(amount) {
		return vaulterr.ErrInsufficientBalance.Wrapf("burn %s of %s, balance %s", amount, asset, bal)
	}
	l.setLocked(asset, from, bal.Sub(amount))
	return nil
}

// Transfer moves units of asset between accounts.
func (l *Ledger) Transfer(asset types.Asset, from, to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return vaulterr.ErrInvalidAmount.Wrap("transfer amount must be non-negative")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(asset, from)
	if bal.LT(amount) {
		return vaulterr.ErrInsufficientBalance.Wrapf("transfer %s of %s, balance %s", amount, asset, bal)
	}
	l.setLocked(asset, from, bal.Sub(amount))
	l.setLocked(asset, to, l.balanceLocked(asset, to).Add(amount))
	return nil
}

// LedgerSnapshot is an opaque copy of the ledger state.
type LedgerSnapshot struct {
	balances map[types.Asset]map[types.Address]sdkmath.Int
}

// Snapshot copies the full balance book.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make(map[types.Asset]map[types.Address]sdkmath.Int, len(l.balances))
	for asset, book := range l.balances {
		inner := make(map[types.Address]sdkmath.Int, len(book))
		for holder, bal := range book {
			inner[holder] = bal
		}
		cp[asset] = inner
	}
	return LedgerSnapshot{balances: cp}
}

// Restore replaces the balance book with a previously taken snapshot.
func (l *Ledger) Restore(snap LedgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = snap.balances
}
