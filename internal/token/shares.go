package token

import (
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

// ShareToken is the fungible claim on the vault. Shares are minted only by
// the engine's create path (plus the owner seeding mint) and burned only by
// redeem and forceRedeem.
type ShareToken struct {
	mu sync.Mutex

	name   string
	symbol string

	totalSupply sdkmath.Int
	balances    map[types.Address]sdkmath.Int
}

// NewShareToken creates a share token with zero supply.
func NewShareToken(name, symbol string) *ShareToken {
	return &ShareToken{
		name:        name,
		symbol:      symbol,
		totalSupply: sdkmath.ZeroInt(),
		balances:    make(map[types.Address]sdkmath.Int),
	}
}

// Name returns the token name.
func (s *ShareToken) Name() string { return s.name }

// Symbol returns the token symbol.
func (s *ShareToken) Symbol() string { return s.symbol }

// TotalSupply returns the outstanding share supply.
func (s *ShareToken) TotalSupply() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSupply
}

// BalanceOf returns the holder's share balance.
func (s *ShareToken) BalanceOf(holder types.Address) sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bal, ok := s.balances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// Mint issues new shares to an account.
func (s *ShareToken) Mint(to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return vaulterr.ErrInvalidAmount.Wrap("mint amount must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.balances[to]
	if cur.IsNil() {
		cur = sdkmath.ZeroInt()
	}
	s.balances[to] = cur.Add(amount)
	s.totalSupply = s.totalSupply.Add(amount)
	return nil
}

// Burn destroys shares held by an account.
func (s *ShareToken) Burn(from types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return vaulterr.ErrInvalidAmount.Wrap("burn amount must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.balances[from]
	if cur.IsNil() || cur.LT(amount) {
		return vaulterr.ErrInsufficientBalance.Wrapf("burn %s shares, balance %s", amount, cur)
	}
	rest := cur.Sub(amount)
	if rest.IsZero() {
		delete(s.balances, from)
	} else {
		s.balances[from] = rest
	}
	s.totalSupply = s.totalSupply.Sub(amount)
	return nil
}

// Transfer moves shares between accounts.
func (s *ShareToken) Transfer(from, to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return vaulterr.ErrInvalidAmount.Wrap("transfer amount must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.balances[from]
	if cur.IsNil() || cur.LT(amount) {
		return vaulterr.ErrInsufficientBalance.Wrapf("transfer %s shares, balance %s", amount, cur)
	}
	rest := cur.Sub(amount)
	if rest.IsZero() {
		delete(s.balances, from)
	} else {
		s.balances[from] = rest
	}
	dst := s.balances[to]
	if dst.IsNil() {
		dst = sdkmath.ZeroInt()
	}
	s.balances[to] = dst.Add(amount)
	return nil
}

// ShareSnapshot is an opaque copy of the share token state.
type ShareSnapshot struct {
	totalSupply sdkmath.Int
	balances    map[types.Address]sdkmath.Int
}

// Snapshot copies supply and balances.
func (s *ShareToken) Snapshot() ShareSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[types.Address]sdkmath.Int, len(s.balances))
	for holder, bal := range s.balances {
		cp[holder] = bal
	}
	return ShareSnapshot{totalSupply: s.totalSupply, balances: cp}
}

// Restore replaces the share state with a previously taken snapshot.
func (s *ShareToken) Restore(snap ShareSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSupply = snap.totalSupply
	s.balances = snap.balances
}
