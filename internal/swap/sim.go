package swap

import (
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/token"
	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

// SimRouter is a deterministic in-process venue used for dry runs and tests.
// It fills conversions against a configurable rate table, burning the input
// from the holder account and minting the output to it. Pairs without a
// configured rate have no route; a same-asset conversion is always 1:1.
type SimRouter struct {
	mu      sync.Mutex
	ledger  *token.Ledger
	account types.Address
	rates   map[[2]types.Asset]sdkmath.LegacyDec
	// maxFill caps the output per conversion for an asset, modeling venue
	// depth. Unset means unlimited.
	maxFill map[types.Asset]sdkmath.Int
}

// NewSimRouter creates a sim router filling against the given account's
// balances.
func NewSimRouter(ledger *token.Ledger, account types.Address) *SimRouter {
	return &SimRouter{
		ledger:  ledger,
		account: account,
		rates:   make(map[[2]types.Asset]sdkmath.LegacyDec),
		maxFill: make(map[types.Asset]sdkmath.Int),
	}
}

// SetRate configures the output-per-input rate for a directed pair.
func (s *SimRouter) SetRate(from, to types.Asset, rate sdkmath.LegacyDec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[[2]types.Asset{from, to}] = rate
}

// SetMaxFill caps the per-conversion output of an asset.
func (s *SimRouter) SetMaxFill(asset types.Asset, max sdkmath.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxFill[asset] = max
}

func (s *SimRouter) output(from, to types.Asset, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), vaulterr.ErrInvalidAmount.Wrap("conversion amount must be positive")
	}
	if from == to {
		return amount, nil
	}
	s.mu.Lock()
	rate, ok := s.rates[[2]types.Asset{from, to}]
	max, capped := s.maxFill[to]
	s.mu.Unlock()
	if !ok {
		return sdkmath.ZeroInt(), vaulterr.ErrRouteNotFound.Wrapf("no route %s -> %s", from, to)
	}
	out := rate.MulInt(amount).TruncateInt()
	if capped && out.GT(max) {
		return sdkmath.ZeroInt(), vaulterr.ErrInsufficientLiquidity.Wrapf("fill %s exceeds venue depth %s", out, max)
	}
	return out, nil
}

// Quote implements Router.
func (s *SimRouter) Quote(from, to types.Asset, amount sdkmath.Int) (sdkmath.Int, error) {
	return s.output(from, to, amount)
}

// Convert implements Router.
func (s *SimRouter) Convert(from, to types.Asset, amount sdkmath.Int) (sdkmath.Int, error) {
	out, err := s.output(from, to, amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if from == to {
		// Uniform path for no-change rebalances: nothing moves.
		return out, nil
	}
	if err := s.ledger.Burn(from, s.account, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := s.ledger.Mint(to, s.account, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	log := logger.GetForComponent("sim_router")
	log.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("amountIn", amount.String()).
		Str("amountOut", out.String()).
		Msg("Simulated conversion filled")
	return out, nil
}
