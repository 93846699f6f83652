/*

VaultRegistry holds the vault's configuration surface: the recognized
underlying assets, the single current underlying, fee parameters, access
control, and the pointers to the ancillary assets the rebalance flow touches
(governance token, fee-funding asset, fee settlement asset, oracle identity).

It is an explicitly constructed object passed by handle to the NAV engine and
the rebalance state machine. Every mutator is gated on the owner identity
carried with the call; there are no ambient globals and no teardown.

*/

package registry

import (
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/samber/lo"

	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

// MaxFeeBps bounds every fee parameter; fees are basis points and must stay
// strictly below 100%.
const MaxFeeBps = 10_000

// DefaultRebalanceInterval is the minimum gap between rebalance initiations.
const DefaultRebalanceInterval = 24 * time.Hour

// Config carries the deployment-time parameters of the registry.
type Config struct {
	Owner             types.Address
	FeeRecipient      types.Address
	CurrentUnderlying types.Asset
	UnderlyingAssets  []types.Asset

	MintFeeBps        uint32
	BurnFeeBps        uint32
	PerformanceFeeBps uint32

	Oracle             types.Address
	GovernanceToken    types.Asset
	FeeFundingAsset    types.Asset
	FeeSettlementAsset types.Asset

	RebalanceInterval time.Duration
}

// Registry is the singleton configuration object. All access is
// mutex-guarded so the web server can read while the engine mutates.
type Registry struct {
	mu sync.RWMutex

	owner        types.Address
	feeRecipient types.Address

	currentUnderlying types.Asset
	underlyingSet     map[types.Asset]struct{}
	interestBearing   map[types.Asset]types.InterestBearingInfo

	mintFeeBps        uint32
	burnFeeBps        uint32
	performanceFeeBps uint32

	oracle             types.Address
	governanceToken    types.Asset
	feeFundingAsset    types.Asset
	feeSettlementAsset types.Asset

	allowedUsers   map[types.Address]struct{}
	restrictedMode bool

	paused bool

	lastRebalanceTime time.Time
	rebalanceInterval time.Duration

	// High-water mark for the performance fee: underlying units per 1000
	// shares at the end of the last rebalance. Nil until first set.
	underlyingPerThousand sdkmath.Int
}

// New validates the config and constructs the registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Owner.IsZero() {
		return nil, vaulterr.ErrInvalidAsset.Wrap("owner identity is empty")
	}
	if cfg.FeeRecipient.IsZero() {
		return nil, vaulterr.ErrInvalidAsset.Wrap("fee recipient is empty")
	}
	if cfg.CurrentUnderlying.IsZero() {
		return nil, vaulterr.ErrInvalidAsset.Wrap("current underlying is empty")
	}
	if err := validateFee(cfg.MintFeeBps); err != nil {
		return nil, err
	}
	if err := validateFee(cfg.BurnFeeBps); err != nil {
		return nil, err
	}
	if err := validateFee(cfg.PerformanceFeeBps); err != nil {
		return nil, err
	}

	set := make(map[types.Asset]struct{}, len(cfg.UnderlyingAssets))
	for _, a := range cfg.UnderlyingAssets {
		if a.IsZero() {
			return nil, vaulterr.ErrInvalidAsset.Wrap("underlying set contains empty identity")
		}
		set[a] = struct{}{}
	}
	if _, ok := set[cfg.CurrentUnderlying]; !ok {
		return nil, vaulterr.ErrInvalidAsset.Wrap("current underlying is not in the underlying set")
	}

	interval := cfg.RebalanceInterval
	if interval <= 0 {
		interval = DefaultRebalanceInterval
	}

	r := &Registry{
		owner:              cfg.Owner,
		feeRecipient:       cfg.FeeRecipient,
		currentUnderlying:  cfg.CurrentUnderlying,
		underlyingSet:      set,
		interestBearing:    make(map[types.Asset]types.InterestBearingInfo),
		mintFeeBps:         cfg.MintFeeBps,
		burnFeeBps:         cfg.BurnFeeBps,
		performanceFeeBps:  cfg.PerformanceFeeBps,
		oracle:             cfg.Oracle,
		governanceToken:    cfg.GovernanceToken,
		feeFundingAsset:    cfg.FeeFundingAsset,
		feeSettlementAsset: cfg.FeeSettlementAsset,
		allowedUsers:       make(map[types.Address]struct{}),
		rebalanceInterval:  interval,
	}

	log := logger.GetForComponent("registry")
	log.Info().
		Str("owner", cfg.Owner.String()).
		Str("currentUnderlying", cfg.CurrentUnderlying.String()).
		Int("underlyingAssets", len(set)).
		Msg("Vault registry constructed")

	return r, nil
}

func validateFee(bps uint32) error {
	if bps >= MaxFeeBps {
		return vaulterr.ErrInvalidAmount.Wrapf("fee %d bps is not below %d", bps, MaxFeeBps)
	}
	return nil
}

func (r *Registry) requireOwner(caller types.Address) error {
	if caller != r.owner {
		return vaulterr.ErrUnauthorized.Wrapf("caller %s is not the owner", caller)
	}
	return nil
}

// --- Mutators (owner only) ---

// SetCurrentUnderlying repoints the vault's active asset. The asset must be
// a registered underlying.
func (r *Registry) SetCurrentUnderlying(caller types.Address, asset types.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if asset.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("current underlying cannot be empty")
	}
	if _, ok := r.underlyingSet[asset]; !ok {
		return vaulterr.ErrInvalidAsset.Wrapf("%s is not a registered underlying", asset)
	}
	r.currentUnderlying = asset
	return nil
}

// AddUnderlying registers an asset as a rebalance candidate.
func (r *Registry) AddUnderlying(caller types.Address, asset types.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if asset.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("underlying cannot be empty")
	}
	r.underlyingSet[asset] = struct{}{}
	return nil
}

// RemoveUnderlying drops an asset from the candidate set. Removing the
// current underlying is rejected.
func (r *Registry) RemoveUnderlying(caller types.Address, asset types.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if asset == r.currentUnderlying {
		return vaulterr.ErrStateViolation.Wrap("cannot remove the current underlying")
	}
	delete(r.underlyingSet, asset)
	return nil
}

// RegisterInterestBearing records a wrapped token's issuing back-end and the
// stable asset it wraps. The mapping must be total for routing to work.
func (r *Registry) RegisterInterestBearing(caller types.Address, asset types.Asset, backend types.LendingBackend, underlying types.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if asset.IsZero() || underlying.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("interest-bearing registration needs non-empty identities")
	}
	r.interestBearing[asset] = types.InterestBearingInfo{Backend: backend, Underlying: underlying}
	return nil
}

// SetFeeRecipient updates the fee wallet. Empty identities are rejected.
func (r *Registry) SetFeeRecipient(caller types.Address, recipient types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("fee recipient cannot be empty")
	}
	r.feeRecipient = recipient
	return nil
}

// SetMintFee updates the mint fee in basis points.
func (r *Registry) SetMintFee(caller types.Address, bps uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := validateFee(bps); err != nil {
		return err
	}
	r.mintFeeBps = bps
	return nil
}

// SetBurnFee updates the burn fee in basis points.
func (r *Registry) SetBurnFee(caller types.Address, bps uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := validateFee(bps); err != nil {
		return err
	}
	r.burnFeeBps = bps
	return nil
}

// SetPerformanceFee updates the performance fee in basis points.
func (r *Registry) SetPerformanceFee(caller types.Address, bps uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := validateFee(bps); err != nil {
		return err
	}
	r.performanceFeeBps = bps
	return nil
}

// SetRebalanceInterval updates the minimum gap between rebalances.
func (r *Registry) SetRebalanceInterval(caller types.Address, interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if interval <= 0 {
		return vaulterr.ErrInvalidAmount.Wrap("rebalance interval must be positive")
	}
	r.rebalanceInterval = interval
	return nil
}

// SetOracle updates the single recognized oracle identity.
func (r *Registry) SetOracle(caller types.Address, oracle types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if oracle.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("oracle identity cannot be empty")
	}
	r.oracle = oracle
	return nil
}

// SetGovernanceToken updates the incidental reward asset liquidated during
// rebalances. The zero identity disables the liquidation step.
func (r *Registry) SetGovernanceToken(caller types.Address, asset types.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.governanceToken = asset
	return nil
}

// SetFeeFundingAsset updates the asset bought to top up the oracle-payment
// reserve.
func (r *Registry) SetFeeFundingAsset(caller types.Address, asset types.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if asset.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("fee funding asset cannot be empty")
	}
	r.feeFundingAsset = asset
	return nil
}

// SetFeeSettlementAsset updates the asset burn and performance fees are
// paid in.
func (r *Registry) SetFeeSettlementAsset(caller types.Address, asset types.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if asset.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("fee settlement asset cannot be empty")
	}
	r.feeSettlementAsset = asset
	return nil
}

// AddAllowedUser adds an account to the restricted-mode allow list.
func (r *Registry) AddAllowedUser(caller types.Address, user types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if user.IsZero() {
		return vaulterr.ErrInvalidAsset.Wrap("user identity cannot be empty")
	}
	r.allowedUsers[user] = struct{}{}
	return nil
}

// RemoveAllowedUser drops an account from the allow list.
func (r *Registry) RemoveAllowedUser(caller types.Address, user types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	delete(r.allowedUsers, user)
	return nil
}

// SwitchRestrictedMode toggles whether create/redeem require allow-list
// membership.
func (r *Registry) SwitchRestrictedMode(caller types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.restrictedMode = !r.restrictedMode
	return nil
}

// Pause stops all value-moving operations.
func (r *Registry) Pause(caller types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.paused = true
	return nil
}

// Unpause resumes operations.
func (r *Registry) Unpause(caller types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.paused = false
	return nil
}

// TouchRebalanceTimestamp records the completion time of a rebalance. Called
// by the state machine with the vault authority.
func (r *Registry) TouchRebalanceTimestamp(caller types.Address, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.lastRebalanceTime = t
	return nil
}

// SetUnderlyingPerThousand records the high-water mark after a rebalance.
func (r *Registry) SetUnderlyingPerThousand(caller types.Address, v sdkmath.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	r.underlyingPerThousand = v
	return nil
}

// --- Views ---

// Owner returns the owner identity.
func (r *Registry) Owner() types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// CurrentUnderlying returns the vault's active asset.
func (r *Registry) CurrentUnderlying() types.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentUnderlying
}

// UnderlyingAssets returns the candidate set in deterministic order.
func (r *Registry) UnderlyingAssets() []types.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	assets := lo.Keys(r.underlyingSet)
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].String() < assets[j].String()
	})
	return assets
}

// IsUnderlying reports whether the asset is a registered rebalance candidate.
func (r *Registry) IsUnderlying(asset types.Asset) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.underlyingSet[asset]
	return ok
}

// Classify reports which lending back-end issued an asset and what kind of
// token it is. Assets outside the interest-bearing table are classified as
// stablecoin when they are registered underlyings, not-found otherwise.
func (r *Registry) Classify(asset types.Asset) (types.LendingBackend, types.AssetKind) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.interestBearing[asset]; ok {
		return info.Backend, types.KindInterestBearing
	}
	if _, ok := r.underlyingSet[asset]; ok {
		return types.BackendNotFound, types.KindStableCoin
	}
	return types.BackendNotFound, types.KindNotFound
}

// WrappedUnderlying returns the stable asset an interest-bearing token
// wraps, if registered.
func (r *Registry) WrappedUnderlying(asset types.Asset) (types.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.interestBearing[asset]
	return info.Underlying, ok
}

// MintFeeBps returns the mint fee in basis points.
func (r *Registry) MintFeeBps() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mintFeeBps
}

// BurnFeeBps returns the burn fee in basis points.
func (r *Registry) BurnFeeBps() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.burnFeeBps
}

// PerformanceFeeBps returns the performance fee in basis points.
func (r *Registry) PerformanceFeeBps() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.performanceFeeBps
}

// FeeRecipient returns the fee wallet identity.
func (r *Registry) FeeRecipient() types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeRecipient
}

// Oracle returns the recognized oracle identity.
func (r *Registry) Oracle() types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.oracle
}

// GovernanceToken returns the incidental reward asset, possibly zero.
func (r *Registry) GovernanceToken() types.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.governanceToken
}

// FeeFundingAsset returns the oracle-payment reserve asset.
func (r *Registry) FeeFundingAsset() types.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeFundingAsset
}

// FeeSettlementAsset returns the asset fees are settled in.
func (r *Registry) FeeSettlementAsset() types.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeSettlementAsset
}

// RestrictedMode reports whether create/redeem require allow-list membership.
func (r *Registry) RestrictedMode() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.restrictedMode
}

// IsAllowed reports whether the account may call create/redeem under the
// current access mode.
func (r *Registry) IsAllowed(user types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.restrictedMode {
		return true
	}
	_, ok := r.allowedUsers[user]
	return ok
}

// Paused reports whether value-moving operations are suspended.
func (r *Registry) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// LastRebalanceTime returns when the last rebalance completed (zero before
// the first).
func (r *Registry) LastRebalanceTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRebalanceTime
}

// RebalanceInterval returns the minimum gap between rebalances.
func (r *Registry) RebalanceInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rebalanceInterval
}

// UnderlyingPerThousand returns the performance-fee high-water mark and
// whether one has been recorded yet.
func (r *Registry) UnderlyingPerThousand() (sdkmath.Int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.underlyingPerThousand.IsNil() {
		return sdkmath.ZeroInt(), false
	}
	return r.underlyingPerThousand, true
}
