/*

Rebalance state machine. The oracle round-trip spans three independent
external calls separated by unbounded real time:

	Idle --InitRebalance--> RequestPending --HandleOracleData--> DataReady
	DataReady --ExecuteRebalance--> Idle

The callback only stages data; moving the position requires a second,
independently gated call, so a buggy or adversarial relay can never execute
value transfer directly. The staged min-return bounds were fixed off-chain
before execution, so the executing caller can trigger but not tune them.

*/

package rebalance

import (
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/metrics"
	"github.com/amun/limavault/internal/nav"
	"github.com/amun/limavault/internal/oracle"
	"github.com/amun/limavault/internal/registry"
	"github.com/amun/limavault/internal/swap"
	"github.com/amun/limavault/internal/token"
	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

// Phase labels for logs and the web API.
const (
	PhaseIdle           = "idle"
	PhaseRequestPending = "request_pending"
	PhaseDataReady      = "data_ready"
)

// GovMinReturnBinding selects which execution leg the staged
// minReturnGovernance bound protects. The source system is ambiguous about
// this (its tests and variable names disagree), so the binding is explicit
// configuration instead of a guess.
type GovMinReturnBinding int

const (
	// BindGovernanceLeg checks the bound against the governance-token
	// liquidation output. This is the default reading.
	BindGovernanceLeg GovMinReturnBinding = iota
	// BindFeeFundingLeg checks the bound against the fee-funding sale
	// output instead.
	BindFeeFundingLeg
)

// SnapshotStore persists rebalance outcomes. Optional: a nil store degrades
// to in-memory numbering with no history.
type SnapshotStore interface {
	SaveRebalanceSnapshot(snap types.RebalanceSnapshot) (int64, error)
	IncrementRebalanceNumber() (int, error)
}

// Config wires the machine to its collaborators.
type Config struct {
	Registry *registry.Registry
	Engine   *nav.Engine
	Ledger   *token.Ledger
	Router   swap.Router
	Oracle   oracle.Client

	// Authority is the identity the machine acts under when it updates the
	// registry after a completed rebalance. It must be the registry owner.
	Authority types.Address

	GovBinding GovMinReturnBinding

	// Store is optional; nil disables persistence.
	Store SnapshotStore

	// Now is the clock; nil means time.Now. Tests inject a manual clock.
	Now func() time.Time

	// PayoutHook runs before InitRebalance locks the state machine,
	// mirroring the source system's courtesy payout to a prior depositor.
	// Errors are logged, never fatal.
	PayoutHook func() error
}

// Machine orchestrates the two-phase rebalance.
type Machine struct {
	log    zerolog.Logger
	reg    *registry.Registry
	engine *nav.Engine
	ledger *token.Ledger
	router swap.Router
	oracle oracle.Client

	authority  types.Address
	govBinding GovMinReturnBinding
	store      SnapshotStore
	now        func() time.Time
	payoutHook func() error

	mu           sync.Mutex
	rebalancing  bool
	dataReturned bool
	requestID    string
	startedAt    time.Time
	staged       types.RebalanceTarget

	// fallback numbering when no store is configured
	localCounter int
}

// NewMachine validates the config and constructs the state machine in Idle.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Registry == nil || cfg.Engine == nil || cfg.Ledger == nil || cfg.Router == nil || cfg.Oracle == nil {
		return nil, vaulterr.ErrInvalidAsset.Wrap("machine requires registry, engine, ledger, router and oracle")
	}
	if cfg.Authority.IsZero() {
		return nil, vaulterr.ErrInvalidAsset.Wrap("machine authority is empty")
	}
	if cfg.Authority != cfg.Registry.Owner() {
		return nil, vaulterr.ErrUnauthorized.Wrap("machine authority must be the registry owner")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		log:        logger.GetForComponent("rebalance_machine"),
		reg:        cfg.Registry,
		engine:     cfg.Engine,
		ledger:     cfg.Ledger,
		router:     cfg.Router,
		oracle:     cfg.Oracle,
		authority:  cfg.Authority,
		govBinding: cfg.GovBinding,
		store:      cfg.Store,
		now:        now,
		payoutHook: cfg.PayoutHook,
	}, nil
}

// Phase reports the current state machine phase.
func (m *Machine) Phase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.rebalancing && m.dataReturned:
		return PhaseDataReady
	case m.rebalancing:
		return PhaseRequestPending
	default:
		return PhaseIdle
	}
}

// PendingSince returns when the in-flight rebalance was initiated, if any.
// A pending request never expires on its own; operators watch this.
func (m *Machine) PendingSince() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt, m.rebalancing
}

// InitRebalance opens a rebalance round: checks the interval gate and the
// single-in-flight invariant, runs the optional courtesy payout hook, and
// dispatches the oracle request. Any caller may invoke it.
func (m *Machine) InitRebalance() error {
	if m.reg.Paused() {
		return vaulterr.ErrPaused
	}

	m.mu.Lock()
	if m.rebalancing {
		m.mu.Unlock()
		return vaulterr.ErrStateViolation.Wrap("a rebalance is already in flight")
	}
	notBefore := m.reg.LastRebalanceTime().Add(m.reg.RebalanceInterval())
	nowTime := m.now()
	if nowTime.Before(notBefore) {
		m.mu.Unlock()
		return vaulterr.ErrStateViolation.Wrapf("rebalance interval not elapsed, next allowed at %s", notBefore.UTC().Format(time.RFC3339))
	}
	m.mu.Unlock()

	if m.payoutHook != nil {
		if err := m.payoutHook(); err != nil {
			m.log.Warn().Err(err).Msg("Pre-rebalance payout hook failed, continuing")
		}
	}

	current := m.reg.CurrentUnderlying()
	candidates := m.reg.UnderlyingAssets()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rebalancing {
		return vaulterr.ErrStateViolation.Wrap("a rebalance is already in flight")
	}
	requestID, err := m.oracle.RequestBestAsset(current, candidates)
	if err != nil {
		metrics.OperationErrors.WithLabelValues("initRebalance").Inc()
		return vaulterr.ErrRouteFailure.Wrapf("oracle request failed: %s", err)
	}
	m.rebalancing = true
	m.dataReturned = false
	m.requestID = requestID
	m.startedAt = nowTime
	m.staged = types.RebalanceTarget{}

	m.log.Info().
		Str("requestID", requestID).
		Str("current", current.String()).
		Int("candidates", len(candidates)).
		Msg("Rebalance initiated, waiting for oracle data")
	return nil
}

// HandleOracleData is the inbound oracle callback. The sender must be the
// single recognized oracle identity and the payload must decode into a
// registered target. It stages data only; no funds move here.
func (m *Machine) HandleOracleData(sender types.Address, requestID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.rebalancing || m.dataReturned {
		return vaulterr.ErrStateViolation.Wrap("no oracle data expected in the current phase")
	}
	if sender != m.reg.Oracle() {
		metrics.OperationErrors.WithLabelValues("oracleCallback").Inc()
		return vaulterr.ErrUnauthorized.Wrapf("callback sender %s is not the recognized oracle", sender)
	}
	if requestID != m.requestID {
		return vaulterr.ErrStateViolation.Wrapf("callback for unknown request %s", requestID)
	}

	target, err := oracle.DecodePayload(payload)
	if err != nil {
		metrics.OperationErrors.WithLabelValues("oracleCallback").Inc()
		return err
	}
	if !m.reg.IsUnderlying(target.TargetAsset) {
		metrics.OperationErrors.WithLabelValues("oracleCallback").Inc()
		return vaulterr.ErrInvalidAsset.Wrapf("oracle target %s is not a registered underlying", target.TargetAsset)
	}

	m.staged = target
	m.dataReturned = true

	m.log.Info().
		Str("requestID", requestID).
		Str("target", target.TargetAsset.String()).
		Str("minReturnUnderlying", target.MinReturnUnderlying.String()).
		Msg("Oracle data staged, ready for rebalance")
	return nil
}

// ExecuteRebalance moves the whole position into the staged target. Any
// caller may trigger it; the staged data determines the outcome. The call is
// atomic: any slippage violation or route failure restores all balances and
// leaves the machine in DataReady, recoverable only via a fresh init.
func (m *Machine) ExecuteRebalance() error {
	if err := m.engine.Guard().Enter("executeRebalance"); err != nil {
		return err
	}
	defer m.engine.Guard().Exit()

	if m.reg.Paused() {
		return vaulterr.ErrPaused
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rebalancing || !m.dataReturned {
		return vaulterr.ErrStateViolation.Wrap("no staged oracle data to execute")
	}

	snap := types.RebalanceSnapshot{
		RequestID: m.requestID,
		StartedAt: m.startedAt,
		FromAsset: m.reg.CurrentUnderlying(),
		ToAsset:   m.staged.TargetAsset,
		NavBefore: m.engine.TotalManagedValue(),
	}

	ledgerSnap := m.ledger.Snapshot()
	err := m.executeLocked(&snap)
	snap.CompletedAt = m.now()
	if err != nil {
		m.ledger.Restore(ledgerSnap)
		snap.Status = types.RebalanceStatusFailed
		snap.FailureReason = err.Error()
		snap.NavAfter = snap.NavBefore
		m.persistSnapshot(snap)
		metrics.OperationErrors.WithLabelValues("executeRebalance").Inc()
		m.log.Error().Err(err).Str("requestID", m.requestID).Msg("Rebalance execution aborted, staged data retained")
		return err
	}

	// Commit: repoint the registry, reset the high-water mark, stamp the
	// interval gate, and return to Idle.
	if err := m.reg.SetCurrentUnderlying(m.authority, m.staged.TargetAsset); err != nil {
		// Target membership was validated at staging time; losing it here
		// means an operator removed it mid-flight.
		m.ledger.Restore(ledgerSnap)
		metrics.OperationErrors.WithLabelValues("executeRebalance").Inc()
		return err
	}
	supply := m.engine.TotalSupply()
	if supply.IsPositive() {
		perThousand := m.engine.TotalManagedValue().Mul(sdkmath.NewInt(1000)).Quo(supply)
		if err := m.reg.SetUnderlyingPerThousand(m.authority, perThousand); err != nil {
			m.log.Warn().Err(err).Msg("Failed to update high-water mark")
		}
	}
	if err := m.reg.TouchRebalanceTimestamp(m.authority, m.now()); err != nil {
		m.log.Warn().Err(err).Msg("Failed to stamp rebalance timestamp")
	}

	m.rebalancing = false
	m.dataReturned = false
	m.requestID = ""
	m.staged = types.RebalanceTarget{}

	snap.Status = types.RebalanceStatusCompleted
	snap.NavAfter = m.engine.TotalManagedValue()
	m.persistSnapshot(snap)
	metrics.Rebalances.Inc()

	m.log.Info().
		Str("from", snap.FromAsset.String()).
		Str("to", snap.ToAsset.String()).
		Str("navBefore", snap.NavBefore.String()).
		Str("navAfter", snap.NavAfter.String()).
		Msg("Rebalance completed")
	return nil
}

// executeLocked runs the value-moving legs in order. It mutates only the
// ledger; the caller restores on error.
func (m *Machine) executeLocked(snap *types.RebalanceSnapshot) error {
	current := m.reg.CurrentUnderlying()
	vault := m.engine.VaultAddress()

	// Leg 1: liquidate any held governance/reward asset into the current
	// underlying. Skipped when unset or empty.
	gov := m.reg.GovernanceToken()
	if !gov.IsZero() {
		govBal := m.ledger.BalanceOf(gov, vault)
		if govBal.IsPositive() {
			out, err := m.router.Convert(gov, current, govBal)
			if err != nil {
				return swap.NormalizeError(err)
			}
			if m.govBinding == BindGovernanceLeg && out.LT(m.staged.MinReturnGovernance) {
				return vaulterr.ErrSlippageExceeded.Wrapf("governance liquidation returned %s, oracle requires %s", out, m.staged.MinReturnGovernance)
			}
			snap.GovernanceSold = govBal
		}
	}

	// Leg 2: sell part of the position to top up the fee-funding reserve.
	if m.staged.AmountToSellForFeeAsset.IsPositive() {
		feeAsset := m.reg.FeeFundingAsset()
		if feeAsset.IsZero() {
			return vaulterr.ErrInvalidAsset.Wrap("fee funding asset is not configured")
		}
		out, err := m.router.Convert(current, feeAsset, m.staged.AmountToSellForFeeAsset)
		if err != nil {
			return swap.NormalizeError(err)
		}
		if m.govBinding == BindFeeFundingLeg && out.LT(m.staged.MinReturnGovernance) {
			return vaulterr.ErrSlippageExceeded.Wrapf("fee funding sale returned %s, oracle requires %s", out, m.staged.MinReturnGovernance)
		}
		snap.FeeFundingBought = out
	}

	// Leg 3: performance fee on gains above the high-water mark. Strictly
	// best-effort; capital movement outranks the fee sweep.
	snap.PerformanceFeePaid = m.settlePerformanceFee(current, vault)

	// Leg 4: move the entire remaining position. Same-asset targets run the
	// identical path and fill 1:1.
	remaining := m.ledger.BalanceOf(current, vault)
	moved := sdkmath.ZeroInt()
	if remaining.IsPositive() {
		out, err := m.router.Convert(current, m.staged.TargetAsset, remaining)
		if err != nil {
			return swap.NormalizeError(err)
		}
		moved = out
	}
	if moved.LT(m.staged.MinReturnUnderlying) {
		return vaulterr.ErrSlippageExceeded.Wrapf("position move returned %s, oracle requires %s", moved, m.staged.MinReturnUnderlying)
	}
	return nil
}

// settlePerformanceFee pays the fee on gain above the high-water mark,
// denominated in the fee settlement asset. Every failure path degrades to
// skipping the fee: aborting the whole rebalance over an ancillary sweep
// is worse than missing one sweep.
func (m *Machine) settlePerformanceFee(current types.Asset, vault types.Address) sdkmath.Int {
	zero := sdkmath.ZeroInt()
	bps := m.reg.PerformanceFeeBps()
	if bps == 0 {
		return zero
	}
	hwm, ok := m.reg.UnderlyingPerThousand()
	if !ok {
		return zero
	}
	supply := m.engine.TotalSupply()
	if !supply.IsPositive() {
		return zero
	}
	perThousand := m.engine.TotalManagedValue().Mul(sdkmath.NewInt(1000)).Quo(supply)
	if !perThousand.GT(hwm) {
		return zero
	}
	gain := perThousand.Sub(hwm).Mul(supply).Quo(sdkmath.NewInt(1000))
	fee := gain.Mul(sdkmath.NewInt(int64(bps))).Quo(sdkmath.NewInt(10_000))
	if !fee.IsPositive() {
		return zero
	}
	recipient := m.reg.FeeRecipient()
	if recipient.IsZero() {
		m.log.Warn().Msg("Fee recipient unset, skipping performance fee")
		return zero
	}

	settlement := m.reg.FeeSettlementAsset()
	feeOut := fee
	if settlement != current && !settlement.IsZero() {
		out, err := m.router.Convert(current, settlement, fee)
		if err != nil {
			m.log.Warn().Err(err).Msg("Performance fee conversion failed, skipping fee")
			return zero
		}
		feeOut = out
	} else if settlement.IsZero() {
		settlement = current
	}
	if err := m.ledger.Transfer(settlement, vault, recipient, feeOut); err != nil {
		m.log.Warn().Err(err).Msg("Performance fee transfer failed, skipping fee")
		return zero
	}
	m.log.Info().
		Str("fee", feeOut.String()).
		Str("settlement", settlement.String()).
		Msg("Performance fee settled")
	return feeOut
}

func (m *Machine) persistSnapshot(snap types.RebalanceSnapshot) {
	if m.store == nil {
		m.localCounter++
		return
	}
	number, err := m.store.IncrementRebalanceNumber()
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to increment rebalance number, snapshot unnumbered")
	}
	snap.Number = number
	if _, err := m.store.SaveRebalanceSnapshot(snap); err != nil {
		m.log.Error().Err(err).Msg("Failed to persist rebalance snapshot")
	}
}
