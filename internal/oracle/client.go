package oracle

import (
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/types"
	"github.com/amun/limavault/internal/vaulterr"
)

// Client is the outbound edge of the oracle round-trip: the vault asks for
// the best-yielding asset and later receives a single authenticated payload
// through the state machine's callback. The request and the callback are
// separate transactions separated by unbounded real time.
type Client interface {
	// RequestBestAsset asks the oracle network to determine the best target
	// among the candidates and returns a request identifier the callback
	// will echo.
	RequestBestAsset(current types.Asset, candidates []types.Asset) (string, error)
}

// DeliverFunc is how a bridge hands a payload back to the vault. The sender
// identity is checked against the registry's configured oracle.
type DeliverFunc func(sender types.Address, requestID string, payload []byte) error

// ChooseFunc computes the oracle answer off-band for the bridge stub.
type ChooseFunc func(current types.Asset, candidates []types.Asset) (types.RebalanceTarget, error)

// BridgeStub is an in-process stand-in for the external oracle bridge. It
// answers every request asynchronously through the configured deliver
// function, encoding the chosen target with the production codec so the
// whole callback path (identity check, decode, staleness of low-order bits)
// is exercised end to end.
type BridgeStub struct {
	log      zerolog.Logger
	identity types.Address
	choose   ChooseFunc
	deliver  DeliverFunc
}

// NewBridgeStub constructs a stub bridge answering as the given identity.
func NewBridgeStub(identity types.Address, choose ChooseFunc, deliver DeliverFunc) (*BridgeStub, error) {
	if identity.IsZero() {
		return nil, vaulterr.ErrInvalidAsset.Wrap("bridge identity is empty")
	}
	if choose == nil || deliver == nil {
		return nil, vaulterr.ErrInvalidAsset.Wrap("bridge requires choose and deliver functions")
	}
	return &BridgeStub{
		log:      logger.GetForComponent("oracle_bridge"),
		identity: identity,
		choose:   choose,
		deliver:  deliver,
	}, nil
}

// RequestBestAsset implements Client. The answer is produced on a separate
// goroutine, mirroring the real bridge's asynchronous round-trip.
func (b *BridgeStub) RequestBestAsset(current types.Asset, candidates []types.Asset) (string, error) {
	requestID := uuid.New().String()
	b.log.Info().
		Str("requestID", requestID).
		Str("current", current.String()).
		Int("candidates", len(candidates)).
		Msg("Oracle request dispatched")

	go func() {
		target, err := b.choose(current, candidates)
		if err != nil {
			b.log.Error().Err(err).Str("requestID", requestID).Msg("Oracle stub failed to choose a target")
			return
		}
		payload, err := EncodePayload(target)
		if err != nil {
			b.log.Error().Err(err).Str("requestID", requestID).Msg("Oracle stub failed to encode payload")
			return
		}
		if err := b.deliver(b.identity, requestID, payload); err != nil {
			b.log.Error().Err(err).Str("requestID", requestID).Msg("Oracle callback rejected")
		}
	}()

	return requestID, nil
}

// HoldCurrentChooser is the conservative default strategy for the stub: keep
// the present position with no slippage floor and no fee-funding sale.
func HoldCurrentChooser(current types.Asset, candidates []types.Asset) (types.RebalanceTarget, error) {
	return types.RebalanceTarget{
		TargetAsset:             current,
		MinReturnUnderlying:     sdkmath.ZeroInt(),
		MinReturnGovernance:     sdkmath.ZeroInt(),
		AmountToSellForFeeAsset: sdkmath.ZeroInt(),
	}, nil
}
