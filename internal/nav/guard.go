package nav

import (
	"sync/atomic"

	"github.com/amun/limavault/internal/vaulterr"
)

// CallGuard makes the vault's value-moving operations all-or-nothing and
// single-file. Exactly one of create/redeem/forceRedeem/executeRebalance may
// be between Enter and Exit at a time. A second entry, whether a concurrent
// caller or a reentrant call arriving through a swap router callback, is
// rejected rather than queued, matching ledger-style serialized execution.
type CallGuard struct {
	busy atomic.Bool
}

// Enter claims the guard. The op name is only used in the rejection message.
func (g *CallGuard) Enter(op string) error {
	if !g.busy.CompareAndSwap(false, true) {
		return vaulterr.ErrStateViolation.Wrapf("%s rejected: another vault operation is in progress", op)
	}
	return nil
}

// Exit releases the guard.
func (g *CallGuard) Exit() {
	g.busy.Store(false)
}
