/*

Cron-driven rebalance loop. The state machine itself is passive; this
scheduler pokes it on a fixed cadence, initiating a round when Idle and
executing when staged oracle data is waiting. The interval gate inside the
machine makes over-eager cron expressions harmless.

*/

package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/rebalance"
	"github.com/amun/limavault/internal/vaulterr"
)

// Scheduler drives the rebalance machine on a cron cadence.
type Scheduler struct {
	log     zerolog.Logger
	cron    *cron.Cron
	machine *rebalance.Machine
}

// New builds a scheduler firing on the given cron expression.
func New(spec string, machine *rebalance.Machine) (*Scheduler, error) {
	s := &Scheduler{
		log:     logger.GetForComponent("scheduler"),
		cron:    cron.New(),
		machine: machine,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing ticks. Non-blocking.
func (s *Scheduler) Start() {
	s.log.Info().Msg("Rebalance scheduler started")
	s.cron.Start()
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Rebalance scheduler stopped")
}

// tick advances the machine one step based on its phase.
func (s *Scheduler) tick() {
	switch phase := s.machine.Phase(); phase {
	case rebalance.PhaseIdle:
		err := s.machine.InitRebalance()
		switch {
		case err == nil:
			s.log.Info().Msg("Scheduled rebalance initiated")
		case vaulterr.ErrStateViolation.Is(err):
			// Interval not elapsed yet, or another caller beat us to it.
			s.log.Debug().Err(err).Msg("Rebalance not due")
		case vaulterr.ErrPaused.Is(err):
			s.log.Debug().Msg("Vault paused, skipping rebalance")
		default:
			s.log.Error().Err(err).Msg("Scheduled rebalance initiation failed")
		}
	case rebalance.PhaseRequestPending:
		s.log.Debug().Msg("Awaiting oracle data")
	case rebalance.PhaseDataReady:
		if err := s.machine.ExecuteRebalance(); err != nil {
			s.log.Error().Err(err).Msg("Scheduled rebalance execution failed")
		} else {
			s.log.Info().Msg("Scheduled rebalance executed")
		}
	default:
		s.log.Warn().Str("phase", phase).Msg("Unknown rebalance phase")
	}
}
