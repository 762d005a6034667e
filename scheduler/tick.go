package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/metrics"
	"github.com/wippyai/framehost/registry"
)

// Updatable is a registered instance the scheduler can drive.
type Updatable interface {
	Active() bool
	Update(ctx context.Context) error
}

// TickResult summarizes one tick.
type TickResult struct {
	Traps    []error
	Visited  int
	Updated  int
	Duration time.Duration
}

// Scheduler calls Update on every active instance of a registry.
type Scheduler[T Updatable] struct {
	table   *registry.Table[T]
	logger  *zap.Logger
	metrics *metrics.Metrics
	ticking atomic.Bool
}

// NewScheduler creates a scheduler over table. logger and m may be nil.
func NewScheduler[T Updatable](table *registry.Table[T], logger *zap.Logger, m *metrics.Metrics) *Scheduler[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler[T]{table: table, logger: logger, metrics: m}
}

// Tick updates every active instance once, in insertion order. Instances
// registered during the tick are picked up on the next one; instances
// removed during the tick are skipped. Update failures and panics are
// collected in the result as UpdateTrap errors. The only error returned is
// a re-entrant call.
func (s *Scheduler[T]) Tick(ctx context.Context) (TickResult, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		return TickResult{}, errors.New(errors.PhaseSchedule, errors.KindReentrant).Detail("tick already in progress").Build()
	}
	defer s.ticking.Store(false)

	var res TickResult
	start := time.Now()
	for h, inst := range s.table.All() {
		res.Visited++
		if !inst.Active() {
			continue
		}
		res.Updated++
		if err := s.update(ctx, h, inst); err != nil {
			res.Traps = append(res.Traps, err)
			s.logger.Warn("update failed", zap.Uint32("handle", uint32(h)), zap.Error(err))
		}
	}
	res.Duration = time.Since(start)
	s.metrics.ObserveTick(res.Duration, res.Updated, len(res.Traps))
	return res, nil
}

func (s *Scheduler[T]) update(ctx context.Context, h registry.Handle, inst T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.UpdateTrap(uint32(h), fmt.Errorf("panic: %v", r))
		}
	}()
	if uerr := inst.Update(ctx); uerr != nil {
		return errors.UpdateTrap(uint32(h), uerr)
	}
	return nil
}
