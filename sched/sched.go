// Package sched drives the actors of a vm.System to completion.
//
// A run is a series of sweeps. Each sweep ticks every actor that has not
// halted exactly once, spreading the ticks over a bounded pool of
// goroutines. An actor is never ticked twice within a sweep, and the VM's
// per-actor lock guarantees no two ticks of one actor overlap.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/actorvm/vm"
)

var (
	// ErrIdle is returned when every live actor waits in Recv and no
	// message is pending anywhere.
	ErrIdle = errors.New("sched: all actors suspended with empty mailboxes")

	// ErrTickBudget is recorded for actors halted after MaxTicks.
	ErrTickBudget = errors.New("sched: tick budget exhausted")
)

// DefaultIdlePoll is how long an idle run waits for a post before polling
// the actors again.
const DefaultIdlePoll = 10 * time.Millisecond

// Options configures a Scheduler.
type Options struct {
	// Workers bounds the goroutines ticking actors in parallel. Values
	// below 1 mean 1.
	Workers int

	// MaxTicks halts an actor once it has been ticked this many times.
	// Zero means unlimited.
	MaxTicks uint64

	// StopWhenIdle ends the run with ErrIdle instead of waiting for
	// messages from outside the system.
	StopWhenIdle bool

	// IdlePoll bounds each wait of an idle run. Defaults to DefaultIdlePoll.
	IdlePoll time.Duration

	// HaltOnTypeError halts actors that report a TypeMismatch. Other fault
	// kinds always halt the actor.
	HaltOnTypeError bool

	Metrics Metrics
	Logger  commonlog.Logger
}

// Report summarizes a run.
type Report struct {
	RunID  string
	Sweeps uint64
	Ticks  uint64

	// Faults holds, per actor ref, the error that halted the actor.
	Faults map[uint64]error

	// Final holds the state of every actor when the run ended.
	Final map[uint64]vm.State
}

// Failed reports whether any actor was halted by a fault or policy.
func (r *Report) Failed() bool {
	return len(r.Faults) > 0
}

// Scheduler runs the actors of one system.
type Scheduler struct {
	sys     *vm.System
	opts    Options
	log     commonlog.Logger
	metrics Metrics
}

// New creates a scheduler for sys.
func New(sys *vm.System, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.IdlePoll <= 0 {
		opts.IdlePoll = DefaultIdlePoll
	}
	s := &Scheduler{
		sys:     sys,
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if s.log == nil {
		s.log = commonlog.GetLogger("actorvm.sched")
	}
	if s.metrics == nil {
		s.metrics = NopMetrics()
	}
	return s
}

// sweepResult is shared by the workers of one sweep.
type sweepResult struct {
	mu       sync.Mutex
	ticks    uint64
	progress bool
}

func (r *sweepResult) record(progress bool) {
	r.mu.Lock()
	r.ticks++
	r.progress = r.progress || progress
	r.mu.Unlock()
}

// Run sweeps until every actor has halted, the system goes idle with
// StopWhenIdle set, or ctx is done. Actors created while the run is in
// progress join from the next sweep.
//
// The returned report is always populated. The error is nil when all actors
// halted, ErrIdle when the run stopped idle, or the context's error.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:  uuid.NewString(),
		Faults: make(map[uint64]error),
		Final:  make(map[uint64]vm.State),
	}
	var faultsMu sync.Mutex
	recordFault := func(ref uint64, err error) {
		faultsMu.Lock()
		report.Faults[ref] = err
		faultsMu.Unlock()
	}

	s.log.Info("run started", "run", report.RunID, "actors", s.sys.Len(), "workers", s.opts.Workers)
	defer func() {
		for _, a := range s.sys.Actors() {
			report.Final[a.Ref()] = a.State()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		live := liveActors(s.sys.Actors())
		s.metrics.LiveActors(len(live))
		if len(live) == 0 {
			s.log.Info("run finished", "run", report.RunID, "sweeps", report.Sweeps, "ticks", report.Ticks, "faults", len(report.Faults))
			return report, nil
		}

		res, err := s.sweep(ctx, live, recordFault)
		report.Sweeps++
		report.Ticks += res.ticks
		if err != nil {
			return report, err
		}
		if res.progress {
			continue
		}

		// Nothing ran and nothing was delivered: everyone is waiting in Recv.
		if pending(live) {
			continue
		}
		if s.opts.StopWhenIdle {
			s.log.Notice("system idle", "run", report.RunID, "suspended", len(live))
			return report, ErrIdle
		}
		s.log.Debug("waiting for messages", "run", report.RunID, "suspended", len(live))
		if err := s.wait(ctx); err != nil {
			return report, err
		}
	}
}

// sweep ticks each actor in live once.
func (s *Scheduler) sweep(ctx context.Context, live []*vm.Actor, recordFault func(uint64, error)) (*sweepResult, error) {
	defer s.metrics.SweepDuration().ObserveDuration()

	res := &sweepResult{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, a := range live {
		a := a // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.step(a, res, recordFault)
			return nil
		})
	}
	return res, g.Wait()
}

// step ticks one actor and applies the fault and budget policies.
func (s *Scheduler) step(a *vm.Actor, res *sweepResult, recordFault func(uint64, error)) {
	prev := a.State()
	st, err := a.Tick()
	res.record(prev == vm.Running || st != prev)
	s.metrics.TickCompleted(st.String())

	if err != nil {
		s.handleFault(a, err, recordFault)
	} else if st == vm.Halted && prev != vm.Halted {
		s.log.Info("actor halted", "actor", a.Name(), "ref", a.Ref())
	}

	if n := a.Stats().Ticks; s.opts.MaxTicks > 0 && n >= s.opts.MaxTicks && a.State() != vm.Halted {
		a.Halt()
		recordFault(a.Ref(), fmt.Errorf("%w: actor %d after %d ticks", ErrTickBudget, a.Ref(), n))
		s.log.Warning("tick budget exhausted", "actor", a.Name(), "ref", a.Ref(), "ticks", n)
	}
	if a.State() == vm.Halted {
		s.metrics.ActorHalted(a.Ref())
		return
	}
	s.metrics.MailboxDepth(a.Ref(), a.Mailbox().Len())
}

func (s *Scheduler) handleFault(a *vm.Actor, err error, recordFault func(uint64, error)) {
	kind := vm.FaultInternal
	fatal := true
	if f, ok := vm.AsFault(err); ok {
		kind = f.Kind
		fatal = f.Fatal()
	}
	s.metrics.ActorFault(kind.String())

	switch {
	case fatal:
		recordFault(a.Ref(), err)
		s.log.Error("actor faulted", "actor", a.Name(), "ref", a.Ref(), "error", err)
	case s.opts.HaltOnTypeError:
		a.Halt()
		recordFault(a.Ref(), err)
		s.log.Error("actor halted on type error", "actor", a.Name(), "ref", a.Ref(), "error", err)
	default:
		s.log.Warning("type error", "actor", a.Name(), "ref", a.Ref(), "error", err)
	}
}

// wait blocks until a message is posted, the poll interval passes or ctx is
// done.
func (s *Scheduler) wait(ctx context.Context) error {
	timer := time.NewTimer(s.opts.IdlePoll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.sys.Posted():
	case <-timer.C:
	}
	return nil
}

func liveActors(all []*vm.Actor) []*vm.Actor {
	live := all[:0]
	for _, a := range all {
		if a.State() != vm.Halted {
			live = append(live, a)
		}
	}
	return live
}

func pending(actors []*vm.Actor) bool {
	for _, a := range actors {
		if a.Mailbox().Len() > 0 {
			return true
		}
	}
	return false
}
