package sched

import "github.com/chazu/actorvm/metrics"

// Metrics defines the instrumentation hooks of the scheduler.
// All methods are thread-safe.
type Metrics interface {
	SweepDuration() metrics.Timer
	TickCompleted(state string)
	ActorFault(kind string)
	MailboxDepth(ref uint64, depth int)
	ActorHalted(ref uint64)
	LiveActors(n int)
}

type nopMetrics struct{}

func (nopMetrics) SweepDuration() metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) TickCompleted(string)         {}
func (nopMetrics) ActorFault(string)            {}
func (nopMetrics) MailboxDepth(uint64, int)     {}
func (nopMetrics) ActorHalted(uint64)           {}
func (nopMetrics) LiveActors(int)               {}

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }
