package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/actorvm/sched"
	"github.com/chazu/actorvm/vm"
)

func TestNewSchedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedMetrics(reg)
	require.NotNil(t, m)

	timer := m.SweepDuration()
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.TickCompleted("running")
	m.TickCompleted("running")
	m.TickCompleted("halted")
	m.ActorFault("division_by_zero")
	m.MailboxDepth(1, 3)
	m.LiveActors(2)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["actorvm_sched_sweep_duration_seconds"])
	assert.True(t, names["actorvm_ticks_total"])
	assert.True(t, names["actorvm_faults_total"])
	assert.True(t, names["actorvm_mailbox_depth"])
	assert.True(t, names["actorvm_live_actors"])

	sm := m.(*schedMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(sm.ticksTotal.WithLabelValues("running")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sm.mailboxDepth.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sm.liveActors))

	m.ActorHalted(1)
	assert.Equal(t, 0, testutil.CollectAndCount(sm.mailboxDepth))
}

func TestSchedulerFeedsPrometheus(t *testing.T) {
	sys := vm.NewSystem()
	_, err := sys.CreateActor(vm.Program{
		vm.LoadInt(vm.R0, 1),
		vm.LoadInt(vm.R1, 0),
		vm.Mod(vm.R0, vm.R1, vm.R2),
	}, vm.WithName("faulty"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := NewSchedMetrics(reg)
	report, err := sched.New(sys, sched.Options{Metrics: m, StopWhenIdle: true}).Run(testContext(t))
	require.NoError(t, err)
	require.True(t, report.Failed())

	sm := m.(*schedMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.faultsTotal.WithLabelValues("division_by_zero")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sm.ticksTotal.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.ticksTotal.WithLabelValues("halted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(sm.liveActors))
	assert.Equal(t, 0, testutil.CollectAndCount(sm.mailboxDepth), "halted actors keep no mailbox series")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "actorvm_sched_sweep_duration_seconds" {
			assert.Equal(t, report.Sweeps, mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}
