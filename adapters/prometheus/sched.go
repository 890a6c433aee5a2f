package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chazu/actorvm/metrics"
	"github.com/chazu/actorvm/sched"
)

// schedMetrics implements sched.Metrics using Prometheus.
type schedMetrics struct {
	sweepDuration prometheus.Histogram
	ticksTotal    *prometheus.CounterVec
	faultsTotal   *prometheus.CounterVec
	mailboxDepth  *prometheus.GaugeVec
	liveActors    prometheus.Gauge
}

// NewSchedMetrics creates a Prometheus implementation of sched.Metrics and
// registers its collectors with reg.
func NewSchedMetrics(reg prometheus.Registerer) sched.Metrics {
	m := &schedMetrics{
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "actorvm_sched_sweep_duration_seconds",
			Help:    "Time to tick every live actor once",
			Buckets: sweepBuckets,
		}),

		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorvm_ticks_total",
			Help: "Total number of actor ticks by resulting state",
		}, []string{"state"}),

		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorvm_faults_total",
			Help: "Total number of actor faults by kind",
		}, []string{"kind"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actorvm_mailbox_depth",
			Help: "Messages waiting in the mailbox of a live actor",
		}, []string{"ref"}),

		liveActors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actorvm_live_actors",
			Help: "Number of actors that have not halted",
		}),
	}

	reg.MustRegister(
		m.sweepDuration,
		m.ticksTotal,
		m.faultsTotal,
		m.mailboxDepth,
		m.liveActors,
	)

	return m
}

func (m *schedMetrics) SweepDuration() metrics.Timer {
	return newTimer(m.sweepDuration)
}

func (m *schedMetrics) TickCompleted(state string) {
	m.ticksTotal.WithLabelValues(state).Inc()
}

func (m *schedMetrics) ActorFault(kind string) {
	m.faultsTotal.WithLabelValues(kind).Inc()
}

func (m *schedMetrics) MailboxDepth(ref uint64, depth int) {
	m.mailboxDepth.WithLabelValues(refLabel(ref)).Set(float64(depth))
}

// ActorHalted drops the actor's mailbox series; halted actors never receive.
func (m *schedMetrics) ActorHalted(ref uint64) {
	m.mailboxDepth.DeleteLabelValues(refLabel(ref))
}

func refLabel(ref uint64) string { return strconv.FormatUint(ref, 10) }

func (m *schedMetrics) LiveActors(n int) {
	m.liveActors.Set(float64(n))
}

var _ sched.Metrics = (*schedMetrics)(nil)
