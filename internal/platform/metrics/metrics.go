package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across the core. A single
// struct keeps registration in one place and lets services receive only what
// they need via options.
type Metrics struct {
	CommandsTotal    *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
	LoginFailures    *prometheus.CounterVec
	SweepTransitions *prometheus.CounterVec
	RateLimited      prometheus.Counter
	ReplayHits       prometheus.Counter
	AuditPublished   *prometheus.CounterVec
}

// New creates and registers all instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zonecore_commands_total",
			Help: "EPP commands processed, by command type and result code",
		}, []string{"command", "code"}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zonecore_command_duration_seconds",
			Help:    "Latency of EPP command execution",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"command"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zonecore_active_sessions",
			Help: "Currently open EPP sessions",
		}),
		LoginFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zonecore_login_failures_total",
			Help: "Failed login attempts, by reason",
		}, []string{"reason"}),
		SweepTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zonecore_sweep_transitions_total",
			Help: "Timer-driven object transitions, by kind",
		}, []string{"kind"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zonecore_rate_limited_total",
			Help: "Queries rejected by the rate limiter",
		}),
		ReplayHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zonecore_replay_hits_total",
			Help: "Commands answered from the transaction log without re-execution",
		}),
		AuditPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zonecore_audit_published_total",
			Help: "Audit records forwarded to Kafka, by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveCommand records one dispatched command.
func (m *Metrics) ObserveCommand(command, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, code).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}
