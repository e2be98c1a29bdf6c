package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the expensive steps of an interaction calculation. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Diagonalizations prometheus.Counter
	Runs             *prometheus.CounterVec
	RunSeconds       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Diagonalizations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phonon3",
			Name:      "diagonalizations_total",
			Help:      "Dynamical matrices diagonalized by the phonon cache.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phonon3",
			Name:      "interaction_runs_total",
			Help:      "Interaction strength calculations by backend.",
		}, []string{"backend"}),
		RunSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "phonon3",
			Name:      "interaction_run_seconds",
			Help:      "Wall time of interaction strength calculations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"backend"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Diagonalizations, m.Runs, m.RunSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveDiagonalization counts one eigensolver call.
func (m *Metrics) ObserveDiagonalization() {
	if m == nil {
		return
	}
	m.Diagonalizations.Inc()
}

// ObserveRun records a completed run of the named backend.
func (m *Metrics) ObserveRun(backend string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(backend).Inc()
	m.RunSeconds.WithLabelValues(backend).Observe(elapsed.Seconds())
}
