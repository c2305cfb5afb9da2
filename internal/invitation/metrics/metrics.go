package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the invitation lifecycle.
type Metrics struct {
	Created prometheus.Counter

	// Resolutions by outcome: accepted, expired_on_accept, already_resolved
	Resolutions *prometheus.CounterVec

	Swept         prometheus.Counter
	SweepDuration prometheus.Histogram
}

// New registers the invitation metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_invitations_created_total",
			Help: "Total number of invitations created",
		}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_invitation_resolutions_total",
			Help: "Invitation accept attempts by outcome",
		}, []string{"outcome"}),
		Swept: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_invitations_swept_total",
			Help: "Total number of invitations expired by sweeps",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthtrack_invitation_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

func (m *Metrics) IncrementResolution(outcome string) {
	if m != nil {
		m.Resolutions.WithLabelValues(outcome).Inc()
	}
}

// ObserveSweep records one sweep run and how many invitations it expired.
func (m *Metrics) ObserveSweep(expired int, start time.Time) {
	if m != nil {
		m.Swept.Add(float64(expired))
		m.SweepDuration.Observe(time.Since(start).Seconds())
	}
}
