package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeEnrolled        = "enrolled"
	OutcomeAlreadyEnrolled = "already_enrolled"
	OutcomeNoChallenge     = "no_challenge"
	OutcomeUnregistered    = "unregistered_contact"
	OutcomeFailed          = "failed"
)

// Metrics tracks how invitation acceptances turn into enrollments.
type Metrics struct {
	Outcomes *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_enrollment_outcomes_total",
			Help: "Invitation enrollments by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}
