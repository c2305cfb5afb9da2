package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the participation ledger.
type Metrics struct {
	Joins           prometheus.Counter
	Leaves          prometheus.Counter
	ProgressUpdates prometheus.Counter

	// Rejected operations by domain error code
	Rejections *prometheus.CounterVec

	// Enrollment checks that hit a storage failure and reported false
	EnrollmentCheckFailures prometheus.Counter

	OperationDuration *prometheus.HistogramVec
}

// New registers the participation ledger metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Joins: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_participation_joins_total",
			Help: "Total number of challenge joins",
		}),
		Leaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_participation_leaves_total",
			Help: "Total number of challenge leaves",
		}),
		ProgressUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_participation_progress_updates_total",
			Help: "Total number of progress updates",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_participation_rejections_total",
			Help: "Rejected ledger operations by error code",
		}, []string{"code"}),
		EnrollmentCheckFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_participation_enrollment_check_failures_total",
			Help: "Enrollment checks that failed in storage and were reported as not enrolled",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthtrack_participation_operation_duration_seconds",
			Help:    "Duration of participation ledger operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementJoins() {
	if m != nil {
		m.Joins.Inc()
	}
}

func (m *Metrics) IncrementLeaves() {
	if m != nil {
		m.Leaves.Inc()
	}
}

func (m *Metrics) IncrementProgressUpdates() {
	if m != nil {
		m.ProgressUpdates.Inc()
	}
}

func (m *Metrics) IncrementRejection(code string) {
	if m != nil {
		m.Rejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncrementEnrollmentCheckFailures() {
	if m != nil {
		m.EnrollmentCheckFailures.Inc()
	}
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
