package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contact registry.
type Metrics struct {
	ContactsAdded     prometheus.Counter
	ContactsRemoved   prometheus.Counter
	PrimaryPromotions prometheus.Counter

	// Operation latencies by operation name
	OperationDuration *prometheus.HistogramVec
}

// New registers the contact registry metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ContactsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_contacts_added_total",
			Help: "Total number of contacts added",
		}),
		ContactsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_contacts_removed_total",
			Help: "Total number of contacts removed, including owner purges",
		}),
		PrimaryPromotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthtrack_contact_primary_promotions_total",
			Help: "Total number of primary contact changes",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthtrack_contact_operation_duration_seconds",
			Help:    "Duration of contact registry operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementAdded() {
	if m != nil {
		m.ContactsAdded.Inc()
	}
}

func (m *Metrics) AddRemoved(n int) {
	if m != nil && n > 0 {
		m.ContactsRemoved.Add(float64(n))
	}
}

func (m *Metrics) IncrementPromotions() {
	if m != nil {
		m.PrimaryPromotions.Inc()
	}
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
