package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the check-in engine. All methods are
// nil-safe so services may run without metrics.
type Metrics struct {
	// Search latency by resolved mode
	SearchDuration *prometheus.HistogramVec
	// Searches that exceeded the soft latency budget
	SearchBudgetExceeded prometheus.Counter

	// Check-in items by outcome: "recorded" or an error kind
	CheckinItems *prometheus.CounterVec
	// Batches served from a stored idempotent result
	SubmissionReplays prometheus.Counter

	// Candidates drawn per allocated code
	CodeAttempts prometheus.Histogram
	// Allocations that gave up after the attempt ceiling
	CodeSpaceExhausted prometheus.Counter

	// Occurrence resolves by result: "found", "created", "raced", "conflict"
	OccurrenceResolves *prometheus.CounterVec

	// Checkout decisions by outcome
	CheckoutOutcomes *prometheus.CounterVec

	// Offline replay results by status
	ReplayItems *prometheus.CounterVec
}

// New registers the check-in metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shepherd_checkin_search_duration_seconds",
			Help:    "Duration of family search by mode",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"mode"}),
		SearchBudgetExceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "shepherd_checkin_search_budget_exceeded_total",
			Help: "Searches that completed after the latency budget",
		}),
		CheckinItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shepherd_checkin_items_total",
			Help: "Check-in items by outcome",
		}, []string{"outcome"}),
		SubmissionReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "shepherd_checkin_submission_replays_total",
			Help: "Batches answered from a previously stored result",
		}),
		CodeAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shepherd_checkin_code_attempts",
			Help:    "Candidates generated per security code allocation",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}),
		CodeSpaceExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "shepherd_checkin_code_space_exhausted_total",
			Help: "Security code allocations that hit the attempt ceiling",
		}),
		OccurrenceResolves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shepherd_checkin_occurrence_resolves_total",
			Help: "Occurrence resolves by result",
		}, []string{"result"}),
		CheckoutOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shepherd_checkin_checkout_outcomes_total",
			Help: "Checkout decisions by outcome",
		}, []string{"outcome"}),
		ReplayItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shepherd_checkin_offline_replay_items_total",
			Help: "Offline queue replay results by status",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveSearch(mode string, d time.Duration) {
	if m != nil {
		m.SearchDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementSearchBudgetExceeded() {
	if m != nil {
		m.SearchBudgetExceeded.Inc()
	}
}

func (m *Metrics) IncrementCheckinItem(outcome string) {
	if m != nil {
		m.CheckinItems.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementReplay() {
	if m != nil {
		m.SubmissionReplays.Inc()
	}
}

func (m *Metrics) ObserveCodeAttempts(n int) {
	if m != nil {
		m.CodeAttempts.Observe(float64(n))
	}
}

func (m *Metrics) IncrementCodeSpaceExhausted() {
	if m != nil {
		m.CodeSpaceExhausted.Inc()
	}
}

func (m *Metrics) IncrementOccurrenceResolve(result string) {
	if m != nil {
		m.OccurrenceResolves.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementCheckoutOutcome(outcome string) {
	if m != nil {
		m.CheckoutOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementReplayItem(status string) {
	if m != nil {
		m.ReplayItems.WithLabelValues(status).Inc()
	}
}
