package conversation

import "github.com/prometheus/client_golang/prometheus"

var completionLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "clinic_concierge",
		Subsystem: "conversation",
		Name:      "completion_latency_seconds",
		Help:      "Latency of completion calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
	},
	[]string{"model", "status"},
)

var completionTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clinic_concierge",
		Subsystem: "conversation",
		Name:      "completion_tokens_total",
		Help:      "Tokens used by completions",
	},
	[]string{"model", "type"}, // type: input, output, total
)

var llmFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clinic_concierge",
		Subsystem: "conversation",
		Name:      "llm_fallback_total",
		Help:      "Completions retried on the fallback provider, by primary failure category",
	},
	[]string{"category"},
)

var repliesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clinic_concierge",
		Subsystem: "conversation",
		Name:      "replies_total",
		Help:      "Replies produced by the orchestrator, by source",
	},
	[]string{"source"}, // onboarding, faq, model, apology
)

var handleLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "clinic_concierge",
		Subsystem: "conversation",
		Name:      "handle_latency_seconds",
		Help:      "End to end latency of a single inbound message",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	},
	[]string{"source"},
)

var persistenceFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clinic_concierge",
		Subsystem: "conversation",
		Name:      "persistence_failures_total",
		Help:      "Profile or history writes that failed and were dropped",
	},
	[]string{"operation"},
)

var bookingExtractionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "clinic_concierge",
		Subsystem: "conversation",
		Name:      "booking_extractions_total",
		Help:      "Booking blocks seen in completions, by outcome",
	},
	[]string{"outcome"}, // recorded, unparsed
)

func init() {
	prometheus.MustRegister(completionLatency)
	prometheus.MustRegister(completionTokensTotal)
	prometheus.MustRegister(llmFallbackTotal)
	prometheus.MustRegister(repliesTotal)
	prometheus.MustRegister(handleLatency)
	prometheus.MustRegister(persistenceFailuresTotal)
	prometheus.MustRegister(bookingExtractionsTotal)
}

// RegisterMetrics registers conversation metrics with a custom registry.
// Use this when exposing a non-default registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(
		completionLatency,
		completionTokensTotal,
		llmFallbackTotal,
		repliesTotal,
		handleLatency,
		persistenceFailuresTotal,
		bookingExtractionsTotal,
	)
}
