package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "clinic_concierge"

// MessagingMetrics counts WhatsApp traffic at the transport edge: webhook deliveries in, Cloud API
// sends out. A nil *MessagingMetrics is a valid no-op.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	sendsTotal     *prometheus.CounterVec
	sendLatency    *prometheus.HistogramVec
}

// NewMessagingMetrics registers the collectors on reg, or on the default registerer when reg is nil.
func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "WhatsApp webhook events by type and outcome",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Time to verify, parse and enqueue one webhook delivery",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"event_type"}),
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cloud_api",
			Name:      "sends_total",
			Help:      "Cloud API text sends by status and failure reason",
		}, []string{"status", "reason"}),
		sendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cloud_api",
			Name:      "send_latency_seconds",
			Help:      "Cloud API send latency including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	reg.MustRegister(m.inboundTotal, m.webhookLatency, m.sendsTotal, m.sendLatency)
	return m
}

// ObserveInbound counts one webhook event.
func (m *MessagingMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *MessagingMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

// ObserveSend records one Cloud API send. An empty reason means the message was accepted.
func (m *MessagingMetrics) ObserveSend(reason string, seconds float64) {
	if m == nil {
		return
	}
	status := "sent"
	if reason != "" {
		status = "failed"
	} else {
		reason = "none"
	}
	m.sendsTotal.WithLabelValues(status, reason).Inc()
	m.sendLatency.WithLabelValues(status).Observe(seconds)
}
