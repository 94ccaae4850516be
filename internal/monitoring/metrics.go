package monitoring

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters, gauges and histograms for enrichment and the
// work queues. A nil *Metrics is a no-op.
type Metrics struct {
	enrichments   *prometheus.CounterVec
	sourceLatency *prometheus.HistogramVec
	sourceErrors  *prometheus.CounterVec
	queueTickets  *prometheus.CounterVec
	exhausted     *prometheus.GaugeVec
	webhooks      *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg, or the default registerer
// when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdr",
			Subsystem: "enrich",
			Name:      "runs_total",
			Help:      "Enrichment runs by pipeline and outcome",
		}, []string{"pipeline", "outcome"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdr",
			Subsystem: "enrich",
			Name:      "source_latency_seconds",
			Help:      "Latency of third-party source calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdr",
			Subsystem: "enrich",
			Name:      "source_errors_total",
			Help:      "Failed third-party source calls",
		}, []string{"source"}),
		queueTickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdr",
			Subsystem: "queue",
			Name:      "tickets_total",
			Help:      "Queue tickets by queue and result (claimed, succeeded, failed)",
		}, []string{"queue", "result"}),
		exhausted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sdr",
			Subsystem: "queue",
			Name:      "exhausted_tickets",
			Help:      "Tickets that reached the attempt limit",
		}, []string{"queue"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdr",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Inbound webhooks by source and status",
		}, []string{"source", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.enrichments, m.sourceLatency, m.sourceErrors, m.queueTickets, m.exhausted, m.webhooks)
	return m
}

func (m *Metrics) ObserveEnrichment(pipeline, outcome string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(pipeline, outcome).Inc()
}

func (m *Metrics) ObserveSource(source string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.sourceLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		m.sourceErrors.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) AddQueueTickets(queue, result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.queueTickets.WithLabelValues(queue, result).Add(float64(n))
}

func (m *Metrics) SetExhausted(queue string, n int) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(queue).Set(float64(n))
}

func (m *Metrics) ObserveWebhook(source, status string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(source, status).Inc()
}
