// Package metrics exposes dispatch counters through Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sms"

// Prometheus records dispatch activity in Prometheus collectors.
type Prometheus struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	recipients      *prometheus.CounterVec
	messages        *prometheus.CounterVec
	segments        *prometheus.HistogramVec
	queries         *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_attempts_total",
			Help:      "Transport submit attempts by outcome kind.",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_attempt_duration_seconds",
			Help:      "Latency of transport submit attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipients_total",
			Help:      "Recipients processed by final outcome and attempt count.",
		}, []string{"outcome", "attempts"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_planned_total",
			Help:      "Messages classified and segmented, by alphabet.",
		}, []string{"alphabet"}),
		segments: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_segments",
			Help:      "Segments per planned message.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 10},
		}, []string{"alphabet"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_queries_total",
			Help:      "Delivery status and cost lookups by outcome kind.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{p.attempts, p.attemptDuration, p.recipients, p.messages, p.segments, p.queries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveAttempt records one submit attempt. outcome is "ok" or an error kind.
func (p *Prometheus) ObserveAttempt(outcome string, d time.Duration) {
	p.attempts.WithLabelValues(outcome).Inc()
	p.attemptDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRecipient records the final outcome of one recipient.
func (p *Prometheus) ObserveRecipient(outcome string, attempts int) {
	p.recipients.WithLabelValues(outcome, strconv.Itoa(attempts)).Inc()
}

// ObserveMessage records a planned message.
func (p *Prometheus) ObserveMessage(alphabet string, segments int) {
	p.messages.WithLabelValues(alphabet).Inc()
	p.segments.WithLabelValues(alphabet).Observe(float64(segments))
}

// ObserveQuery records a tracking lookup.
func (p *Prometheus) ObserveQuery(outcome string) {
	p.queries.WithLabelValues(outcome).Inc()
}
