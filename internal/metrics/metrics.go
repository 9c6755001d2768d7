// ABOUTME: Prometheus collectors for the relay: agent calls, tickets, viewers and hub traffic.
// ABOUTME: Collectors register with the default registry and are served by promhttp.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "silverfox"

// Ticket outcomes.
const (
	OutcomeResolved     = "resolved"
	OutcomeDuplicate    = "duplicate"
	OutcomeTimeout      = "timeout"
	OutcomeSubmitFailed = "submit_failed"
	OutcomeCancelled    = "cancelled"
)

var (
	// AgentRequestDuration tracks OpenClaw HTTP calls by operation and outcome.
	AgentRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_request_duration_seconds",
			Help:      "Duration of requests to the OpenClaw runtime",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "outcome"},
	)

	// ActiveTickets tracks reply tickets that are still polling.
	ActiveTickets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tickets_active",
			Help:      "Number of submitted messages still awaiting a reply",
		},
	)

	// TicketsTotal counts finished tickets by outcome.
	TicketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_total",
			Help:      "Total number of submitted messages by final outcome",
		},
		[]string{"outcome"},
	)

	// ReplyLatency tracks time from submission to a persisted reply.
	ReplyLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_seconds",
			Help:      "Time between submitting a message and persisting its reply",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 30},
		},
	)

	// ViewersConnected tracks open WebSocket viewers.
	ViewersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_connected",
			Help:      "Number of connected WebSocket viewers",
		},
	)

	// EventsBroadcast counts events fanned out to viewers by type.
	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_broadcast_total",
			Help:      "Total number of events broadcast to viewers",
		},
		[]string{"type"},
	)

	// FramesDropped counts frames discarded because a viewer's buffer was full.
	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped for slow viewers",
		},
	)

	// FingerprintEvictions counts keys dropped from the reply fingerprint set.
	FingerprintEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fingerprint_evictions_total",
			Help:      "Total number of reply fingerprints evicted",
		},
	)
)

// ObserveAgentRequest records one OpenClaw call.
func ObserveAgentRequest(operation string, ok bool, started time.Time) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	AgentRequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(started).Seconds())
}

// RecordTicketStarted increments the active ticket gauge.
func RecordTicketStarted() {
	ActiveTickets.Inc()
}

// RecordTicketFinished decrements the active ticket gauge and counts the outcome.
func RecordTicketFinished(outcome string) {
	ActiveTickets.Dec()
	TicketsTotal.WithLabelValues(outcome).Inc()
}

// RecordSubmitFailed counts a message that never got a ticket.
func RecordSubmitFailed() {
	TicketsTotal.WithLabelValues(OutcomeSubmitFailed).Inc()
}

// RecordEvictions adds n to the fingerprint eviction counter.
func RecordEvictions(n int) {
	FingerprintEvictions.Add(float64(n))
}
