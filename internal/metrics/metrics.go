// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FragmentsSentTotal counts fragments sent per stream and link.
	FragmentsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_replay_fragments_sent_total",
			Help: "Total number of fragments sent",
		},
		[]string{"stream", "link"},
	)

	// FragmentsDroppedTotal counts fragments dropped on staging-buffer overflow.
	FragmentsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_replay_fragments_dropped_total",
			Help: "Total number of fragments dropped from the staging buffer",
		},
		[]string{"stream"},
	)

	// ThrottleRateMbps tracks the last estimated send rate.
	ThrottleRateMbps = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_replay_throttle_rate_mbps",
			Help: "Estimated sliding-window send rate in Mbit/s",
		},
		[]string{"stream"},
	)

	// RTTSeconds measures observed round-trip time.
	RTTSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_replay_rtt_seconds",
			Help:    "Observed round-trip time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"stream"},
	)

	// OutageRate tracks the fraction of RTT budget consumed by outage.
	OutageRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_replay_outage_rate",
			Help: "Outage rate: overage time over target RTT budget",
		},
		[]string{"stream"},
	)

	// MACQueueDepth tracks per-interface, per-AC MAC queue depth.
	MACQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_replay_mac_queue_depth",
			Help: "MAC driver queue depth in packets, by access category",
		},
		[]string{"interface", "ac"},
	)

	// LinkBlocked tracks whether a stream's link is currently blocked.
	LinkBlocked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_replay_link_blocked",
			Help: "1 if the most recent send on this link returned would-block",
		},
		[]string{"stream", "link"},
	)

	// StreamStatus tracks the lifecycle status of a stream worker.
	StreamStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_replay_stream_status",
			Help: "Current status of stream workers (0=stopped, 1=running, 2=error)",
		},
		[]string{"stream"},
	)

	// ReporterErrorsTotal counts statistics-reporter shipping errors.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_replay_reporter_errors_total",
			Help: "Total number of statistics reporter errors",
		},
		[]string{"reporter", "error_type"},
	)
)

// StreamStatusValue represents stream status as a numeric gauge value.
const (
	StreamStatusStopped = 0
	StreamStatusRunning = 1
	StreamStatusError   = 2
)
