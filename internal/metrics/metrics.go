package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_connections_active",
			Help: "Currently connected clients",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_connections_total",
			Help: "Total accepted connections",
		},
	)

	// Pipeline metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_messages_sent_total",
			Help: "Messages accepted by the send pipeline",
		},
		[]string{"channel_kind"}, // "room" or "dm"
	)

	MessagesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_messages_failed_total",
			Help: "Sends that failed at the store",
		},
	)

	EventsBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_events_broadcast_total",
			Help: "Events fanned out to channel members",
		},
	)

	// Moderation metrics
	ModerationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_moderation_ops_total",
			Help: "Executed moderation operations",
		},
		[]string{"op"}, // "edit", "delete", "unsend", "clear"
	)

	// Store metrics
	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatrelay_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1},
		},
	)
)
