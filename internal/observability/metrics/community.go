package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommunityRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_requests_total",
			Help: "Total number of community HTTP requests",
		},
		[]string{"method", "path"},
	)

	CommunityRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "community_requests_in_flight",
			Help: "Number of community HTTP requests currently being processed",
		},
	)

	CommunityRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "community_request_duration_seconds",
			Help:    "Duration of community HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JWTValidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jwt_validations_total",
			Help: "Total number of JWT validations",
		},
	)

	JWTValidationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jwt_validations_failed_total",
			Help: "Total number of failed JWT validations by reason",
		},
		[]string{"reason"},
	)

	CommunityAuthResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_auth_results_total",
			Help: "Connection authentication outcomes",
		},
		[]string{"result"},
	)

	CommunityConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "community_websocket_connections_active",
			Help: "Number of joined community WebSocket connections",
		},
	)

	CommunityConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "community_websocket_connections_total",
			Help: "Total number of accepted community WebSocket connections",
		},
	)

	CommunityDisconnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_websocket_disconnections_total",
			Help: "Total number of community WebSocket disconnections by reason",
		},
		[]string{"reason"},
	)

	CommunityRegistrationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "community_registration_failures_total",
			Help: "Total number of connections refused because the group could not be joined",
		},
	)

	CommunityMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "community_messages_received_total",
			Help: "Total number of inbound messages relayed to the group",
		},
	)

	CommunityMessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_messages_rejected_total",
			Help: "Total number of inbound frames not relayed, by reason",
		},
		[]string{"reason"},
	)

	CommunityBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_broadcasts_total",
			Help: "Total number of broadcasts published, by transport",
		},
		[]string{"transport"},
	)

	CommunityDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "community_deliveries_total",
			Help: "Total number of messages handed to member outbound queues",
		},
	)

	CommunityDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_delivery_failures_total",
			Help: "Total number of per-member delivery failures",
		},
		[]string{"reason"},
	)

	CommunityFanoutDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "community_fanout_duration_seconds",
			Help:    "Duration of a local group fan-out in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	PubSubMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_messages_received_total",
			Help: "Total number of pub/sub messages received from the broker",
		},
		[]string{"channel"},
	)

	PubSubErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubsub_errors_total",
			Help: "Total number of pub/sub publish or decode errors",
		},
		[]string{"operation"},
	)

	DirectoryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_lookups_total",
			Help: "User directory lookups by outcome",
		},
		[]string{"outcome"},
	)
)
