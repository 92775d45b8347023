package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TransportConnectivityStatus records the driver channel state.
	// 1 = Connected, 0 = Disconnected (Connecting, Reconnecting, Exhausted)
	TransportConnectivityStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetpeer_transport_connectivity_status",
			Help: "The connectivity status of the driver channel (1=Connected, 0=Disconnected).",
		},
		[]string{"kind"}, // kind: simulated/websocket/mqtt
	)

	// TransportReconnectAttemptsTotal counts scheduled reconnect attempts.
	TransportReconnectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_transport_reconnect_attempts_total",
			Help: "Total number of reconnect attempts of the driver channel.",
		},
		[]string{"kind"},
	)

	// TelemetrySamplesTotal counts location samples applied to the store.
	TelemetrySamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_telemetry_samples_total",
			Help: "Total number of driver location samples applied to the store.",
		},
		[]string{"status"},
	)

	// CommandSentTotal counts commands handed to the channel.
	CommandSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_command_sent_total",
			Help: "Total number of commands sent to drivers.",
		},
		[]string{"type", "result"}, // result: sent/dropped
	)

	// DeliveryActionsTotal counts delivery actions applied to the store.
	DeliveryActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_delivery_actions_total",
			Help: "Total number of delivery actions applied.",
		},
		[]string{"action"},
	)

	// ActiveDeliveries tracks the size of the active delivery index.
	ActiveDeliveries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetpeer_active_deliveries",
			Help: "Number of deliveries that are assigned, in progress or paused.",
		},
	)

	// ActionLatency records how long a service action takes end to end.
	ActionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetpeer_action_latency_seconds",
			Help:    "Latency of delivery and driver actions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"}, // kind: delivery/driver
	)

	// JobRunsTotal counts background job executions.
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_job_runs_total",
			Help: "Total number of background job runs.",
		},
		[]string{"job", "result"},
	)

	// GatewayClients is the number of peers attached to a simulator gateway.
	GatewayClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetpeer_gateway_clients",
			Help: "Number of connected simulator gateway clients.",
		},
		[]string{"kind"},
	)

	// GatewayMessagesTotal counts frames a simulator gateway handled.
	GatewayMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpeer_gateway_messages_total",
			Help: "Total number of gateway messages by direction and result.",
		},
		[]string{"kind", "direction", "result"}, // direction: in/out
	)
)

// init registers the collectors with the default registry served on /metrics.
func init() {
	prometheus.MustRegister(TransportConnectivityStatus)
	prometheus.MustRegister(TransportReconnectAttemptsTotal)
	prometheus.MustRegister(TelemetrySamplesTotal)
	prometheus.MustRegister(CommandSentTotal)
	prometheus.MustRegister(DeliveryActionsTotal)
	prometheus.MustRegister(ActiveDeliveries)
	prometheus.MustRegister(ActionLatency)
	prometheus.MustRegister(JobRunsTotal)
	prometheus.MustRegister(GatewayClients)
	prometheus.MustRegister(GatewayMessagesTotal)
}

// BoolToFloat converts a connection flag to a gauge value.
func BoolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
