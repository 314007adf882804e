package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutor_app_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutor_app_ws_channels",
			Help: "Current number of subscribed logical channels.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_app_ws_messages_delivered_total",
			Help: "Total websocket events delivered to clients.",
		},
	)
	wsMessagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_app_ws_messages_dropped_total",
			Help: "Events dropped because a client send buffer was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsChannels, wsMessagesDelivered, wsMessagesDropped)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setChannels(count int) {
	wsChannels.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func incDropped() {
	wsMessagesDropped.Inc()
}
