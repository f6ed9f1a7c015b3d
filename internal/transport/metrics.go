// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package transport

import "github.com/prometheus/client_golang/prometheus"

// Transport label values.
const (
	LabelGRPC   = "grpc"
	LabelSocket = "socket"
)

// Connections tracks open client connections per binding.
var Connections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "lorenzo_transport_connections",
		Help: "Open client connections by transport",
	},
	[]string{"transport"},
)

// Notifications counts notifications written to clients per binding.
var Notifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lorenzo_transport_notifications_total",
		Help: "Notifications delivered to clients by transport and kind",
	},
	[]string{"transport", "kind"},
)

// RegisterMetrics registers the transport collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Connections, Notifications)
}
