// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package core

import "github.com/prometheus/client_golang/prometheus"

// Authentication result labels.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultError     = "error"
)

// SessionsActive tracks connected clients across every transport.
var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "lorenzo_sessions_active",
		Help: "Number of connected client sessions",
	},
)

// AuthAttempts counts logins and registrations by result.
var AuthAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lorenzo_auth_attempts_total",
		Help: "Total number of login and registration attempts by operation and result",
	},
	[]string{"operation", "result"},
)

// LobbyWaiting tracks authenticated players waiting for a match.
var LobbyWaiting = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "lorenzo_lobby_waiting",
		Help: "Number of players waiting in the lobby",
	},
)

// MatchesStarted counts matches created by the lobby.
var MatchesStarted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "lorenzo_matches_started_total",
		Help: "Total number of matches started",
	},
)

// RegisterMetrics registers server metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SessionsActive)
	reg.MustRegister(AuthAttempts)
	reg.MustRegister(LobbyWaiting)
	reg.MustRegister(MatchesStarted)
}
