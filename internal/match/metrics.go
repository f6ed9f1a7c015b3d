// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package match

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

// Outcome labels for action metrics.
const (
	OutcomePerformed = "performed"
	OutcomeRefused   = "refused"
)

// ActionsTotal counts resolved actions.
// Use RegisterMetrics to register this with a Prometheus registry.
var ActionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lorenzo_match_actions_total",
		Help: "Total number of player actions by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

// TurnTimeouts counts turns that ended because the action window lapsed.
var TurnTimeouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "lorenzo_match_turn_timeouts_total",
		Help: "Total number of expired turn timers",
	},
)

// ActiveMatches tracks running match controllers.
var ActiveMatches = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "lorenzo_match_active",
		Help: "Number of matches in progress",
	},
)

// RegisterMetrics registers match metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ActionsTotal)
	reg.MustRegister(TurnTimeouts)
	reg.MustRegister(ActiveMatches)
}

// RecordAction increments the action counter.
func RecordAction(kind protocol.ActionKind, outcome string) {
	ActionsTotal.WithLabelValues(string(kind), outcome).Inc()
}

// RecordTimeout increments the timeout counter.
func RecordTimeout() {
	TurnTimeouts.Inc()
}
