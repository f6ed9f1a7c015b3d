// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

// ImmediateKind names a decision an effect requires from its player before
// the triggering standard action completes.
type ImmediateKind string

// Immediate decision kinds.
const (
	// ImmediatePrivilege asks the player to pick a council privilege.
	ImmediatePrivilege ImmediateKind = "council_privilege"
	// ImmediateTakeCard lets the player take a tower card without a member.
	ImmediateTakeCard ImmediateKind = "take_card"
	// ImmediateConversion asks which of a building's conversions to run.
	ImmediateConversion ImmediateKind = "conversion"
)

// Immediate is a pending immediate decision.
type Immediate struct {
	Kind ImmediateKind `json:"kind"`
	// Options is the number of valid selections for choice decisions.
	Options int `json:"options,omitempty"`

	// Take-card parameters. An empty CardType allows any tower.
	CardType CardType `json:"card_type,omitempty"`
	Force    int      `json:"force,omitempty"`
	Discount Goods    `json:"discount,omitempty"`

	// CardID is the building whose conversions are offered.
	CardID string `json:"card_id,omitempty"`
}

// Standing is one line of the final ranking.
type Standing struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}
