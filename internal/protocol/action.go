// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package protocol defines the messages exchanged between clients and the
// match server: action requests, notifications and their wire envelopes.
package protocol

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/game"
)

// Category separates a player's primary per-turn actions from the
// interstitial decisions their effects trigger.
type Category string

// Action categories.
const (
	CategoryStandard  Category = "standard"
	CategoryImmediate Category = "immediate"
)

// ActionKind is the wire tag of an Action variant.
type ActionKind string

// Action kinds.
const (
	KindPlacement          ActionKind = "placement"
	KindRollDice           ActionKind = "roll_dice"
	KindLeaderActivation   ActionKind = "leader_activation"
	KindTerminateRound     ActionKind = "terminate_round"
	KindImmediateChoice    ActionKind = "immediate_choice"
	KindImmediatePlacement ActionKind = "immediate_placement"
)

// Action is an immutable action request. The variants are value types so
// two requests compare equal with ==.
type Action interface {
	Kind() ActionKind
	Category() Category
	// Sender is the username the action was issued for.
	Sender() string
	// WithSender returns a copy of the action attributed to username.
	WithSender(username string) Action
	isAction()
}

// Target is the board area a placement goes to.
type Target string

// Placement targets.
const (
	TargetTower      Target = "tower"
	TargetHarvest    Target = "harvest"
	TargetProduction Target = "production"
	TargetMarket     Target = "market"
	TargetCouncil    Target = "council"
)

// Work area indexes for harvest and production placements.
const (
	AreaSingle    = 0
	AreaComposite = 1
)

// Placement puts a family member on the board.
type Placement struct {
	Player string            `json:"player"`
	Target Target            `json:"target"`
	Tower  game.CardType     `json:"tower,omitempty"`
	Index  int               `json:"index"`
	Member game.FamilyMember `json:"member"`
	// Servants are spent to raise the member's force one for one.
	Servants   int `json:"servants,omitempty"`
	CostOption int `json:"cost_option,omitempty"`
}

// RollDice rolls the round's dice.
type RollDice struct {
	Player string `json:"player"`
}

// LeaderActivation activates one of the player's leader cards.
type LeaderActivation struct {
	Player string `json:"player"`
	Leader int    `json:"leader"`
}

// TerminateRound ends the player's turn.
type TerminateRound struct {
	Player string `json:"player"`
}

// Decline is the ImmediateChoice selection that passes on an optional
// decision: a production conversion or a take-card effect.
const Decline = -1

// ImmediateChoice answers a council privilege or conversion decision, or
// declines a take-card decision with Selection set to Decline.
type ImmediateChoice struct {
	Player    string             `json:"player"`
	Immediate game.ImmediateKind `json:"immediate"`
	Selection int                `json:"selection"`
}

// ImmediatePlacement answers a take-card decision.
type ImmediatePlacement struct {
	Player     string        `json:"player"`
	Tower      game.CardType `json:"tower"`
	Index      int           `json:"index"`
	Servants   int           `json:"servants,omitempty"`
	CostOption int           `json:"cost_option,omitempty"`
}

func (Placement) Kind() ActionKind          { return KindPlacement }
func (RollDice) Kind() ActionKind           { return KindRollDice }
func (LeaderActivation) Kind() ActionKind   { return KindLeaderActivation }
func (TerminateRound) Kind() ActionKind     { return KindTerminateRound }
func (ImmediateChoice) Kind() ActionKind    { return KindImmediateChoice }
func (ImmediatePlacement) Kind() ActionKind { return KindImmediatePlacement }

func (Placement) Category() Category          { return CategoryStandard }
func (RollDice) Category() Category           { return CategoryStandard }
func (LeaderActivation) Category() Category   { return CategoryStandard }
func (TerminateRound) Category() Category     { return CategoryStandard }
func (ImmediateChoice) Category() Category    { return CategoryImmediate }
func (ImmediatePlacement) Category() Category { return CategoryImmediate }

func (a Placement) Sender() string          { return a.Player }
func (a RollDice) Sender() string           { return a.Player }
func (a LeaderActivation) Sender() string   { return a.Player }
func (a TerminateRound) Sender() string     { return a.Player }
func (a ImmediateChoice) Sender() string    { return a.Player }
func (a ImmediatePlacement) Sender() string { return a.Player }

func (a Placement) WithSender(u string) Action          { a.Player = u; return a }
func (a RollDice) WithSender(u string) Action           { a.Player = u; return a }
func (a LeaderActivation) WithSender(u string) Action   { a.Player = u; return a }
func (a TerminateRound) WithSender(u string) Action     { a.Player = u; return a }
func (a ImmediateChoice) WithSender(u string) Action    { a.Player = u; return a }
func (a ImmediatePlacement) WithSender(u string) Action { a.Player = u; return a }

func (Placement) isAction()          {}
func (RollDice) isAction()           {}
func (LeaderActivation) isAction()   {}
func (TerminateRound) isAction()     {}
func (ImmediateChoice) isAction()    {}
func (ImmediatePlacement) isAction() {}

// ActionEnvelope is the wire form of an Action.
type ActionEnvelope struct {
	Kind    ActionKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeAction wraps an action in its envelope.
func EncodeAction(a Action) (ActionEnvelope, error) {
	if a == nil {
		return ActionEnvelope{}, oops.Code("ACTION_ENCODE_FAILED").Errorf("nil action")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return ActionEnvelope{}, oops.Code("ACTION_ENCODE_FAILED").With("kind", a.Kind()).Wrap(err)
	}
	return ActionEnvelope{Kind: a.Kind(), Payload: payload}, nil
}

// DecodeAction unwraps an envelope into its Action variant.
func DecodeAction(env ActionEnvelope) (Action, error) {
	switch env.Kind {
	case KindPlacement:
		return decodeAs[Placement](env)
	case KindRollDice:
		return decodeAs[RollDice](env)
	case KindLeaderActivation:
		return decodeAs[LeaderActivation](env)
	case KindTerminateRound:
		return decodeAs[TerminateRound](env)
	case KindImmediateChoice:
		return decodeAs[ImmediateChoice](env)
	case KindImmediatePlacement:
		return decodeAs[ImmediatePlacement](env)
	}
	return nil, oops.Code("UNKNOWN_ACTION").With("kind", env.Kind).Errorf("unknown action kind %q", env.Kind)
}

func decodeAs[T Action](env ActionEnvelope) (Action, error) {
	var a T
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return nil, oops.Code("ACTION_DECODE_FAILED").With("kind", env.Kind).Wrap(err)
		}
	}
	return a, nil
}
