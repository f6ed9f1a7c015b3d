// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

// CardType identifies a development card family and the tower that sells it.
type CardType string

// Development card types, in tower order.
const (
	CardTerritory CardType = "territory"
	CardBuilding  CardType = "building"
	CardCharacter CardType = "character"
	CardVenture   CardType = "venture"
)

// CardTypes lists every card type in tower order.
var CardTypes = []CardType{CardTerritory, CardBuilding, CardCharacter, CardVenture}

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	switch t {
	case CardTerritory, CardBuilding, CardCharacter, CardVenture:
		return true
	}
	return false
}

// EffectKind names the action an effect grants or a bonus applies to.
type EffectKind string

// Effect kinds.
const (
	EffectHarvest    EffectKind = "harvest"
	EffectProduction EffectKind = "production"
	EffectCard       EffectKind = "card"
)

// Card is a development card.
type Card struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Type   CardType `json:"type" yaml:"type" jsonschema:"enum=territory,enum=building,enum=character,enum=venture"`
	Period int      `json:"period" yaml:"period" jsonschema:"minimum=0,maximum=3"`

	// Costs lists alternative payment options. An empty list means the
	// card is free.
	Costs     []Cost    `json:"costs,omitempty" yaml:"costs,omitempty"`
	Immediate Effect    `json:"immediate,omitempty" yaml:"immediate,omitempty"`
	Permanent Permanent `json:"permanent,omitempty" yaml:"permanent,omitempty"`
}

// Cost is one payment option for a card.
type Cost struct {
	Resources        Goods `json:"resources,omitempty" yaml:"resources,omitempty"`
	MilitaryRequired int   `json:"military_required,omitempty" yaml:"military_required,omitempty"`
	MilitaryMalus    int   `json:"military_malus,omitempty" yaml:"military_malus,omitempty"`
}

// Effect is granted once, when a card is taken.
type Effect struct {
	Surplus Goods         `json:"surplus,omitempty" yaml:"surplus,omitempty"`
	Action  *EffectAction `json:"action,omitempty" yaml:"action,omitempty"`
}

// EffectAction is an extra action granted by an immediate effect.
type EffectAction struct {
	Kind  EffectKind `json:"kind" yaml:"kind" jsonschema:"enum=harvest,enum=production,enum=card"`
	Force int        `json:"force" yaml:"force"`
	// CardType restricts a card action to one tower. Empty allows any.
	CardType CardType `json:"card_type,omitempty" yaml:"card_type,omitempty"`
	Discount Goods    `json:"discount,omitempty" yaml:"discount,omitempty"`
}

// Permanent holds the lasting effect of an owned card. Which fields apply
// depends on the card type.
type Permanent struct {
	// MinForce and Surplus drive territory harvests and building productions.
	MinForce    int          `json:"min_force,omitempty" yaml:"min_force,omitempty"`
	Surplus     Goods        `json:"surplus,omitempty" yaml:"surplus,omitempty"`
	Conversions []Conversion `json:"conversions,omitempty" yaml:"conversions,omitempty"`

	Bonus *ForceBonus `json:"bonus,omitempty" yaml:"bonus,omitempty"`

	// Victory is awarded at final scoring for venture cards.
	Victory int `json:"victory,omitempty" yaml:"victory,omitempty"`
}

// Conversion trades goods during a production.
type Conversion struct {
	From Goods `json:"from" yaml:"from"`
	To   Goods `json:"to" yaml:"to"`
}

// ForceBonus is a character card's permanent modifier.
type ForceBonus struct {
	Target   EffectKind `json:"target" yaml:"target" jsonschema:"enum=harvest,enum=production,enum=card"`
	CardType CardType   `json:"card_type,omitempty" yaml:"card_type,omitempty"`
	Force    int        `json:"force,omitempty" yaml:"force,omitempty"`
	Discount Goods      `json:"discount,omitempty" yaml:"discount,omitempty"`
}

// Applies reports whether the bonus modifies an action of the given kind.
// cardType is only consulted for card actions.
func (b *ForceBonus) Applies(kind EffectKind, cardType CardType) bool {
	if b == nil || b.Target != kind {
		return false
	}
	if kind == EffectCard && b.CardType != "" {
		return b.CardType == cardType
	}
	return true
}

// Leader is a leader card. Its surplus is granted once, on activation.
type Leader struct {
	ID            string           `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	Requires      Goods            `json:"requires,omitempty" yaml:"requires,omitempty"`
	RequiresCards map[CardType]int `json:"requires_cards,omitempty" yaml:"requires_cards,omitempty"`
	Surplus       Goods            `json:"surplus" yaml:"surplus"`
}

// BonusTile is a player's personal harvest/production tile.
type BonusTile struct {
	ID              string `json:"id" yaml:"id"`
	HarvestForce    int    `json:"harvest_force" yaml:"harvest_force"`
	Harvest         Goods  `json:"harvest" yaml:"harvest"`
	ProductionForce int    `json:"production_force" yaml:"production_force"`
	Production      Goods  `json:"production" yaml:"production"`
}

// Ban is an excommunication penalty: no victory points from the given
// card type at final scoring.
type Ban struct {
	Period   int      `json:"period" yaml:"period" jsonschema:"minimum=1,maximum=3"`
	CardType CardType `json:"card_type" yaml:"card_type"`
}
