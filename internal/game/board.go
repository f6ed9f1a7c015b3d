// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

// FamilyMember identifies one of a player's pawns.
type FamilyMember string

// Family members. Colored members take the value of the matching die; the
// neutral member has value zero.
const (
	MemberBlack   FamilyMember = "black"
	MemberWhite   FamilyMember = "white"
	MemberOrange  FamilyMember = "orange"
	MemberNeutral FamilyMember = "neutral"
)

// FamilyMembers lists every member in a fixed order.
var FamilyMembers = []FamilyMember{MemberBlack, MemberWhite, MemberOrange, MemberNeutral}

// Valid reports whether m is a known family member.
func (m FamilyMember) Valid() bool {
	switch m {
	case MemberBlack, MemberWhite, MemberOrange, MemberNeutral:
		return true
	}
	return false
}

// Occupant records who placed which member on a space.
type Occupant struct {
	Player string       `json:"player"`
	Member FamilyMember `json:"member"`
}

// Slot is one tower floor with the card currently offered there.
type Slot struct {
	Force    int       `json:"force"`
	Surplus  Goods     `json:"surplus,omitempty"`
	Card     *Card     `json:"card,omitempty"`
	Occupant *Occupant `json:"occupant,omitempty"`
}

// Tower sells one card type.
type Tower struct {
	Type  CardType `json:"type"`
	Slots []Slot   `json:"slots"`
}

// OccupiedBy reports whether player has a member anywhere in the tower.
func (t *Tower) OccupiedBy(player string) bool {
	for _, s := range t.Slots {
		if s.Occupant != nil && s.Occupant.Player == player {
			return true
		}
	}
	return false
}

// OccupiedByOthers reports whether any player other than player has a
// member in the tower.
func (t *Tower) OccupiedByOthers(player string) bool {
	for _, s := range t.Slots {
		if s.Occupant != nil && s.Occupant.Player != player {
			return true
		}
	}
	return false
}

// Space is a single-occupancy action space.
type Space struct {
	Surplus  Goods     `json:"surplus,omitempty"`
	Occupant *Occupant `json:"occupant,omitempty"`
}

// WorkArea is a harvest or production area: one single space and one
// composite space with unlimited occupancy.
type WorkArea struct {
	Single    Space      `json:"single"`
	Composite []Occupant `json:"composite,omitempty"`
}

// Dice holds the current round's die values.
type Dice struct {
	Black  int  `json:"black"`
	White  int  `json:"white"`
	Orange int  `json:"orange"`
	Rolled bool `json:"rolled"`
}

// Value returns the force a member contributes before servants and bonuses.
func (d Dice) Value(m FamilyMember) int {
	switch m {
	case MemberBlack:
		return d.Black
	case MemberWhite:
		return d.White
	case MemberOrange:
		return d.Orange
	}
	return 0
}

// Board is the shared game board.
type Board struct {
	Towers     []Tower    `json:"towers"`
	Harvest    WorkArea   `json:"harvest"`
	Production WorkArea   `json:"production"`
	Market     []Space    `json:"market"`
	Council    []Occupant `json:"council,omitempty"`
	Dice       Dice       `json:"dice"`
}

// NewBoard lays out an empty board according to rules.
func NewBoard(rules Rules) Board {
	b := Board{}
	for _, t := range CardTypes {
		tower := Tower{Type: t}
		for _, f := range rules.Floors[t] {
			tower.Slots = append(tower.Slots, Slot{Force: f.Force, Surplus: f.Surplus})
		}
		b.Towers = append(b.Towers, tower)
	}
	for _, surplus := range rules.Market {
		b.Market = append(b.Market, Space{Surplus: surplus})
	}
	return b
}

// Tower returns the tower selling t.
func (b *Board) Tower(t CardType) *Tower {
	for i := range b.Towers {
		if b.Towers[i].Type == t {
			return &b.Towers[i]
		}
	}
	return nil
}

// Area returns the harvest or production area.
func (b *Board) Area(kind EffectKind) *WorkArea {
	if kind == EffectProduction {
		return &b.Production
	}
	return &b.Harvest
}

// Clear removes every member from the board and resets the dice.
func (b *Board) Clear() {
	for i := range b.Towers {
		for j := range b.Towers[i].Slots {
			b.Towers[i].Slots[j].Occupant = nil
			b.Towers[i].Slots[j].Card = nil
		}
	}
	b.Harvest = WorkArea{}
	b.Production = WorkArea{}
	for i := range b.Market {
		b.Market[i].Occupant = nil
	}
	b.Council = nil
	b.Dice = Dice{}
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	out := b
	out.Towers = make([]Tower, len(b.Towers))
	for i, t := range b.Towers {
		out.Towers[i] = Tower{Type: t.Type, Slots: make([]Slot, len(t.Slots))}
		for j, s := range t.Slots {
			out.Towers[i].Slots[j] = Slot{
				Force:    s.Force,
				Surplus:  s.Surplus,
				Card:     s.Card,
				Occupant: cloneOccupant(s.Occupant),
			}
		}
	}
	out.Harvest = b.Harvest.clone()
	out.Production = b.Production.clone()
	out.Market = make([]Space, len(b.Market))
	for i, s := range b.Market {
		out.Market[i] = Space{Surplus: s.Surplus, Occupant: cloneOccupant(s.Occupant)}
	}
	out.Council = append([]Occupant(nil), b.Council...)
	return out
}

func (a WorkArea) clone() WorkArea {
	return WorkArea{
		Single:    Space{Surplus: a.Single.Surplus, Occupant: cloneOccupant(a.Single.Occupant)},
		Composite: append([]Occupant(nil), a.Composite...),
	}
}

func cloneOccupant(o *Occupant) *Occupant {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
