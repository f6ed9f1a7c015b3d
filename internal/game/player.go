// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

// LeaderState is a leader card held by a player.
type LeaderState struct {
	Leader    Leader `json:"leader"`
	Activated bool   `json:"activated"`
}

// Player is one seat in a session.
type Player struct {
	Username string `json:"username"`
	Goods    Goods  `json:"goods"`

	// Cards holds owned development cards per type in acquisition order.
	Cards     map[CardType][]Card `json:"cards"`
	Leaders   []LeaderState       `json:"leaders,omitempty"`
	BonusTile BonusTile           `json:"bonus_tile"`

	// Used lists family members already placed this round.
	Used []FamilyMember `json:"used,omitempty"`
	Bans []Ban          `json:"bans,omitempty"`

	Disabled bool `json:"disabled"`
}

// NewPlayer creates a player with the given starting goods and tile.
func NewPlayer(username string, goods Goods, tile BonusTile) *Player {
	return &Player{
		Username:  username,
		Goods:     goods,
		Cards:     make(map[CardType][]Card, len(CardTypes)),
		BonusTile: tile,
	}
}

// MemberUsed reports whether m has been placed this round.
func (p *Player) MemberUsed(m FamilyMember) bool {
	for _, u := range p.Used {
		if u == m {
			return true
		}
	}
	return false
}

// CardCount returns the number of owned cards of type t.
func (p *Player) CardCount(t CardType) int {
	return len(p.Cards[t])
}

// Banned reports whether the player is excommunicated for card type t.
func (p *Player) Banned(t CardType) bool {
	for _, b := range p.Bans {
		if b.CardType == t {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the player.
func (p *Player) Clone() *Player {
	c := *p
	c.Cards = make(map[CardType][]Card, len(p.Cards))
	for t, cards := range p.Cards {
		c.Cards[t] = append([]Card(nil), cards...)
	}
	c.Leaders = append([]LeaderState(nil), p.Leaders...)
	c.Used = append([]FamilyMember(nil), p.Used...)
	c.Bans = append([]Ban(nil), p.Bans...)
	return &c
}
