// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

import (
	"math/rand/v2"
)

// Session is the authoritative state of one match.
type Session struct {
	Players []*Player `json:"players"`
	Board   Board     `json:"board"`

	Period int `json:"period"`
	Round  int `json:"round"`
	// Turn counts turns taken in the current round; Order[Turn%len(Order)]
	// is the active player.
	Turn  int      `json:"turn"`
	Order []string `json:"order"`
	// Placed is set once the active player has placed a member this turn.
	Placed bool `json:"placed"`
	Ended  bool `json:"ended"`
}

// NewSession seats players in the given order and deals leaders and bonus
// tiles. The first round is not started.
func NewSession(cat Catalog, usernames []string, d *Dealer) *Session {
	rules := cat.Rules()
	s := &Session{
		Board: NewBoard(rules),
		Order: append([]string(nil), usernames...),
	}

	leaders := d.shuffledLeaders(cat.Leaders())
	tiles := cat.BonusTiles()
	for seat, name := range usernames {
		var tile BonusTile
		if len(tiles) > 0 {
			tile = tiles[seat%len(tiles)]
		}
		p := NewPlayer(name, rules.StartingGoodsFor(seat), tile)
		for i := 0; i < rules.LeadersPerPlayer && len(leaders) > 0; i++ {
			p.Leaders = append(p.Leaders, LeaderState{Leader: leaders[0]})
			leaders = leaders[1:]
		}
		s.Players = append(s.Players, p)
	}
	return s
}

// Player returns the named player or nil.
func (s *Session) Player(username string) *Player {
	for _, p := range s.Players {
		if p.Username == username {
			return p
		}
	}
	return nil
}

// CurrentPlayer returns the username of the player whose turn it is.
func (s *Session) CurrentPlayer() string {
	if len(s.Order) == 0 {
		return ""
	}
	return s.Order[s.Turn%len(s.Order)]
}

// TurnsPerRound returns how many turns make up one round.
func (s *Session) TurnsPerRound(rules Rules) int {
	return len(s.Order) * rules.FamilyTurns
}

// AdvanceTurn moves to the next turn and reports whether the round is over.
func (s *Session) AdvanceTurn(rules Rules) bool {
	s.Turn++
	s.Placed = false
	return s.Turn >= s.TurnsPerRound(rules)
}

// LastRoundOfPeriod reports whether the current round closes its period.
func (s *Session) LastRoundOfPeriod(rules Rules) bool {
	return s.Round%rules.RoundsPerPeriod == 0
}

// StartRound advances to the next round: the board is cleared, towers are
// refilled from the period decks and turn order follows the council palace.
func (s *Session) StartRound(rules Rules, d *Dealer) {
	if s.Round > 0 {
		s.Order = s.nextOrder()
	}
	s.Round++
	s.Period = (s.Round-1)/rules.RoundsPerPeriod + 1
	s.Turn = 0
	s.Placed = false

	s.Board.Clear()
	for i := range s.Board.Towers {
		tower := &s.Board.Towers[i]
		cards := d.Draw(s.Period, tower.Type, len(tower.Slots))
		for j := range tower.Slots {
			if j < len(cards) {
				card := cards[j]
				tower.Slots[j].Card = &card
			}
		}
	}
	for _, p := range s.Players {
		p.Used = nil
	}
}

// nextOrder puts council palace occupants first, in placement order,
// followed by the remaining players in their previous order.
func (s *Session) nextOrder() []string {
	order := make([]string, 0, len(s.Order))
	seen := make(map[string]bool, len(s.Order))
	for _, o := range s.Board.Council {
		if !seen[o.Player] {
			seen[o.Player] = true
			order = append(order, o.Player)
		}
	}
	for _, name := range s.Order {
		if !seen[name] {
			order = append(order, name)
		}
	}
	return order
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		c.Players[i] = p.Clone()
	}
	c.Board = s.Board.Clone()
	c.Order = append([]string(nil), s.Order...)
	return &c
}

// Dealer owns the match's randomness: deck shuffles and dice rolls. A
// fixed seed reproduces a match exactly.
type Dealer struct {
	rng   *rand.Rand
	cat   Catalog
	decks map[deckKey]*deck
}

type deckKey struct {
	period int
	card   CardType
}

type deck struct {
	cards []Card
	next  int
}

// NewDealer creates a dealer seeded with seed.
func NewDealer(cat Catalog, seed uint64) *Dealer {
	return &Dealer{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cat:   cat,
		decks: make(map[deckKey]*deck),
	}
}

// Draw deals n cards for a tower. A deck shorter than the number of rounds
// requires is reshuffled once exhausted.
func (d *Dealer) Draw(period int, t CardType, n int) []Card {
	key := deckKey{period: period, card: t}
	dk, ok := d.decks[key]
	if !ok {
		dk = &deck{cards: d.cat.Deck(period, t)}
		d.shuffle(dk.cards)
		d.decks[key] = dk
	}
	if len(dk.cards) == 0 {
		return nil
	}

	out := make([]Card, 0, n)
	for range n {
		if dk.next == len(dk.cards) {
			d.shuffle(dk.cards)
			dk.next = 0
		}
		out = append(out, dk.cards[dk.next])
		dk.next++
	}
	return out
}

// Roll returns freshly rolled dice, each between 1 and 6.
func (d *Dealer) Roll() Dice {
	return Dice{
		Black:  d.rng.IntN(6) + 1,
		White:  d.rng.IntN(6) + 1,
		Orange: d.rng.IntN(6) + 1,
		Rolled: true,
	}
}

func (d *Dealer) shuffle(cards []Card) {
	d.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

func (d *Dealer) shuffledLeaders(leaders []Leader) []Leader {
	out := append([]Leader(nil), leaders...)
	d.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
