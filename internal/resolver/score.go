// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package resolver

import (
	"sort"

	"github.com/lorenzo-online/lorenzo/internal/game"
)

// resourcesPerPoint is the number of combined resources worth one victory
// point at final scoring.
const resourcesPerPoint = 5

// VaticanReport closes a period. Players who reached the period's faith
// requirement convert their faith into victory points and start over;
// everyone else is excommunicated with ban. When hasBan is false the
// period carries no penalty.
func VaticanReport(s *game.Session, rules game.Rules, ban game.Ban, hasBan bool) {
	required := rules.FaithRequirement(s.Period)
	for _, p := range s.Players {
		if p.Goods.Faith >= required {
			p.Goods.Victory += rules.FaithTrackBonus(p.Goods.Faith)
			p.Goods.Faith = 0
			continue
		}
		if hasBan {
			p.Bans = append(p.Bans, ban)
		}
	}
}

// Score computes a player's final score. rank is the player's 1-based
// military rank.
func Score(p *game.Player, rules game.Rules, rank int) int {
	score := p.Goods.Victory

	if !p.Banned(game.CardVenture) {
		for _, card := range p.Cards[game.CardVenture] {
			score += card.Permanent.Victory
		}
	}
	score += p.Goods.Resources() / resourcesPerPoint

	for _, t := range []game.CardType{game.CardBuilding, game.CardCharacter} {
		if !p.Banned(t) {
			score += rules.CardCountBonus(t, p.CardCount(t))
		}
	}

	score += rules.FaithTrackBonus(p.Goods.Faith)
	score += rules.MilitaryRankBonus(rank)
	return score
}

// MilitaryRank returns 1 plus the number of players with strictly more
// military points than p. Tied players share a rank.
func MilitaryRank(players []*game.Player, p *game.Player) int {
	rank := 1
	for _, other := range players {
		if other.Goods.Military > p.Goods.Military {
			rank++
		}
	}
	return rank
}

// FinalStandings scores every player and ranks them by score. Tied scores
// share a rank; ties are listed in seat order.
func FinalStandings(s *game.Session, rules game.Rules) []game.Standing {
	standings := make([]game.Standing, 0, len(s.Players))
	for _, p := range s.Players {
		standings = append(standings, game.Standing{
			Player: p.Username,
			Score:  Score(p, rules, MilitaryRank(s.Players, p)),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	for i := range standings {
		if i > 0 && standings[i].Score == standings[i-1].Score {
			standings[i].Rank = standings[i-1].Rank
			continue
		}
		standings[i].Rank = i + 1
	}
	return standings
}
