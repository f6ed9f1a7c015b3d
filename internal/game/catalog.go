// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

import (
	_ "embed"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog provides the static rule data a match is played with.
type Catalog interface {
	// Deck returns the cards that may appear in the given tower during the
	// given period. Cards with period 0 belong to every period.
	Deck(period int, t CardType) []Card
	Leaders() []Leader
	BonusTiles() []BonusTile
	// Ban returns the excommunication penalty for a period.
	Ban(period int) (Ban, bool)
	Rules() Rules
}

// Floor is one tower floor: the minimum force to occupy it and the
// surplus granted on placement.
type Floor struct {
	Force   int   `json:"force" yaml:"force"`
	Surplus Goods `json:"surplus,omitempty" yaml:"surplus,omitempty"`
}

// Rules holds the board layout and scoring tables.
type Rules struct {
	Periods         int `json:"periods" yaml:"periods" jsonschema:"minimum=1"`
	RoundsPerPeriod int `json:"rounds_per_period" yaml:"rounds_per_period" jsonschema:"minimum=1"`
	FamilyTurns     int `json:"family_turns" yaml:"family_turns" jsonschema:"minimum=1"`

	Floors         map[CardType][]Floor `json:"floors" yaml:"floors"`
	Market         []Goods              `json:"market" yaml:"market"`
	CouncilSurplus Goods                `json:"council_surplus" yaml:"council_surplus"`
	Privileges     []Goods              `json:"privileges" yaml:"privileges" jsonschema:"minItems=1"`

	ReentryFee     int `json:"reentry_fee" yaml:"reentry_fee"`
	CompositeMalus int `json:"composite_malus" yaml:"composite_malus"`
	CardLimit      int `json:"card_limit" yaml:"card_limit"`
	MinForce       int `json:"min_force" yaml:"min_force"`

	// StartingGoods is indexed by seat; later seats reuse the last entry.
	StartingGoods     []Goods `json:"starting_goods" yaml:"starting_goods" jsonschema:"minItems=1"`
	LeadersPerPlayer  int     `json:"leaders_per_player" yaml:"leaders_per_player"`
	FaithRequirements []int   `json:"faith_requirements" yaml:"faith_requirements"`

	// Scoring tables. BuildingBonus and CharacterBonus are indexed by the
	// number of owned cards, FaithBonus by faith points, MilitaryBonus by
	// rank minus one. Out-of-range lookups use the last entry, except
	// MilitaryBonus which yields zero.
	BuildingBonus  []int `json:"building_bonus" yaml:"building_bonus"`
	CharacterBonus []int `json:"character_bonus" yaml:"character_bonus"`
	FaithBonus     []int `json:"faith_bonus" yaml:"faith_bonus"`
	MilitaryBonus  []int `json:"military_bonus" yaml:"military_bonus"`
}

// Rounds returns the number of rounds in a match.
func (r Rules) Rounds() int {
	return r.Periods * r.RoundsPerPeriod
}

// FaithRequirement returns the faith needed to avoid excommunication at
// the end of a period.
func (r Rules) FaithRequirement(period int) int {
	return clampedLookup(r.FaithRequirements, period-1)
}

// StartingGoodsFor returns the initial goods of the player in the given seat.
func (r Rules) StartingGoodsFor(seat int) Goods {
	if len(r.StartingGoods) == 0 {
		return Goods{}
	}
	return r.StartingGoods[min(seat, len(r.StartingGoods)-1)]
}

// CardCountBonus returns the victory bonus for owning n cards of type t.
func (r Rules) CardCountBonus(t CardType, n int) int {
	switch t {
	case CardBuilding:
		return clampedLookup(r.BuildingBonus, n)
	case CardCharacter:
		return clampedLookup(r.CharacterBonus, n)
	}
	return 0
}

// FaithTrackBonus returns the victory points for the given faith points.
func (r Rules) FaithTrackBonus(faith int) int {
	return clampedLookup(r.FaithBonus, faith)
}

// MilitaryRankBonus returns the victory points for a 1-based military rank.
func (r Rules) MilitaryRankBonus(rank int) int {
	if rank < 1 || rank > len(r.MilitaryBonus) {
		return 0
	}
	return r.MilitaryBonus[rank-1]
}

func clampedLookup(table []int, i int) int {
	if len(table) == 0 || i < 0 {
		return 0
	}
	return table[min(i, len(table)-1)]
}

// CatalogData is a Catalog loaded from YAML.
type CatalogData struct {
	Rule    Rules       `json:"rules" yaml:"rules"`
	Cards   []Card      `json:"cards" yaml:"cards"`
	Leader  []Leader    `json:"leaders" yaml:"leaders"`
	Tiles   []BonusTile `json:"bonus_tiles" yaml:"bonus_tiles" jsonschema:"minItems=1"`
	BanList []Ban       `json:"bans" yaml:"bans"`
}

// Deck implements Catalog.
func (c *CatalogData) Deck(period int, t CardType) []Card {
	var deck []Card
	for _, card := range c.Cards {
		if card.Type == t && (card.Period == 0 || card.Period == period) {
			deck = append(deck, card)
		}
	}
	return deck
}

// Leaders implements Catalog.
func (c *CatalogData) Leaders() []Leader { return c.Leader }

// BonusTiles implements Catalog.
func (c *CatalogData) BonusTiles() []BonusTile { return c.Tiles }

// Ban implements Catalog.
func (c *CatalogData) Ban(period int) (Ban, bool) {
	for _, b := range c.BanList {
		if b.Period == period {
			return b, true
		}
	}
	return Ban{}, false
}

// Rules implements Catalog.
func (c *CatalogData) Rules() Rules { return c.Rule }

// ParseCatalog validates and decodes a YAML catalog.
func ParseCatalog(data []byte) (*CatalogData, error) {
	if err := ValidateCatalog(data); err != nil {
		return nil, err
	}

	var c CatalogData
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrap(err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalog reads a catalog file. An empty path yields the built-in catalog.
func LoadCatalog(path string) (*CatalogData, error) {
	if path == "" {
		return DefaultCatalog()
	}
	//nolint:gosec // catalog path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("CATALOG_READ_FAILED").With("path", path).Wrap(err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return c, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*CatalogData, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// check enforces the cross-field constraints a schema cannot express.
func (c *CatalogData) check() error {
	r := c.Rule
	for _, t := range CardTypes {
		if len(r.Floors[t]) == 0 {
			return oops.Code("CATALOG_INVALID").With("tower", t).Errorf("tower has no floors")
		}
	}
	if len(r.FaithRequirements) < r.Periods {
		return oops.Code("CATALOG_INVALID").
			With("periods", r.Periods).
			Errorf("faith requirements missing for some periods")
	}
	seen := make(map[string]struct{}, len(c.Cards))
	for _, card := range c.Cards {
		if !card.Type.Valid() {
			return oops.Code("CATALOG_INVALID").With("card", card.ID).Errorf("unknown card type %q", card.Type)
		}
		if _, dup := seen[card.ID]; dup {
			return oops.Code("CATALOG_INVALID").With("card", card.ID).Errorf("duplicate card id")
		}
		seen[card.ID] = struct{}{}
	}
	return nil
}
