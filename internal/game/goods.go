// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

import (
	"fmt"
	"strings"
)

// Goods is a bag of resources and points. It is used for player counters,
// costs, effect surpluses and requirements alike.
type Goods struct {
	Coins    int `json:"coins,omitempty" yaml:"coins,omitempty"`
	Wood     int `json:"wood,omitempty" yaml:"wood,omitempty"`
	Stone    int `json:"stone,omitempty" yaml:"stone,omitempty"`
	Servants int `json:"servants,omitempty" yaml:"servants,omitempty"`
	Victory  int `json:"victory,omitempty" yaml:"victory,omitempty"`
	Military int `json:"military,omitempty" yaml:"military,omitempty"`
	Faith    int `json:"faith,omitempty" yaml:"faith,omitempty"`

	// Privileges counts council privileges granted by an effect. Players
	// never hold privileges; each one becomes a pending choice.
	Privileges int `json:"privileges,omitempty" yaml:"privileges,omitempty"`
}

// Add returns the field-wise sum of g and o.
func (g Goods) Add(o Goods) Goods {
	return Goods{
		Coins:      g.Coins + o.Coins,
		Wood:       g.Wood + o.Wood,
		Stone:      g.Stone + o.Stone,
		Servants:   g.Servants + o.Servants,
		Victory:    g.Victory + o.Victory,
		Military:   g.Military + o.Military,
		Faith:      g.Faith + o.Faith,
		Privileges: g.Privileges + o.Privileges,
	}
}

// Sub returns the field-wise difference g - o.
func (g Goods) Sub(o Goods) Goods {
	return g.Add(o.Scale(-1))
}

// Scale multiplies every field by n.
func (g Goods) Scale(n int) Goods {
	return Goods{
		Coins:      g.Coins * n,
		Wood:       g.Wood * n,
		Stone:      g.Stone * n,
		Servants:   g.Servants * n,
		Victory:    g.Victory * n,
		Military:   g.Military * n,
		Faith:      g.Faith * n,
		Privileges: g.Privileges * n,
	}
}

// Covers reports whether g holds at least every amount in need.
// Privileges are ignored.
func (g Goods) Covers(need Goods) bool {
	return g.Coins >= need.Coins &&
		g.Wood >= need.Wood &&
		g.Stone >= need.Stone &&
		g.Servants >= need.Servants &&
		g.Victory >= need.Victory &&
		g.Military >= need.Military &&
		g.Faith >= need.Faith
}

// Floor clamps negative fields to zero.
func (g Goods) Floor() Goods {
	clamp := func(v int) int { return max(v, 0) }
	return Goods{
		Coins:      clamp(g.Coins),
		Wood:       clamp(g.Wood),
		Stone:      clamp(g.Stone),
		Servants:   clamp(g.Servants),
		Victory:    clamp(g.Victory),
		Military:   clamp(g.Military),
		Faith:      clamp(g.Faith),
		Privileges: clamp(g.Privileges),
	}
}

// WithoutPrivileges returns g with the privilege count cleared.
func (g Goods) WithoutPrivileges() Goods {
	g.Privileges = 0
	return g
}

// Resources returns the combined count of coins, wood, stone and servants.
func (g Goods) Resources() int {
	return g.Coins + g.Wood + g.Stone + g.Servants
}

// IsZero reports whether every field is zero.
func (g Goods) IsZero() bool {
	return g == Goods{}
}

// String lists the non-zero fields, e.g. "2 coins, 1 wood". The zero bag
// renders as "nothing".
func (g Goods) String() string {
	fields := []struct {
		n    int
		name string
	}{
		{g.Coins, "coins"},
		{g.Wood, "wood"},
		{g.Stone, "stone"},
		{g.Servants, "servants"},
		{g.Victory, "victory points"},
		{g.Military, "military points"},
		{g.Faith, "faith points"},
		{g.Privileges, "council privileges"},
	}
	var parts []string
	for _, f := range fields {
		if f.n != 0 {
			parts = append(parts, fmt.Sprintf("%d %s", f.n, f.name))
		}
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, ", ")
}
