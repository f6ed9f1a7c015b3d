// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package coordinator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

const (
	cmdRollDice = iota
	cmdPlace
	cmdLeader
	cmdEndTurn
	cmdBoard
)

var commands = []string{
	cmdRollDice: "Roll the dice",
	cmdPlace:    "Place a family member",
	cmdLeader:   "Activate a leader",
	cmdEndTurn:  "End your turn",
	cmdBoard:    "Show the board",
}

var placementTargets = []struct {
	target protocol.Target
	label  string
}{
	{protocol.TargetTower, "A tower"},
	{protocol.TargetHarvest, "The harvest area"},
	{protocol.TargetProduction, "The production area"},
	{protocol.TargetMarket, "The market"},
	{protocol.TargetCouncil, "The council palace"},
}

// choose asks until the operator picks one of choices and returns its
// 0-based index.
func (c *Coordinator) choose(ctx context.Context, question string, choices []string) (int, error) {
	if len(choices) == 0 {
		return 0, oops.Code("NO_CHOICES").With("question", question).Errorf("nothing to choose from")
	}
	for {
		c.presenter.Prompt(question, choices)
		line, err := c.readLine(ctx)
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(choices) {
			return n - 1, nil
		}
		c.presenter.Warn(fmt.Sprintf("Please enter a number between 1 and %d.", len(choices)))
	}
}

// number asks for an integer in [lo, hi].
func (c *Coordinator) number(ctx context.Context, question string, lo, hi int) (int, error) {
	for {
		c.presenter.Prompt(fmt.Sprintf("%s (%d-%d)", question, lo, hi), nil)
		line, err := c.readLine(ctx)
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(line); err == nil && n >= lo && n <= hi {
			return n, nil
		}
		c.presenter.Warn(fmt.Sprintf("Please enter a number between %d and %d.", lo, hi))
	}
}

// ask asks for a non-empty line.
func (c *Coordinator) ask(ctx context.Context, question string) (string, error) {
	for {
		c.presenter.Prompt(question, nil)
		line, err := c.readLine(ctx)
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
	}
}

// command asks for the next standard action. A nil action with a nil
// error means nothing needs to be sent.
func (c *Coordinator) command(ctx context.Context) (protocol.Action, error) {
	choice, err := c.choose(ctx, "What do you want to do?", commands)
	if err != nil {
		return nil, err
	}
	me := c.obs.self()

	switch choice {
	case cmdRollDice:
		if s := c.obs.model(); s != nil && s.Board.Dice.Rolled {
			c.presenter.Warn("The dice are already rolled.")
			return nil, nil
		}
		return protocol.RollDice{Player: me}, nil
	case cmdEndTurn:
		return protocol.TerminateRound{Player: me}, nil
	}

	s := c.obs.model()
	if s == nil || s.Player(me) == nil {
		c.presenter.Warn("The board has not been received yet.")
		return nil, nil
	}
	switch choice {
	case cmdPlace:
		return c.placement(ctx, s, me)
	case cmdLeader:
		return c.leader(ctx, s.Player(me))
	default:
		c.presenter.Board(s, me)
		return nil, nil
	}
}

func (c *Coordinator) placement(ctx context.Context, s *game.Session, me string) (protocol.Action, error) {
	if !s.Board.Dice.Rolled {
		c.presenter.Warn("The dice must be rolled first.")
		return nil, nil
	}
	player := s.Player(me)
	var members []game.FamilyMember
	var labels []string
	for _, m := range game.FamilyMembers {
		if !player.MemberUsed(m) {
			members = append(members, m)
			labels = append(labels, fmt.Sprintf("%s (force %d)", m, s.Board.Dice.Value(m)))
		}
	}
	if len(members) == 0 {
		c.presenter.Warn("All your family members are already on the board.")
		return nil, nil
	}

	targets := make([]string, len(placementTargets))
	for i, t := range placementTargets {
		targets[i] = t.label
	}
	ti, err := c.choose(ctx, "Where do you want to place a family member?", targets)
	if err != nil {
		return nil, err
	}
	p := protocol.Placement{Player: me, Target: placementTargets[ti].target}

	switch p.Target {
	case protocol.TargetTower:
		if p.Tower, p.Index, p.CostOption, err = c.towerSlot(ctx, s, ""); err != nil {
			return nil, err
		}
	case protocol.TargetHarvest, protocol.TargetProduction:
		if p.Index, err = c.choose(ctx, "Which space?", []string{"Single space", "Composite space (-3 force)"}); err != nil {
			return nil, err
		}
	case protocol.TargetMarket:
		spaces := make([]string, len(s.Board.Market))
		for i, m := range s.Board.Market {
			spaces[i] = fmt.Sprintf("%s%s", m.Surplus, occupied(m.Occupant))
		}
		if p.Index, err = c.choose(ctx, "Which market space?", spaces); err != nil {
			return nil, err
		}
	}

	mi, err := c.choose(ctx, "Which family member?", labels)
	if err != nil {
		return nil, err
	}
	p.Member = members[mi]
	if p.Servants, err = c.number(ctx, "How many servants do you add?", 0, player.Goods.Servants); err != nil {
		return nil, err
	}
	return p, nil
}

// towerSlot asks for a tower floor and, when the card offers several
// costs, which one to pay. A non-empty only restricts the tower.
func (c *Coordinator) towerSlot(ctx context.Context, s *game.Session, only game.CardType) (game.CardType, int, int, error) {
	tower := only
	if tower == "" {
		names := make([]string, len(game.CardTypes))
		for i, t := range game.CardTypes {
			names[i] = string(t)
		}
		ti, err := c.choose(ctx, "Which tower?", names)
		if err != nil {
			return "", 0, 0, err
		}
		tower = game.CardTypes[ti]
	}

	t := s.Board.Tower(tower)
	if t == nil {
		return tower, 0, 0, nil
	}
	floors := make([]string, len(t.Slots))
	for i, slot := range t.Slots {
		card := "empty"
		if slot.Card != nil {
			card = slot.Card.Name
		}
		floors[i] = fmt.Sprintf("Floor %d (force %d): %s%s", i+1, slot.Force, card, occupied(slot.Occupant))
	}
	index, err := c.choose(ctx, "Which floor?", floors)
	if err != nil {
		return "", 0, 0, err
	}

	card := t.Slots[index].Card
	if card == nil || len(card.Costs) < 2 {
		return tower, index, 0, nil
	}
	costs := make([]string, len(card.Costs))
	for i, cost := range card.Costs {
		costs[i] = cost.Resources.String()
		if cost.MilitaryRequired > 0 {
			costs[i] += fmt.Sprintf(" (requires %d military points)", cost.MilitaryRequired)
		}
	}
	option, err := c.choose(ctx, "How do you want to pay?", costs)
	if err != nil {
		return "", 0, 0, err
	}
	return tower, index, option, nil
}

func (c *Coordinator) leader(ctx context.Context, p *game.Player) (protocol.Action, error) {
	var indexes []int
	var names []string
	for i, l := range p.Leaders {
		if !l.Activated {
			indexes = append(indexes, i)
			names = append(names, fmt.Sprintf("%s (requires %s)", l.Leader.Name, l.Leader.Requires))
		}
	}
	if len(indexes) == 0 {
		c.presenter.Warn("You have no leader left to activate.")
		return nil, nil
	}
	choice, err := c.choose(ctx, "Which leader?", names)
	if err != nil {
		return nil, err
	}
	return protocol.LeaderActivation{Player: p.Username, Leader: indexes[choice]}, nil
}

// decision asks for the answer to an immediate decision.
func (c *Coordinator) decision(ctx context.Context, im game.Immediate) (protocol.Action, error) {
	me := c.obs.self()

	switch im.Kind {
	case game.ImmediatePrivilege:
		options := make([]string, im.Options)
		for i := range options {
			options[i] = fmt.Sprintf("Privilege %d", i+1)
		}
		choice, err := c.choose(ctx, "Which council privilege?", options)
		if err != nil {
			return nil, err
		}
		return protocol.ImmediateChoice{Player: me, Immediate: im.Kind, Selection: choice}, nil

	case game.ImmediateConversion:
		options := c.conversions(im)
		choice, err := c.choose(ctx, "Which conversion?", append(options, "Skip"))
		if err != nil {
			return nil, err
		}
		if choice == len(options) {
			choice = protocol.Decline
		}
		return protocol.ImmediateChoice{Player: me, Immediate: im.Kind, Selection: choice}, nil

	case game.ImmediateTakeCard:
		take, err := c.choose(ctx, "Do you want to take a card?", []string{"Take a card", "Skip"})
		if err != nil {
			return nil, err
		}
		if take == 1 {
			return protocol.ImmediateChoice{Player: me, Immediate: im.Kind, Selection: protocol.Decline}, nil
		}
		s := c.obs.model()
		if s == nil {
			s = &game.Session{}
		}
		tower, index, option, err := c.towerSlot(ctx, s, im.CardType)
		if err != nil {
			return nil, err
		}
		a := protocol.ImmediatePlacement{Player: me, Tower: tower, Index: index, CostOption: option}
		servants := 0
		if p := s.Player(me); p != nil {
			servants = p.Goods.Servants
		}
		if a.Servants, err = c.number(ctx, "How many servants do you add?", 0, servants); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, oops.Code("UNKNOWN_IMMEDIATE").With("kind", im.Kind).Errorf("unknown immediate decision %q", im.Kind)
}

// conversions labels the options of a conversion decision.
func (c *Coordinator) conversions(im game.Immediate) []string {
	options := make([]string, im.Options)
	for i := range options {
		options[i] = fmt.Sprintf("Conversion %d", i+1)
	}
	s := c.obs.model()
	if s == nil {
		return options
	}
	p := s.Player(c.obs.self())
	if p == nil {
		return options
	}
	for _, card := range p.Cards[game.CardBuilding] {
		if card.ID != im.CardID {
			continue
		}
		for i, conv := range card.Permanent.Conversions {
			if i < len(options) {
				options[i] = fmt.Sprintf("%s into %s", conv.From, conv.To)
			}
		}
	}
	return options
}

func occupied(o *game.Occupant) string {
	if o == nil {
		return ""
	}
	return fmt.Sprintf(" [%s, %s]", o.Player, o.Member)
}
