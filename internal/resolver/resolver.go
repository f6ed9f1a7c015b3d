// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package resolver validates and applies action requests against a session.
//
// Every call works on a clone of the session and hands the clone back only
// when the whole action succeeded, so a rejected action never leaves a
// partial deduction, placement or card chain behind.
package resolver

import (
	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

// Roller rolls the round's dice.
type Roller interface {
	Roll() game.Dice
}

// Outcome is the result of a successfully resolved action.
type Outcome struct {
	// State is the session after the action. It is a fresh copy owned by
	// the caller.
	State *game.Session
	// Immediates lists the decisions the action triggered, in the order
	// they were triggered.
	Immediates []game.Immediate
	// EndsTurn is set when the action closes the player's turn.
	EndsTurn bool
}

// Resolver applies actions under one set of rules.
type Resolver struct {
	rules  game.Rules
	roller Roller
}

// New creates a resolver.
func New(rules game.Rules, roller Roller) *Resolver {
	return &Resolver{rules: rules, roller: roller}
}

// Rules returns the rules the resolver applies.
func (r *Resolver) Rules() game.Rules {
	return r.rules
}

// Resolve applies a on behalf of player. pending is the immediate decision
// the player currently owes, or nil. s is never modified.
func (r *Resolver) Resolve(s *game.Session, player string, pending *game.Immediate, a protocol.Action) (*Outcome, error) {
	if a == nil {
		return nil, errCode(CodeUnknownAction, "empty action")
	}
	if s.Ended {
		return nil, errCode(CodeMatchEnded, "the match is over")
	}

	next := s.Clone()
	p := next.Player(player)
	if p == nil {
		return nil, errCode(CodeUnknownPlayer, "unknown player %q", player)
	}

	switch a.Category() {
	case protocol.CategoryStandard:
		if next.CurrentPlayer() != player {
			return nil, errCode(CodeNotYourTurn, "it is %s's turn", next.CurrentPlayer())
		}
		if pending != nil {
			return nil, errCode(CodeImmediatePending, "resolve the pending %s decision first", pending.Kind)
		}
	case protocol.CategoryImmediate:
		if pending == nil {
			return nil, errCode(CodeNoImmediatePending, "no immediate decision is pending")
		}
	}

	res := &resolution{rules: r.rules, s: next, p: p}

	var err error
	switch act := a.(type) {
	case protocol.Placement:
		err = res.placement(act)
	case protocol.RollDice:
		err = res.rollDice(r.roller)
	case protocol.LeaderActivation:
		err = res.activateLeader(act.Leader)
	case protocol.TerminateRound:
		res.endsTurn = true
	case protocol.ImmediateChoice:
		err = res.immediateChoice(*pending, act)
	case protocol.ImmediatePlacement:
		err = res.immediatePlacement(*pending, act)
	default:
		err = errCode(CodeUnknownAction, "unknown action %T", a)
	}
	if err != nil {
		return nil, err
	}

	return &Outcome{State: next, Immediates: res.immediates, EndsTurn: res.endsTurn}, nil
}

// resolution carries the working copy through one Resolve call.
type resolution struct {
	rules      game.Rules
	s          *game.Session
	p          *game.Player
	immediates []game.Immediate
	endsTurn   bool
}

func (res *resolution) placement(act protocol.Placement) error {
	if !act.Member.Valid() {
		return errCode(CodeInvalidFamilyMember, "unknown family member %q", act.Member)
	}
	if res.s.Placed {
		return errCode(CodePlacementAlreadyMade, "you already placed a family member this turn")
	}
	if res.p.MemberUsed(act.Member) {
		return errCode(CodeFamilyMemberInUse, "the %s family member is already on the board", act.Member)
	}
	if !res.s.Board.Dice.Rolled {
		return errCode(CodeDiceNotRolled, "the dice have not been rolled")
	}
	if err := res.spendServants(act.Servants); err != nil {
		return err
	}

	force := res.s.Board.Dice.Value(act.Member) + act.Servants
	occ := &game.Occupant{Player: res.p.Username, Member: act.Member}

	var err error
	switch act.Target {
	case protocol.TargetTower:
		err = res.takeCard(act.Tower, act.Index, act.CostOption, force, game.Goods{}, occ)
	case protocol.TargetHarvest:
		err = res.workArea(game.EffectHarvest, act.Index, force, *occ)
	case protocol.TargetProduction:
		err = res.workArea(game.EffectProduction, act.Index, force, *occ)
	case protocol.TargetMarket:
		err = res.market(act.Index, force, occ)
	case protocol.TargetCouncil:
		err = res.council(force, *occ)
	default:
		err = errCode(CodeUnknownTarget, "unknown target %q", act.Target)
	}
	if err != nil {
		return err
	}

	res.p.Used = append(res.p.Used, act.Member)
	res.s.Placed = true
	return nil
}

func (res *resolution) spendServants(n int) error {
	if n < 0 {
		return errCode(CodeInvalidServants, "servants cannot be negative")
	}
	if n > res.p.Goods.Servants {
		return ErrInsufficientResources(game.Goods{Servants: n}, res.p.Goods)
	}
	res.p.Goods.Servants -= n
	return nil
}

// takeCard acquires the card on a tower floor. occ is nil when the card is
// taken through an effect rather than by placing a family member; such
// takes ignore occupancy rules and the floor surplus.
func (res *resolution) takeCard(t game.CardType, index, costOption, force int, discount game.Goods, occ *game.Occupant) error {
	tower := res.s.Board.Tower(t)
	if tower == nil || index < 0 || index >= len(tower.Slots) {
		return errCode(CodeUnknownTarget, "no floor %d in the %s tower", index, t)
	}
	slot := &tower.Slots[index]

	if occ != nil {
		if tower.OccupiedBy(res.p.Username) {
			return ErrTowerAlreadyOccupied(t)
		}
		if slot.Occupant != nil {
			return ErrPlaceOccupied(protocol.TargetTower, index)
		}
	}
	if slot.Card == nil {
		return errCode(CodeEmptySlot, "there is no card on floor %d of the %s tower", index, t)
	}

	bonusForce, bonusDiscount := res.characterBonus(game.EffectCard, t)
	force += bonusForce
	discount = discount.Add(bonusDiscount)
	if force < slot.Force {
		return ErrNotStrongEnough(slot.Force, force)
	}

	if occ != nil && tower.OccupiedByOthers(res.p.Username) {
		fee := game.Goods{Coins: res.rules.ReentryFee}
		if !res.p.Goods.Covers(fee) {
			return ErrInsufficientResources(fee, res.p.Goods)
		}
		res.p.Goods = res.p.Goods.Sub(fee)
	}

	if res.rules.CardLimit > 0 && res.p.CardCount(t) >= res.rules.CardLimit {
		return errCode(CodeCardLimitReached, "you cannot own more than %d %s cards", res.rules.CardLimit, t)
	}

	card := *slot.Card
	if err := res.payCost(card, costOption, discount); err != nil {
		return err
	}

	if occ != nil {
		slot.Occupant = occ
		res.grant(slot.Surplus)
	}
	slot.Card = nil
	res.p.Cards[t] = append(res.p.Cards[t], card)

	res.grant(card.Immediate.Surplus)
	if action := card.Immediate.Action; action != nil {
		res.effectAction(*action)
	}
	return nil
}

// payCost charges one of the card's cost options. Military requirements
// are checked and paid before resources.
func (res *resolution) payCost(card game.Card, option int, discount game.Goods) error {
	if len(card.Costs) == 0 {
		if option != 0 {
			return errCode(CodeInvalidCostOption, "%s has no cost options", card.Name)
		}
		return nil
	}
	if option < 0 || option >= len(card.Costs) {
		return errCode(CodeInvalidCostOption, "%s has %d cost options, got option %d", card.Name, len(card.Costs), option)
	}
	cost := card.Costs[option]

	if cost.MilitaryRequired > 0 || cost.MilitaryMalus > 0 {
		need := max(cost.MilitaryRequired, cost.MilitaryMalus)
		if res.p.Goods.Military < need {
			return ErrInsufficientMilitaryPoints(need, res.p.Goods.Military)
		}
		res.p.Goods.Military -= cost.MilitaryMalus
	}

	need := cost.Resources.Sub(discount).Floor().WithoutPrivileges()
	if !res.p.Goods.Covers(need) {
		return ErrInsufficientResources(need, res.p.Goods)
	}
	res.p.Goods = res.p.Goods.Sub(need)
	return nil
}

func (res *resolution) workArea(kind game.EffectKind, index, force int, occ game.Occupant) error {
	area := res.s.Board.Area(kind)
	bonus, _ := res.characterBonus(kind, "")
	force += bonus

	target := protocol.TargetHarvest
	if kind == game.EffectProduction {
		target = protocol.TargetProduction
	}

	switch index {
	case protocol.AreaSingle:
		if area.Single.Occupant != nil {
			return ErrPlaceOccupied(target, index)
		}
	case protocol.AreaComposite:
		force -= res.rules.CompositeMalus
	default:
		return errCode(CodeUnknownTarget, "unknown %s space %d", kind, index)
	}
	if force < res.rules.MinForce {
		return ErrNotStrongEnough(res.rules.MinForce, force)
	}

	if index == protocol.AreaSingle {
		area.Single.Occupant = &occ
	} else {
		area.Composite = append(area.Composite, occ)
	}
	res.chain(kind, force)
	return nil
}

func (res *resolution) market(index, force int, occ *game.Occupant) error {
	if index < 0 || index >= len(res.s.Board.Market) {
		return errCode(CodeUnknownTarget, "unknown market space %d", index)
	}
	space := &res.s.Board.Market[index]
	if space.Occupant != nil {
		return ErrPlaceOccupied(protocol.TargetMarket, index)
	}
	if force < res.rules.MinForce {
		return ErrNotStrongEnough(res.rules.MinForce, force)
	}
	space.Occupant = occ
	res.grant(space.Surplus)
	return nil
}

func (res *resolution) council(force int, occ game.Occupant) error {
	if force < res.rules.MinForce {
		return ErrNotStrongEnough(res.rules.MinForce, force)
	}
	res.s.Board.Council = append(res.s.Board.Council, occ)
	res.grant(res.rules.CouncilSurplus)
	return nil
}

// chain activates the player's permanent harvest or production effects:
// every owned card whose minimum force is met, in acquisition order, then
// the personal bonus tile.
func (res *resolution) chain(kind game.EffectKind, force int) {
	tile := res.p.BonusTile
	switch kind {
	case game.EffectHarvest:
		for _, card := range res.p.Cards[game.CardTerritory] {
			if force >= card.Permanent.MinForce {
				res.grant(card.Permanent.Surplus)
			}
		}
		if force >= tile.HarvestForce {
			res.grant(tile.Harvest)
		}
	case game.EffectProduction:
		for _, card := range res.p.Cards[game.CardBuilding] {
			if force >= card.Permanent.MinForce {
				res.grant(card.Permanent.Surplus)
				res.offerConversions(card)
			}
		}
		if force >= tile.ProductionForce {
			res.grant(tile.Production)
		}
	}
}

// offerConversions runs a single affordable conversion directly and turns
// a choice between several into a pending decision.
func (res *resolution) offerConversions(card game.Card) {
	convs := card.Permanent.Conversions
	affordable := false
	for _, c := range convs {
		if res.p.Goods.Covers(c.From) {
			affordable = true
			break
		}
	}
	switch {
	case !affordable:
	case len(convs) == 1:
		res.convert(convs[0])
	default:
		res.immediates = append(res.immediates, game.Immediate{
			Kind:    game.ImmediateConversion,
			Options: len(convs),
			CardID:  card.ID,
		})
	}
}

func (res *resolution) convert(c game.Conversion) {
	res.p.Goods = res.p.Goods.Sub(c.From.WithoutPrivileges())
	res.grant(c.To)
}

func (res *resolution) effectAction(action game.EffectAction) {
	switch action.Kind {
	case game.EffectHarvest, game.EffectProduction:
		bonus, _ := res.characterBonus(action.Kind, "")
		res.chain(action.Kind, action.Force+bonus)
	case game.EffectCard:
		res.immediates = append(res.immediates, game.Immediate{
			Kind:     game.ImmediateTakeCard,
			CardType: action.CardType,
			Force:    action.Force,
			Discount: action.Discount,
		})
	}
}

// characterBonus sums the permanent bonuses of owned character cards that
// apply to an action.
func (res *resolution) characterBonus(kind game.EffectKind, t game.CardType) (int, game.Goods) {
	force := 0
	var discount game.Goods
	for _, card := range res.p.Cards[game.CardCharacter] {
		if b := card.Permanent.Bonus; b.Applies(kind, t) {
			force += b.Force
			discount = discount.Add(b.Discount)
		}
	}
	return force, discount
}

// grant adds g to the player. Each council privilege in g becomes a
// pending choice.
func (res *resolution) grant(g game.Goods) {
	res.p.Goods = res.p.Goods.Add(g.WithoutPrivileges())
	for range g.Privileges {
		res.immediates = append(res.immediates, game.Immediate{
			Kind:    game.ImmediatePrivilege,
			Options: len(res.rules.Privileges),
		})
	}
}

func (res *resolution) rollDice(roller Roller) error {
	if res.s.Board.Dice.Rolled {
		return errCode(CodeDiceAlreadyRolled, "the dice were already rolled this round")
	}
	res.s.Board.Dice = roller.Roll()
	res.s.Board.Dice.Rolled = true
	return nil
}

func (res *resolution) activateLeader(index int) error {
	if index < 0 || index >= len(res.p.Leaders) {
		return errCode(CodeInvalidSelection, "you have no leader %d", index)
	}
	state := &res.p.Leaders[index]
	if state.Activated {
		return errCode(CodeLeaderAlreadyActivated, "%s is already active", state.Leader.Name)
	}
	if !res.p.Goods.Covers(state.Leader.Requires) {
		return ErrLeaderRequirementsNotMet(state.Leader.Name)
	}
	for t, n := range state.Leader.RequiresCards {
		if res.p.CardCount(t) < n {
			return ErrLeaderRequirementsNotMet(state.Leader.Name)
		}
	}
	state.Activated = true
	res.grant(state.Leader.Surplus)
	return nil
}

func (res *resolution) immediateChoice(pending game.Immediate, act protocol.ImmediateChoice) error {
	if act.Immediate != pending.Kind {
		return errCode(CodeImmediateMismatch, "expected a %s decision, got %s", pending.Kind, act.Immediate)
	}

	switch pending.Kind {
	case game.ImmediatePrivilege:
		if act.Selection < 0 || act.Selection >= len(res.rules.Privileges) {
			return errCode(CodeInvalidSelection, "privilege %d does not exist", act.Selection)
		}
		res.grant(res.rules.Privileges[act.Selection])
		return nil

	case game.ImmediateConversion:
		if act.Selection == protocol.Decline {
			return nil
		}
		card, ok := res.ownedBuilding(pending.CardID)
		if !ok {
			return errCode(CodeInvalidSelection, "you do not own %s", pending.CardID)
		}
		convs := card.Permanent.Conversions
		if act.Selection < 0 || act.Selection >= len(convs) {
			return errCode(CodeInvalidSelection, "conversion %d does not exist", act.Selection)
		}
		conv := convs[act.Selection]
		if !res.p.Goods.Covers(conv.From) {
			return ErrInsufficientResources(conv.From, res.p.Goods)
		}
		res.convert(conv)
		return nil

	case game.ImmediateTakeCard:
		if act.Selection == protocol.Decline {
			return nil
		}
		return errCode(CodeImmediateMismatch, "a %s decision needs a placement or a decline", pending.Kind)
	}
	return errCode(CodeImmediateMismatch, "unknown %s decision", pending.Kind)
}

func (res *resolution) immediatePlacement(pending game.Immediate, act protocol.ImmediatePlacement) error {
	if pending.Kind != game.ImmediateTakeCard {
		return errCode(CodeImmediateMismatch, "expected a %s decision, got a placement", pending.Kind)
	}
	if pending.CardType != "" && act.Tower != pending.CardType {
		return errCode(CodeIllegalTower, "this card may only be taken from the %s tower", pending.CardType)
	}
	if err := res.spendServants(act.Servants); err != nil {
		return err
	}
	return res.takeCard(act.Tower, act.Index, act.CostOption, pending.Force+act.Servants, pending.Discount, nil)
}

func (res *resolution) ownedBuilding(id string) (game.Card, bool) {
	for _, card := range res.p.Cards[game.CardBuilding] {
		if card.ID == id {
			return card, true
		}
	}
	return game.Card{}, false
}
