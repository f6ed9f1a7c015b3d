// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package match

import (
	"fmt"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

func describe(player string, a protocol.Action) string {
	switch act := a.(type) {
	case protocol.Placement:
		if act.Target == protocol.TargetTower {
			return fmt.Sprintf("%s placed the %s member on floor %d of the %s tower.", player, act.Member, act.Index, act.Tower)
		}
		return fmt.Sprintf("%s placed the %s member in the %s.", player, act.Member, act.Target)
	case protocol.RollDice:
		return player + " rolled the dice."
	case protocol.LeaderActivation:
		return player + " activated a leader."
	case protocol.TerminateRound:
		return player + " ended the turn."
	}
	return player + " acted."
}

func immediatePrompt(im game.Immediate) string {
	switch im.Kind {
	case game.ImmediatePrivilege:
		return fmt.Sprintf("Choose a council privilege (0-%d).", im.Options-1)
	case game.ImmediateConversion:
		return fmt.Sprintf("Choose a conversion for %s (0-%d, or -1 to skip).", im.CardID, im.Options-1)
	case game.ImmediateTakeCard:
		if im.CardType == "" {
			return fmt.Sprintf("Take a card from any tower with force %d.", im.Force)
		}
		return fmt.Sprintf("Take a card from the %s tower with force %d.", im.CardType, im.Force)
	}
	return "Make a decision."
}
