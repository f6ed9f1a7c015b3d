// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package resolver

import (
	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

// Error codes for rejected actions. Every code is recoverable: the Session
// Controller turns it into an ActionRefused notification.
const (
	CodeInsufficientResources      = "INSUFFICIENT_RESOURCES"
	CodeInsufficientMilitaryPoints = "INSUFFICIENT_MILITARY_POINTS"
	CodePlaceOccupied              = "PLACE_OCCUPIED"
	CodeNotStrongEnough            = "NOT_STRONG_ENOUGH"
	CodeTowerAlreadyOccupied       = "TOWER_ALREADY_OCCUPIED"
	CodeLeaderRequirementsNotMet   = "LEADER_REQUIREMENTS_NOT_MET"
	CodeLeaderAlreadyActivated     = "LEADER_ALREADY_ACTIVATED"
	CodeFamilyMemberInUse          = "FAMILY_MEMBER_IN_USE"
	CodeDiceNotRolled              = "DICE_NOT_ROLLED"
	CodeDiceAlreadyRolled          = "DICE_ALREADY_ROLLED"
	CodeCardLimitReached           = "CARD_LIMIT_REACHED"
	CodeInvalidCostOption          = "INVALID_COST_OPTION"
	CodeInvalidSelection           = "INVALID_SELECTION"
	CodePlacementAlreadyMade       = "PLACEMENT_ALREADY_MADE"
	CodeNotYourTurn                = "NOT_YOUR_TURN"
	CodeNoImmediatePending         = "NO_IMMEDIATE_PENDING"
	CodeImmediatePending           = "IMMEDIATE_PENDING"
	CodeImmediateMismatch          = "IMMEDIATE_MISMATCH"
	CodeUnknownTarget              = "UNKNOWN_TARGET"
	CodeUnknownPlayer              = "UNKNOWN_PLAYER"
	CodeUnknownAction              = "UNKNOWN_ACTION"
	CodeEmptySlot                  = "EMPTY_SLOT"
	CodeInvalidServants            = "INVALID_SERVANTS"
	CodeInvalidFamilyMember        = "INVALID_FAMILY_MEMBER"
	CodeMatchEnded                 = "MATCH_ENDED"
	CodeIllegalTower               = "ILLEGAL_TOWER"
)

// ErrInsufficientResources is returned when a cost cannot be paid.
func ErrInsufficientResources(need, have game.Goods) error {
	return oops.Code(CodeInsufficientResources).
		With("need", need).
		With("have", have).
		Errorf("not enough resources")
}

// ErrInsufficientMilitaryPoints is returned when a military requirement
// is not met.
func ErrInsufficientMilitaryPoints(required, have int) error {
	return oops.Code(CodeInsufficientMilitaryPoints).
		With("required", required).
		With("have", have).
		Errorf("not enough military points: need %d, have %d", required, have)
}

// ErrPlaceOccupied is returned when a single-occupancy space is taken.
func ErrPlaceOccupied(target protocol.Target, index int) error {
	return oops.Code(CodePlaceOccupied).
		With("target", target).
		With("index", index).
		Errorf("place already occupied")
}

// ErrNotStrongEnough is returned when a member's force is below a space's
// requirement.
func ErrNotStrongEnough(required, force int) error {
	return oops.Code(CodeNotStrongEnough).
		With("required", required).
		With("force", force).
		Errorf("force %d is below the required %d", force, required)
}

// ErrTowerAlreadyOccupied is returned when a player already has a member
// in a tower.
func ErrTowerAlreadyOccupied(tower game.CardType) error {
	return oops.Code(CodeTowerAlreadyOccupied).
		With("tower", tower).
		Errorf("you already occupy the %s tower", tower)
}

// ErrLeaderRequirementsNotMet is returned when a leader cannot be activated.
func ErrLeaderRequirementsNotMet(leader string) error {
	return oops.Code(CodeLeaderRequirementsNotMet).
		With("leader", leader).
		Errorf("requirements for %s are not met", leader)
}

func errCode(code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// RefusalCode returns the error code carried by err, or UNKNOWN_ACTION for
// errors without one.
func RefusalCode(err error) string {
	if code := errutil.Code(err); code != "" {
		return code
	}
	return CodeUnknownAction
}

// RefusalMessage returns a player-facing explanation of err.
func RefusalMessage(err error) string {
	if err == nil {
		return ""
	}
	switch RefusalCode(err) {
	case CodeInsufficientResources:
		return "You don't have enough resources."
	case CodeInsufficientMilitaryPoints:
		return "You don't have enough military points."
	case CodePlaceOccupied:
		return "That place is already occupied."
	case CodeNotStrongEnough:
		return "Your family member is not strong enough."
	case CodeTowerAlreadyOccupied:
		return "You already have a family member in that tower."
	case CodeLeaderRequirementsNotMet:
		return "You don't meet that leader's requirements."
	case CodeNotYourTurn:
		return "It's not your turn."
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Error()
	}
	return err.Error()
}
