// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package protocol

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/game"
)

// NotificationKind is the wire tag of a Notification variant.
type NotificationKind string

// Notification kinds.
const (
	KindLobby                    NotificationKind = "lobby"
	KindModelUpdate              NotificationKind = "model_update"
	KindTurnEnabled              NotificationKind = "turn_enabled"
	KindTurnDisabled             NotificationKind = "turn_disabled"
	KindTimeoutExpired           NotificationKind = "timeout_expired"
	KindImmediateActionAvailable NotificationKind = "immediate_action_available"
	KindActionPerformed          NotificationKind = "action_performed"
	KindActionRefused            NotificationKind = "action_refused"
	KindMatchEnded               NotificationKind = "match_ended"
	KindLoginSucceeded           NotificationKind = "login_succeeded"
	KindLoginFailed              NotificationKind = "login_failed"
	KindRegistrationSucceeded    NotificationKind = "registration_succeeded"
	KindRegistrationFailed       NotificationKind = "registration_failed"
)

// Notification is a server-originated event.
type Notification interface {
	Kind() NotificationKind
	isNotification()
}

// Lobby notification types.
const (
	LobbyPlayerJoined = "player_joined"
	LobbyPlayerLeft   = "player_left"
	LobbyMatchStarted = "match_started"
	LobbyInfo         = "info"
)

// LobbyNotification reports pre-match and lobby events.
type LobbyNotification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ModelUpdate carries a full session snapshot. Receivers must treat it as
// read-only.
type ModelUpdate struct {
	Snapshot *game.Session `json:"snapshot"`
}

// TurnEnabled announces that player may act.
type TurnEnabled struct {
	Player  string `json:"player"`
	Message string `json:"message"`
}

// TurnDisabled announces that player's turn is over.
type TurnDisabled struct {
	Player  string `json:"player"`
	Message string `json:"message"`
}

// TimeoutExpired announces that player's action window lapsed.
type TimeoutExpired struct {
	Player  string `json:"player"`
	Message string `json:"message"`
}

// ImmediateActionAvailable asks player for an immediate decision.
type ImmediateActionAvailable struct {
	ActionType game.ImmediateKind `json:"action_type"`
	Player     string             `json:"player"`
	Message    string             `json:"message"`
	Immediate  game.Immediate     `json:"immediate"`
}

// ActionPerformed confirms an accepted action.
type ActionPerformed struct {
	Player  string
	Action  Action
	Message string
}

// ActionRefused reports a rejected action. Code is the machine-readable
// rejection reason.
type ActionRefused struct {
	Action  Action
	Code    string
	Message string
}

// MatchEnded carries the final standings.
type MatchEnded struct {
	Standings []game.Standing `json:"standings"`
	Message   string          `json:"message"`
}

// LoginSucceeded confirms authentication.
type LoginSucceeded struct {
	Username string `json:"username"`
}

// LoginFailed reports rejected credentials.
type LoginFailed struct {
	Reason string `json:"reason"`
}

// RegistrationSucceeded confirms a new account.
type RegistrationSucceeded struct {
	Username string `json:"username"`
}

// RegistrationFailed reports a rejected registration.
type RegistrationFailed struct {
	Reason string `json:"reason"`
}

func (LobbyNotification) Kind() NotificationKind        { return KindLobby }
func (ModelUpdate) Kind() NotificationKind              { return KindModelUpdate }
func (TurnEnabled) Kind() NotificationKind              { return KindTurnEnabled }
func (TurnDisabled) Kind() NotificationKind             { return KindTurnDisabled }
func (TimeoutExpired) Kind() NotificationKind           { return KindTimeoutExpired }
func (ImmediateActionAvailable) Kind() NotificationKind { return KindImmediateActionAvailable }
func (ActionPerformed) Kind() NotificationKind          { return KindActionPerformed }
func (ActionRefused) Kind() NotificationKind            { return KindActionRefused }
func (MatchEnded) Kind() NotificationKind               { return KindMatchEnded }
func (LoginSucceeded) Kind() NotificationKind           { return KindLoginSucceeded }
func (LoginFailed) Kind() NotificationKind              { return KindLoginFailed }
func (RegistrationSucceeded) Kind() NotificationKind    { return KindRegistrationSucceeded }
func (RegistrationFailed) Kind() NotificationKind       { return KindRegistrationFailed }

func (LobbyNotification) isNotification()        {}
func (ModelUpdate) isNotification()              {}
func (TurnEnabled) isNotification()              {}
func (TurnDisabled) isNotification()             {}
func (TimeoutExpired) isNotification()           {}
func (ImmediateActionAvailable) isNotification() {}
func (ActionPerformed) isNotification()          {}
func (ActionRefused) isNotification()            {}
func (MatchEnded) isNotification()               {}
func (LoginSucceeded) isNotification()           {}
func (LoginFailed) isNotification()              {}
func (RegistrationSucceeded) isNotification()    {}
func (RegistrationFailed) isNotification()       {}

type actionPerformedWire struct {
	Player  string         `json:"player"`
	Action  ActionEnvelope `json:"action"`
	Message string         `json:"message"`
}

// MarshalJSON encodes the action through its envelope.
func (n ActionPerformed) MarshalJSON() ([]byte, error) {
	env, err := EncodeAction(n.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionPerformedWire{Player: n.Player, Action: env, Message: n.Message})
}

// UnmarshalJSON decodes the enveloped action.
func (n *ActionPerformed) UnmarshalJSON(data []byte) error {
	var w actionPerformedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a, err := DecodeAction(w.Action)
	if err != nil {
		return err
	}
	*n = ActionPerformed{Player: w.Player, Action: a, Message: w.Message}
	return nil
}

type actionRefusedWire struct {
	Action  *ActionEnvelope `json:"action,omitempty"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

// MarshalJSON encodes the action through its envelope. A refusal may carry
// no action when the request could not be decoded.
func (n ActionRefused) MarshalJSON() ([]byte, error) {
	w := actionRefusedWire{Code: n.Code, Message: n.Message}
	if n.Action != nil {
		env, err := EncodeAction(n.Action)
		if err != nil {
			return nil, err
		}
		w.Action = &env
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the enveloped action.
func (n *ActionRefused) UnmarshalJSON(data []byte) error {
	var w actionRefusedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = ActionRefused{Code: w.Code, Message: w.Message}
	if w.Action != nil {
		a, err := DecodeAction(*w.Action)
		if err != nil {
			return err
		}
		n.Action = a
	}
	return nil
}

// Envelope is the wire form of a Notification, shared by every transport.
type Envelope struct {
	Kind    NotificationKind `json:"kind"`
	Payload json.RawMessage  `json:"payload"`
}

// Encode wraps a notification in its envelope.
func Encode(n Notification) (Envelope, error) {
	if n == nil {
		return Envelope{}, oops.Code("NOTIFICATION_ENCODE_FAILED").Errorf("nil notification")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return Envelope{}, oops.Code("NOTIFICATION_ENCODE_FAILED").With("kind", n.Kind()).Wrap(err)
	}
	return Envelope{Kind: n.Kind(), Payload: payload}, nil
}

// Decode unwraps an envelope into its Notification variant.
func Decode(env Envelope) (Notification, error) {
	switch env.Kind {
	case KindLobby:
		return decodeNotification[LobbyNotification](env)
	case KindModelUpdate:
		return decodeNotification[ModelUpdate](env)
	case KindTurnEnabled:
		return decodeNotification[TurnEnabled](env)
	case KindTurnDisabled:
		return decodeNotification[TurnDisabled](env)
	case KindTimeoutExpired:
		return decodeNotification[TimeoutExpired](env)
	case KindImmediateActionAvailable:
		return decodeNotification[ImmediateActionAvailable](env)
	case KindActionPerformed:
		return decodeNotification[ActionPerformed](env)
	case KindActionRefused:
		return decodeNotification[ActionRefused](env)
	case KindMatchEnded:
		return decodeNotification[MatchEnded](env)
	case KindLoginSucceeded:
		return decodeNotification[LoginSucceeded](env)
	case KindLoginFailed:
		return decodeNotification[LoginFailed](env)
	case KindRegistrationSucceeded:
		return decodeNotification[RegistrationSucceeded](env)
	case KindRegistrationFailed:
		return decodeNotification[RegistrationFailed](env)
	}
	return nil, oops.Code("UNKNOWN_NOTIFICATION").With("kind", env.Kind).Errorf("unknown notification kind %q", env.Kind)
}

func decodeNotification[T Notification](env Envelope) (Notification, error) {
	var n T
	if err := json.Unmarshal(env.Payload, &n); err != nil {
		return nil, oops.Code("NOTIFICATION_DECODE_FAILED").With("kind", env.Kind).Wrap(err)
	}
	return n, nil
}
