// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package protocol

// Handler receives notifications, one method per variant.
type Handler interface {
	OnLobby(LobbyNotification)
	OnModelUpdate(ModelUpdate)
	OnTurnEnabled(TurnEnabled)
	OnTurnDisabled(TurnDisabled)
	OnTimeoutExpired(TimeoutExpired)
	OnImmediateActionAvailable(ImmediateActionAvailable)
	OnActionPerformed(ActionPerformed)
	OnActionRefused(ActionRefused)
	OnMatchEnded(MatchEnded)
	OnLoginSucceeded(LoginSucceeded)
	OnLoginFailed(LoginFailed)
	OnRegistrationSucceeded(RegistrationSucceeded)
	OnRegistrationFailed(RegistrationFailed)
}

// Dispatch calls the Handler method matching n's variant. It reports false
// for an unknown variant.
func Dispatch(h Handler, n Notification) bool {
	switch v := n.(type) {
	case LobbyNotification:
		h.OnLobby(v)
	case ModelUpdate:
		h.OnModelUpdate(v)
	case TurnEnabled:
		h.OnTurnEnabled(v)
	case TurnDisabled:
		h.OnTurnDisabled(v)
	case TimeoutExpired:
		h.OnTimeoutExpired(v)
	case ImmediateActionAvailable:
		h.OnImmediateActionAvailable(v)
	case ActionPerformed:
		h.OnActionPerformed(v)
	case ActionRefused:
		h.OnActionRefused(v)
	case MatchEnded:
		h.OnMatchEnded(v)
	case LoginSucceeded:
		h.OnLoginSucceeded(v)
	case LoginFailed:
		h.OnLoginFailed(v)
	case RegistrationSucceeded:
		h.OnRegistrationSucceeded(v)
	case RegistrationFailed:
		h.OnRegistrationFailed(v)
	default:
		return false
	}
	return true
}
