// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package coordinator

import (
	"log/slog"
	"sync"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/notify"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
)

// observer turns what the binding delivers into tokens and presenter
// output. It runs on the binding's goroutine and never blocks it: tokens
// go to an unbounded outbox that the coordinator's pump drains.
type observer struct {
	presenter Presenter
	logger    *slog.Logger
	tokens    *notify.Outbox[Token]

	mu       sync.Mutex
	username string
	snapshot *game.Session
}

var _ transport.Observer = (*observer)(nil)

func newObserver(p Presenter, logger *slog.Logger) *observer {
	return &observer{presenter: p, logger: logger, tokens: notify.NewOutbox[Token]()}
}

func (o *observer) self() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.username
}

// model returns the latest snapshot, or nil before the first update.
func (o *observer) model() *game.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

func (o *observer) emit(t Token) {
	if !o.tokens.Push(t) {
		o.logger.Debug("token dropped after shutdown", "kind", t.Kind)
	}
}

func (o *observer) OnLobby(n protocol.LobbyNotification) {
	o.presenter.Info(n.Message)
}

func (o *observer) OnModelUpdate(n protocol.ModelUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshot = n.Snapshot
}

func (o *observer) OnTurnEnabled(n protocol.TurnEnabled) {
	if n.Player != o.self() {
		o.presenter.Info(n.Message)
		return
	}
	o.emit(Token{Kind: TokenTurn, Message: n.Message})
}

func (o *observer) OnTurnDisabled(n protocol.TurnDisabled) {
	o.presenter.Info(n.Message)
}

func (o *observer) OnTimeoutExpired(n protocol.TimeoutExpired) {
	if n.Player != o.self() {
		o.presenter.Info(n.Message)
		return
	}
	o.emit(Token{Kind: TokenEmpty, Message: n.Message})
}

func (o *observer) OnImmediateActionAvailable(n protocol.ImmediateActionAvailable) {
	o.emit(Token{Kind: TokenImmediate, Immediate: n.Immediate, Message: n.Message})
}

func (o *observer) OnActionPerformed(n protocol.ActionPerformed) {
	if n.Player != o.self() {
		o.presenter.Info(n.Message)
		return
	}
	o.emit(Token{Kind: TokenConfirmation, Action: n.Action, Message: n.Message})
}

func (o *observer) OnActionRefused(n protocol.ActionRefused) {
	o.emit(Token{Kind: TokenConfirmation, Action: n.Action, Refused: true, Message: n.Message})
}

func (o *observer) OnMatchEnded(n protocol.MatchEnded) {
	o.presenter.Standings(n.Standings)
	o.emit(Token{Kind: TokenMatchEnded, Message: n.Message})
}

func (o *observer) OnLoginSucceeded(n protocol.LoginSucceeded) {
	o.authenticated(n.Username)
}

func (o *observer) OnRegistrationSucceeded(n protocol.RegistrationSucceeded) {
	o.authenticated(n.Username)
}

func (o *observer) authenticated(username string) {
	o.mu.Lock()
	o.username = username
	o.mu.Unlock()
	o.emit(Token{Kind: TokenAuthenticated, Message: "Welcome, " + username + "."})
}

func (o *observer) OnLoginFailed(n protocol.LoginFailed) {
	o.emit(Token{Kind: TokenAuthFailed, Message: n.Reason})
}

func (o *observer) OnRegistrationFailed(n protocol.RegistrationFailed) {
	o.emit(Token{Kind: TokenAuthFailed, Message: n.Reason})
}

func (o *observer) OnDisconnection(err error) {
	o.emit(Token{Kind: TokenDisconnected, Err: err})
}
