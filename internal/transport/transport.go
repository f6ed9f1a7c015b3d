// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package transport defines the contract shared by every network binding
// between the server and a player's client.
//
// A binding has two halves. The server half accepts connections and hands
// each request to a Core, giving it a Handle through which notifications
// flow back. The client half implements Binding and fans the notifications
// it receives out to registered Observers.
package transport

import (
	"context"

	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

// Credentials identify a player.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handle is the server's end of one client connection. PushNotification
// never blocks on network I/O; notifications reach the client in the order
// they were pushed.
type Handle interface {
	PushNotification(n protocol.Notification)
}

// Core is the server logic a binding forwards requests to. Login and
// Register report their outcome asynchronously through the connection's
// Handle; their error results only cover protocol misuse such as an
// unknown token.
type Core interface {
	// Connect opens a connection for a client speaking the given protocol
	// version and returns its session token.
	Connect(ctx context.Context, version string, h Handle) (string, error)
	Login(ctx context.Context, token string, creds Credentials) error
	Register(ctx context.Context, token string, creds Credentials) error
	// PerformAction submits an action. The sender is overridden with the
	// connection's authenticated username.
	PerformAction(ctx context.Context, token string, a protocol.Action) error
	// Disconnect releases the connection. It is safe to call more than once.
	Disconnect(token string)
}

// Observer receives everything a client binding learns from the server.
type Observer interface {
	protocol.Handler
	// OnDisconnection is called exactly once when the connection drops.
	OnDisconnection(err error)
}

// Binding is the client's end of a connection.
type Binding interface {
	// Connect reaches the server and returns the session token.
	Connect(ctx context.Context) (string, error)
	Login(ctx context.Context, creds Credentials) error
	Register(ctx context.Context, creds Credentials) error
	// PerformAction submits an action. It fails fast when the binding is
	// not connected or not authenticated; the action's outcome arrives as
	// a notification.
	PerformAction(ctx context.Context, a protocol.Action) error
	AddObserver(o Observer)
	RemoveObserver(o Observer)
	Close() error
}

// BaseObserver implements Observer with no-op methods. Embed it to handle
// only the notifications you care about.
type BaseObserver struct{}

var _ Observer = BaseObserver{}

func (BaseObserver) OnLobby(protocol.LobbyNotification)                           {}
func (BaseObserver) OnModelUpdate(protocol.ModelUpdate)                           {}
func (BaseObserver) OnTurnEnabled(protocol.TurnEnabled)                           {}
func (BaseObserver) OnTurnDisabled(protocol.TurnDisabled)                         {}
func (BaseObserver) OnTimeoutExpired(protocol.TimeoutExpired)                     {}
func (BaseObserver) OnImmediateActionAvailable(protocol.ImmediateActionAvailable) {}
func (BaseObserver) OnActionPerformed(protocol.ActionPerformed)                   {}
func (BaseObserver) OnActionRefused(protocol.ActionRefused)                       {}
func (BaseObserver) OnMatchEnded(protocol.MatchEnded)                             {}
func (BaseObserver) OnLoginSucceeded(protocol.LoginSucceeded)                     {}
func (BaseObserver) OnLoginFailed(protocol.LoginFailed)                           {}
func (BaseObserver) OnRegistrationSucceeded(protocol.RegistrationSucceeded)       {}
func (BaseObserver) OnRegistrationFailed(protocol.RegistrationFailed)             {}
func (BaseObserver) OnDisconnection(error)                                        {}
