// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package transport

import (
	"sync"

	"github.com/lorenzo-online/lorenzo/internal/notify"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

// ClientState is the client-side bookkeeping every binding shares: the
// session token, whether a login succeeded and the observers to notify.
// Bindings embed it and feed it what arrives from the wire.
type ClientState struct {
	observers notify.Emitter[Observer]

	mu            sync.RWMutex
	token         string
	username      string
	authenticated bool

	disconnect sync.Once
}

// AddObserver registers o for every subsequent notification.
func (c *ClientState) AddObserver(o Observer) { c.observers.AddObserver(o) }

// RemoveObserver unregisters o.
func (c *ClientState) RemoveObserver(o Observer) { c.observers.RemoveObserver(o) }

// SetToken records the session token returned by Connect.
func (c *ClientState) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the session token, or "" before Connect.
func (c *ClientState) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Username returns the authenticated username, or "".
func (c *ClientState) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Guard reports why an action cannot be submitted yet, or nil.
func (c *ClientState) Guard() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return NotConnectedError()
	}
	if !c.authenticated {
		return NotAuthenticatedError()
	}
	return nil
}

// Deliver records authentication results and hands n to every observer.
func (c *ClientState) Deliver(n protocol.Notification) {
	switch v := n.(type) {
	case protocol.LoginSucceeded:
		c.authenticate(v.Username)
	case protocol.RegistrationSucceeded:
		c.authenticate(v.Username)
	}
	c.observers.Notify(func(o Observer) { protocol.Dispatch(o, n) })
}

func (c *ClientState) authenticate(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
	c.username = username
}

// Disconnected clears the connection and reports err to the observers. Only
// the first call has any effect.
func (c *ClientState) Disconnected(err error) {
	c.disconnect.Do(func() {
		c.mu.Lock()
		c.token = ""
		c.authenticated = false
		c.mu.Unlock()

		c.observers.Notify(func(o Observer) { o.OnDisconnection(err) })
	})
}
