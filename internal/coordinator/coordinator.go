// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package coordinator drives a player through a match from the client
// side. A single control goroutine asks the operator for decisions,
// submits them through a transport.Binding and suspends until the server's
// answer arrives as a token.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
)

// Sentinel errors for the coordinator's wait points.
var (
	// ErrNoActionPerformed is returned when the server closed the player's
	// action window before a decision was settled.
	ErrNoActionPerformed = errors.New("no action performed")
	// ErrMatchEnded is returned when the match ended during a wait.
	ErrMatchEnded = errors.New("match ended")
	// ErrInputClosed is returned when the operator's input ends.
	ErrInputClosed = errors.New("input closed")
)

// State is the coordinator's position in a turn.
type State int32

// Coordinator states.
const (
	Idle State = iota
	AwaitingCommand
	AwaitingStandardConfirmation
	AwaitingImmediateConfirmation
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingCommand:
		return "awaiting_command"
	case AwaitingStandardConfirmation:
		return "awaiting_standard_confirmation"
	case AwaitingImmediateConfirmation:
		return "awaiting_immediate_confirmation"
	}
	return "unknown"
}

// Presenter shows the coordinator's output to the operator. Answers come
// back as raw lines through the InputQueue. Implementations must be safe
// for concurrent use.
type Presenter interface {
	// Prompt asks a question. When choices is non-empty the operator
	// answers with a 1-based choice number.
	Prompt(question string, choices []string)
	Info(message string)
	Warn(message string)
	Board(s *game.Session, self string)
	Standings(standings []game.Standing)
}

// Coordinator is the client's turn engine. Run it once.
type Coordinator struct {
	binding   transport.Binding
	presenter Presenter
	input     *InputQueue
	logger    *slog.Logger
	obs       *observer

	tokens chan Token
	state  atomic.Int32
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// New creates a coordinator that reads the operator's answers from input.
func New(b transport.Binding, p Presenter, input *InputQueue, opts ...Option) *Coordinator {
	c := &Coordinator{
		binding:   b,
		presenter: p,
		input:     input,
		logger:    slog.Default(),
		tokens:    make(chan Token, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.obs = newObserver(p, c.logger)
	return c
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		c.logger.Debug("state changed", "from", prev, "to", s)
	}
}

// Run connects, authenticates and plays until the match ends, the
// connection drops, the operator's input ends or ctx is cancelled. It
// returns nil when the match ended normally.
func (c *Coordinator) Run(ctx context.Context) error {
	c.binding.AddObserver(c.obs)
	defer c.binding.RemoveObserver(c.obs)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pump(ctx)
	}()
	defer func() {
		c.obs.tokens.Close()
		cancel()
		wg.Wait()
	}()

	if _, err := c.binding.Connect(ctx); err != nil {
		c.presenter.Warn("Could not reach the server: " + err.Error())
		return err
	}
	if err := c.authenticate(ctx); err != nil {
		return c.finish(err)
	}
	c.presenter.Info("Waiting for the match to start...")

	for {
		c.setState(Idle)
		t, err := c.next(ctx)
		switch {
		case errors.Is(err, ErrNoActionPerformed):
			continue
		case err != nil:
			return c.finish(err)
		}
		if t.Kind != TokenTurn {
			c.logger.Debug("token ignored while idle", "kind", t.Kind)
			continue
		}

		c.presenter.Info(t.Message)
		err = c.playTurn(ctx)
		switch {
		case errors.Is(err, ErrNoActionPerformed):
			c.presenter.Warn("Time is up. Your turn has been disabled.")
		case err != nil:
			return c.finish(err)
		}
	}
}

// finish turns the error that stopped Run into its result.
func (c *Coordinator) finish(err error) error {
	if errors.Is(err, ErrMatchEnded) {
		c.setState(Idle)
		c.presenter.Info("The match is over.")
		return nil
	}
	return err
}

// pump moves tokens from the observer's outbox into the one-slot token
// channel, waiting for the control goroutine to take each one.
func (c *Coordinator) pump(ctx context.Context) {
	for {
		t, err := c.obs.tokens.Next(ctx)
		if err != nil {
			return
		}
		select {
		case c.tokens <- t:
		case <-ctx.Done():
			return
		}
	}
}

// next waits for a token. Tokens that end the current flow come back as
// errors alongside the token itself.
func (c *Coordinator) next(ctx context.Context) (Token, error) {
	select {
	case t := <-c.tokens:
		return t, interrupt(t)
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

func interrupt(t Token) error {
	switch t.Kind {
	case TokenEmpty:
		return ErrNoActionPerformed
	case TokenMatchEnded:
		return ErrMatchEnded
	case TokenDisconnected:
		if t.Err == nil {
			return oops.Code("DISCONNECTED").Errorf("connection closed")
		}
		return oops.Code("DISCONNECTED").Wrap(t.Err)
	}
	return nil
}

// readLine waits for the operator's next line. The wait also watches the
// token channel so the server can end it.
func (c *Coordinator) readLine(ctx context.Context) (string, error) {
	for {
		select {
		case line, ok := <-c.input.C():
			if !ok {
				return "", ErrInputClosed
			}
			return strings.TrimSpace(line), nil
		case t := <-c.tokens:
			if err := interrupt(t); err != nil {
				return "", err
			}
			c.logger.Debug("token ignored while reading input", "kind", t.Kind)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (c *Coordinator) authenticate(ctx context.Context) error {
	for {
		mode, err := c.choose(ctx, "Do you want to log in or register?", []string{"Log in", "Register"})
		if err != nil {
			return err
		}
		username, err := c.ask(ctx, "Username")
		if err != nil {
			return err
		}
		password, err := c.ask(ctx, "Password")
		if err != nil {
			return err
		}

		creds := transport.Credentials{Username: username, Password: password}
		if mode == 0 {
			err = c.binding.Login(ctx, creds)
		} else {
			err = c.binding.Register(ctx, creds)
		}
		if err != nil {
			return err
		}

		for {
			t, err := c.next(ctx)
			if err != nil {
				return err
			}
			if t.Kind == TokenAuthenticated {
				c.presenter.Info(t.Message)
				return nil
			}
			if t.Kind == TokenAuthFailed {
				c.presenter.Warn(t.Message)
				break
			}
			c.logger.Debug("token ignored while authenticating", "kind", t.Kind)
		}
	}
}

// playTurn runs one turn until the player ends it.
func (c *Coordinator) playTurn(ctx context.Context) error {
	if s := c.obs.model(); s != nil {
		c.presenter.Board(s, c.obs.self())
	}
	for {
		c.setState(AwaitingCommand)
		a, err := c.command(ctx)
		if err != nil {
			return err
		}
		if a == nil {
			continue
		}

		if err := c.binding.PerformAction(ctx, a); err != nil {
			return err
		}
		over, err := c.awaitConfirmation(ctx, a)
		if err != nil {
			return err
		}
		if over {
			return nil
		}
	}
}

// awaitConfirmation waits for the server to settle pending, handling the
// immediate decisions it triggers first. It reports whether the turn is
// over.
func (c *Coordinator) awaitConfirmation(ctx context.Context, pending protocol.Action) (bool, error) {
	c.setState(AwaitingStandardConfirmation)
	for {
		t, err := c.next(ctx)
		if err != nil {
			return false, err
		}
		switch t.Kind {
		case TokenImmediate:
			if err := c.resolveImmediate(ctx, t); err != nil {
				return false, err
			}
			c.setState(AwaitingStandardConfirmation)
		case TokenConfirmation:
			if t.Action != nil && t.Action != pending {
				c.logger.Debug("unrelated confirmation ignored", "kind", t.Action.Kind())
				continue
			}
			if t.Refused {
				c.presenter.Warn(t.Message)
				return false, nil
			}
			c.presenter.Info(t.Message)
			_, over := pending.(protocol.TerminateRound)
			return over, nil
		default:
			c.logger.Debug("token ignored while awaiting confirmation", "kind", t.Kind)
		}
	}
}

// resolveImmediate asks for the decision t requests and resubmits until
// the server accepts one.
func (c *Coordinator) resolveImmediate(ctx context.Context, t Token) error {
	c.setState(AwaitingImmediateConfirmation)
	c.presenter.Info(t.Message)
	for {
		a, err := c.decision(ctx, t.Immediate)
		if err != nil {
			return err
		}
		if err := c.binding.PerformAction(ctx, a); err != nil {
			return err
		}

		refused, err := c.awaitDecision(ctx, a)
		if err != nil {
			return err
		}
		if !refused {
			return nil
		}
	}
}

func (c *Coordinator) awaitDecision(ctx context.Context, a protocol.Action) (bool, error) {
	for {
		t, err := c.next(ctx)
		if err != nil {
			return false, err
		}
		if t.Kind != TokenConfirmation || (t.Action != nil && t.Action != a) {
			c.logger.Debug("token ignored while awaiting a decision", "kind", t.Kind)
			continue
		}
		if t.Refused {
			c.presenter.Warn(t.Message)
			return true, nil
		}
		c.presenter.Info(t.Message)
		return false, nil
	}
}
