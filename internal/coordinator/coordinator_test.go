// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

// fakeBinding plays the server: it answers credentials and hands every
// action to respond, which may deliver notifications back.
type fakeBinding struct {
	transport.ClientState

	connectErr error
	respond    func(b *fakeBinding, a protocol.Action)

	mu      sync.Mutex
	actions []protocol.Action
}

func (b *fakeBinding) Connect(context.Context) (string, error) {
	if b.connectErr != nil {
		return "", b.connectErr
	}
	b.SetToken("tok")
	return "tok", nil
}

func (b *fakeBinding) Login(_ context.Context, creds transport.Credentials) error {
	if creds.Password != "secret" {
		b.Deliver(protocol.LoginFailed{Reason: "wrong username or password"})
		return nil
	}
	b.Deliver(protocol.LoginSucceeded{Username: creds.Username})
	return nil
}

func (b *fakeBinding) Register(_ context.Context, creds transport.Credentials) error {
	b.Deliver(protocol.RegistrationSucceeded{Username: creds.Username})
	return nil
}

func (b *fakeBinding) PerformAction(_ context.Context, a protocol.Action) error {
	if err := b.Guard(); err != nil {
		return err
	}
	b.mu.Lock()
	b.actions = append(b.actions, a)
	b.mu.Unlock()
	if b.respond != nil {
		b.respond(b, a)
	}
	return nil
}

func (b *fakeBinding) Close() error { return nil }

func (b *fakeBinding) sent() []protocol.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.actions)
}

// scriptedPresenter answers prompts from a fixed list, in order.
type scriptedPresenter struct {
	input *InputQueue

	mu      sync.Mutex
	answers []string
	prompts []string
	infos   []string
	warns   []string
}

func (p *scriptedPresenter) Prompt(question string, _ []string) {
	p.mu.Lock()
	p.prompts = append(p.prompts, question)
	answer, ok := "", len(p.answers) > 0
	if ok {
		answer, p.answers = p.answers[0], p.answers[1:]
	}
	p.mu.Unlock()
	if ok {
		p.input.Offer(answer)
	}
}

func (p *scriptedPresenter) Info(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.infos = append(p.infos, message)
}

func (p *scriptedPresenter) Warn(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warns = append(p.warns, message)
}

func (p *scriptedPresenter) Board(*game.Session, string) {}
func (p *scriptedPresenter) Standings([]game.Standing)   {}

func (p *scriptedPresenter) seen(list *[]string, message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(*list, message)
}

func (p *scriptedPresenter) prompted(question string) bool { return p.seen(&p.prompts, question) }
func (p *scriptedPresenter) informed(message string) bool  { return p.seen(&p.infos, message) }
func (p *scriptedPresenter) warned(message string) bool    { return p.seen(&p.warns, message) }

func (p *scriptedPresenter) warnCount(message string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, w := range p.warns {
		if w == message {
			n++
		}
	}
	return n
}

func (p *scriptedPresenter) infoIndex(message string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Index(p.infos, message)
}

type harness struct {
	binding   *fakeBinding
	presenter *scriptedPresenter
	coord     *Coordinator
	result    chan error
}

func start(t *testing.T, b *fakeBinding, answers ...string) *harness {
	t.Helper()
	input := NewInputQueue()
	p := &scriptedPresenter{input: input, answers: answers}
	c := New(b, p, input, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{binding: b, presenter: p, coord: c, result: make(chan error, 1)}
	go func() { h.result <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.result
	})
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.result:
		h.result <- err
		return err
	case <-time.After(waitFor):
		t.Fatal("coordinator did not stop")
		return nil
	}
}

// inMatch waits for login to finish, then opens alice's turn on board.
func (h *harness) inMatch(t *testing.T, board *game.Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.presenter.informed("Waiting for the match to start...")
	}, waitFor, 5*time.Millisecond)
	h.binding.Deliver(protocol.ModelUpdate{Snapshot: board})
	h.binding.Deliver(protocol.TurnEnabled{Player: "alice", Message: "It's alice's turn."})
}

var login = []string{"1", "alice", "secret"}

func session(rolled bool) *game.Session {
	alice := game.NewPlayer("alice", game.Goods{Coins: 5, Servants: 3}, game.BonusTile{})
	return &game.Session{
		Players: []*game.Player{alice},
		Order:   []string{"alice"},
		Board: game.Board{
			Towers: []game.Tower{{
				Type:  game.CardTerritory,
				Slots: []game.Slot{{Force: 1, Card: &game.Card{ID: "outpost", Name: "Outpost"}}},
			}},
			Dice: game.Dice{Black: 3, White: 4, Orange: 5, Rolled: rolled},
		},
	}
}

func TestCoordinator_TimeoutWhileAwaitingCommand(t *testing.T) {
	b := &fakeBinding{}
	h := start(t, b, login...)
	h.inMatch(t, session(true))

	require.Eventually(t, func() bool {
		return h.presenter.prompted("What do you want to do?")
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, AwaitingCommand, h.coord.State())

	b.Deliver(protocol.TimeoutExpired{Player: "alice", Message: "alice ran out of time."})
	b.Deliver(protocol.TurnDisabled{Player: "alice", Message: "alice's time is up."})

	require.Eventually(t, func() bool {
		return h.presenter.warned("Time is up. Your turn has been disabled.")
	}, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.coord.State() == Idle }, waitFor, 5*time.Millisecond)
	assert.True(t, h.presenter.informed("alice's time is up."))
	assert.Empty(t, b.sent(), "no action may reach the server")

	b.Deliver(protocol.MatchEnded{Message: "Game over."})
	assert.NoError(t, h.wait(t))
}

func TestCoordinator_ImmediateDecisionIsRetriedUntilAccepted(t *testing.T) {
	var placement protocol.Action
	b := &fakeBinding{}
	b.respond = func(b *fakeBinding, a protocol.Action) {
		switch act := a.(type) {
		case protocol.Placement:
			placement = a
			b.Deliver(protocol.ImmediateActionAvailable{
				ActionType: game.ImmediatePrivilege,
				Player:     "alice",
				Message:    "Choose a council privilege.",
				Immediate:  game.Immediate{Kind: game.ImmediatePrivilege, Options: 5},
			})
		case protocol.ImmediateChoice:
			if act.Selection == 0 {
				b.Deliver(protocol.ActionRefused{Action: a, Code: "INVALID_SELECTION", Message: "Not that one."})
				return
			}
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: a, Message: "Decision accepted."})
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: placement, Message: "alice took Outpost."})
		case protocol.TerminateRound:
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: a, Message: "alice ended the turn."})
			b.Deliver(protocol.MatchEnded{Message: "Game over."})
		}
	}

	answers := append(slices.Clone(login),
		"2", // place a family member
		"1", // tower
		"1", // territory
		"1", // floor 1
		"1", // black member
		"2", // servants
		"1", // privilege 1, refused
		"2", // privilege 2
		"4", // end the turn
	)
	h := start(t, b, answers...)
	h.inMatch(t, session(true))

	require.NoError(t, h.wait(t))
	assert.Equal(t, []protocol.Action{
		protocol.Placement{Player: "alice", Target: protocol.TargetTower, Tower: game.CardTerritory, Member: game.MemberBlack, Servants: 2},
		protocol.ImmediateChoice{Player: "alice", Immediate: game.ImmediatePrivilege, Selection: 0},
		protocol.ImmediateChoice{Player: "alice", Immediate: game.ImmediatePrivilege, Selection: 1},
		protocol.TerminateRound{Player: "alice"},
	}, b.sent())

	assert.True(t, h.presenter.warned("Not that one."))
	accepted, confirmed := h.presenter.infoIndex("Decision accepted."), h.presenter.infoIndex("alice took Outpost.")
	require.NotEqual(t, -1, accepted)
	assert.Less(t, accepted, confirmed, "the standard confirmation follows the immediate decision")
	assert.Equal(t, Idle, h.coord.State())
}

func TestCoordinator_RefusalReturnsToCommand(t *testing.T) {
	b := &fakeBinding{}
	b.respond = func(b *fakeBinding, a protocol.Action) {
		switch a.(type) {
		case protocol.RollDice:
			b.Deliver(protocol.ActionRefused{Action: a, Code: "DICE_ALREADY_ROLLED", Message: "The dice are already rolled."})
		case protocol.TerminateRound:
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: a, Message: "alice ended the turn."})
			b.Deliver(protocol.MatchEnded{Message: "Game over."})
		}
	}

	h := start(t, b, append(slices.Clone(login), "2", "1", "4")...)
	h.inMatch(t, session(false))

	require.NoError(t, h.wait(t))
	assert.True(t, h.presenter.warned("The dice must be rolled first."))
	assert.True(t, h.presenter.warned("The dice are already rolled."))
	assert.Equal(t, []protocol.Action{
		protocol.RollDice{Player: "alice"},
		protocol.TerminateRound{Player: "alice"},
	}, b.sent())
}

func TestCoordinator_DiceAlreadyRolledIsNotSent(t *testing.T) {
	b := &fakeBinding{}
	b.respond = func(b *fakeBinding, a protocol.Action) {
		if _, ok := a.(protocol.TerminateRound); ok {
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: a, Message: "alice ended the turn."})
			b.Deliver(protocol.MatchEnded{Message: "Game over."})
		}
	}

	h := start(t, b, append(slices.Clone(login), "1", "4")...)
	h.inMatch(t, session(true))

	require.NoError(t, h.wait(t))
	assert.True(t, h.presenter.warned("The dice are already rolled."))
	assert.Equal(t, []protocol.Action{protocol.TerminateRound{Player: "alice"}}, b.sent())
}

func TestCoordinator_TakeCardCanBeSkipped(t *testing.T) {
	var placement protocol.Action
	b := &fakeBinding{}
	b.respond = func(b *fakeBinding, a protocol.Action) {
		switch a.(type) {
		case protocol.Placement:
			placement = a
			b.Deliver(protocol.ImmediateActionAvailable{
				ActionType: game.ImmediateTakeCard,
				Player:     "alice",
				Message:    "You may take a building card.",
				Immediate:  game.Immediate{Kind: game.ImmediateTakeCard, CardType: game.CardBuilding, Force: 4},
			})
		case protocol.ImmediateChoice:
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: a, Message: "alice passed."})
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: placement, Message: "alice took Outpost."})
		case protocol.TerminateRound:
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: a, Message: "alice ended the turn."})
			b.Deliver(protocol.MatchEnded{Message: "Game over."})
		}
	}

	answers := append(slices.Clone(login),
		"2", // place a family member
		"1", // tower
		"1", // territory
		"1", // floor 1
		"1", // black member
		"0", // servants
		"2", // skip the card
		"4", // end the turn
	)
	h := start(t, b, answers...)
	h.inMatch(t, session(true))

	require.NoError(t, h.wait(t))
	assert.True(t, h.presenter.prompted("Do you want to take a card?"))
	assert.Equal(t, []protocol.Action{
		protocol.Placement{Player: "alice", Target: protocol.TargetTower, Tower: game.CardTerritory, Member: game.MemberBlack},
		protocol.ImmediateChoice{Player: "alice", Immediate: game.ImmediateTakeCard, Selection: protocol.Decline},
		protocol.TerminateRound{Player: "alice"},
	}, b.sent())
}

func TestCoordinator_LateActionReportsTimeoutOnce(t *testing.T) {
	b := &fakeBinding{}
	b.respond = func(b *fakeBinding, a protocol.Action) {
		switch a.(type) {
		case protocol.Placement:
			// The deadline lapses while the placement is in flight.
			b.Deliver(protocol.TimeoutExpired{Player: "alice", Message: "alice ran out of time."})
			b.Deliver(protocol.TurnDisabled{Player: "alice", Message: "alice's time is up."})
			b.Deliver(protocol.ActionRefused{Action: a, Code: "NOT_YOUR_TURN", Message: "It is not your turn."})
		case protocol.TerminateRound:
			b.Deliver(protocol.ActionPerformed{Player: "alice", Action: a, Message: "alice ended the turn."})
			b.Deliver(protocol.MatchEnded{Message: "Game over."})
		}
	}

	answers := append(slices.Clone(login), "2", "1", "1", "1", "1", "0", "4")
	h := start(t, b, answers...)
	h.inMatch(t, session(true))

	require.Eventually(t, func() bool {
		return h.presenter.warned("Time is up. Your turn has been disabled.")
	}, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.coord.State() == Idle }, waitFor, 5*time.Millisecond)
	b.Deliver(protocol.TurnEnabled{Player: "alice", Message: "It's alice's turn."})

	require.NoError(t, h.wait(t))
	assert.Equal(t, 1, h.presenter.warnCount("Time is up. Your turn has been disabled."))
	assert.False(t, h.presenter.warned("It is not your turn."), "the stale refusal is dropped")
	require.Len(t, b.sent(), 2)
	assert.Equal(t, protocol.TerminateRound{Player: "alice"}, b.sent()[1])
}

func TestCoordinator_OtherPlayersTurnIsOnlyShown(t *testing.T) {
	b := &fakeBinding{}
	h := start(t, b, login...)

	require.Eventually(t, func() bool {
		return h.presenter.informed("Waiting for the match to start...")
	}, waitFor, 5*time.Millisecond)
	b.Deliver(protocol.TurnEnabled{Player: "bob", Message: "It's bob's turn."})
	b.Deliver(protocol.TimeoutExpired{Player: "bob", Message: "bob ran out of time."})
	b.Deliver(protocol.MatchEnded{Message: "Game over."})

	require.NoError(t, h.wait(t))
	assert.True(t, h.presenter.informed("It's bob's turn."))
	assert.True(t, h.presenter.informed("bob ran out of time."))
	assert.False(t, h.presenter.prompted("What do you want to do?"))
}

func TestCoordinator_LoginFailureReprompts(t *testing.T) {
	b := &fakeBinding{}
	h := start(t, b, "1", "alice", "wrong", "1", "alice", "secret")

	require.Eventually(t, func() bool {
		return h.presenter.informed("Welcome, alice.")
	}, waitFor, 5*time.Millisecond)
	assert.True(t, h.presenter.warned("wrong username or password"))

	b.Deliver(protocol.MatchEnded{})
	require.NoError(t, h.wait(t))
}

func TestCoordinator_RegisterAndInvalidChoice(t *testing.T) {
	b := &fakeBinding{}
	h := start(t, b, "7", "2", "bob", "pw")

	require.Eventually(t, func() bool {
		return h.presenter.informed("Welcome, bob.")
	}, waitFor, 5*time.Millisecond)
	assert.True(t, h.presenter.warned("Please enter a number between 1 and 2."))

	b.Deliver(protocol.MatchEnded{})
	require.NoError(t, h.wait(t))
}

func TestCoordinator_ConnectFailure(t *testing.T) {
	b := &fakeBinding{connectErr: transport.ConnectionError("localhost:1", errors.New("refused"))}
	h := start(t, b)

	err := h.wait(t)
	errutil.AssertErrorCode(t, err, transport.CodeConnectionFailed)
	require.Len(t, h.presenter.warns, 1)
	assert.True(t, strings.HasPrefix(h.presenter.warns[0], "Could not reach the server"))
}

func TestCoordinator_Disconnection(t *testing.T) {
	b := &fakeBinding{}
	h := start(t, b, login...)

	require.Eventually(t, func() bool {
		return h.presenter.informed("Waiting for the match to start...")
	}, waitFor, 5*time.Millisecond)
	b.Disconnected(errors.New("connection reset"))

	errutil.AssertErrorCode(t, h.wait(t), "DISCONNECTED")
}

func TestCoordinator_InputClosed(t *testing.T) {
	b := &fakeBinding{}
	h := start(t, b)

	require.Eventually(t, func() bool {
		return h.presenter.prompted("Do you want to log in or register?")
	}, waitFor, 5*time.Millisecond)
	h.presenter.input.Close()

	assert.ErrorIs(t, h.wait(t), ErrInputClosed)
}

func TestInputQueue_LatestWins(t *testing.T) {
	q := NewInputQueue()
	assert.True(t, q.Offer("first"))
	assert.True(t, q.Offer("second"))
	assert.Equal(t, "second", <-q.C())

	q.Offer("last")
	q.Close()
	assert.False(t, q.Offer("late"))
	assert.Equal(t, "last", <-q.C())
	_, ok := <-q.C()
	assert.False(t, ok)
}

func TestReadLines(t *testing.T) {
	q := NewInputQueue()
	require.NoError(t, ReadLines(strings.NewReader("only\n"), q))

	assert.Equal(t, "only", <-q.C())
	_, ok := <-q.C()
	assert.False(t, ok)
}

func TestTokenKind_String(t *testing.T) {
	assert.Equal(t, "empty", Token{}.Kind.String())
	assert.Equal(t, "confirmation", TokenConfirmation.String())
	assert.Equal(t, "awaiting_immediate_confirmation", AwaitingImmediateConfirmation.String())
}
