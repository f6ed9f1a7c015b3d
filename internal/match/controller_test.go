// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package match_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/match"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/resolver"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

type recorder struct {
	mu  sync.Mutex
	got []protocol.Notification
}

func (r *recorder) PushNotification(n protocol.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) all() []protocol.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Notification(nil), r.got...)
}

func (r *recorder) kinds() []protocol.NotificationKind {
	var kinds []protocol.NotificationKind
	for _, n := range r.all() {
		kinds = append(kinds, n.Kind())
	}
	return kinds
}

func (r *recorder) count(kind protocol.NotificationKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *recorder) waitCount(t *testing.T, kind protocol.NotificationKind, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.count(kind) >= n }, waitFor, 5*time.Millisecond,
		"waiting for %d %s notifications, got %v", n, kind, r.kinds())
}

func (r *recorder) first(kind protocol.NotificationKind) protocol.Notification {
	for _, n := range r.all() {
		if n.Kind() == kind {
			return n
		}
	}
	return nil
}

func (r *recorder) last(kind protocol.NotificationKind) protocol.Notification {
	all := r.all()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Kind() == kind {
			return all[i]
		}
	}
	return nil
}

// start runs a match between alice and bob and stops it when the test ends.
func start(t *testing.T, timeout time.Duration, onEnd func(string)) (*match.Controller, *recorder, *recorder) {
	t.Helper()
	cat, err := game.DefaultCatalog()
	require.NoError(t, err)

	alice, bob := &recorder{}, &recorder{}
	c, err := match.New(match.Config{
		ID:          "m1",
		Catalog:     cat,
		Players:     []match.Seat{{Username: "alice", Handle: alice}, {Username: "bob", Handle: bob}},
		Seed:        42,
		TurnTimeout: timeout,
		OnEnd:       onEnd,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c, alice, bob
}

func TestConfig_Validate(t *testing.T) {
	cat, err := game.DefaultCatalog()
	require.NoError(t, err)
	seats := []match.Seat{{Username: "alice"}, {Username: "bob"}}

	tests := []struct {
		name string
		cfg  match.Config
		ok   bool
	}{
		{"valid", match.Config{Catalog: cat, Players: seats}, true},
		{"no catalog", match.Config{Players: seats}, false},
		{"one player", match.Config{Catalog: cat, Players: seats[:1]}, false},
		{"duplicate", match.Config{Catalog: cat, Players: []match.Seat{{Username: "a"}, {Username: "a"}}}, false},
		{"empty name", match.Config{Catalog: cat, Players: []match.Seat{{Username: "a"}, {}}}, false},
		{"negative timeout", match.Config{Catalog: cat, Players: seats, TurnTimeout: -time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MATCH_INVALID_CONFIG")
		})
	}
}

func TestController_StartsFirstTurn(t *testing.T) {
	_, alice, bob := start(t, time.Minute, nil)

	for _, r := range []*recorder{alice, bob} {
		r.waitCount(t, protocol.KindTurnEnabled, 1)
		assert.Equal(t, []protocol.NotificationKind{protocol.KindModelUpdate, protocol.KindTurnEnabled}, r.kinds())
		assert.Equal(t, "alice", r.last(protocol.KindTurnEnabled).(protocol.TurnEnabled).Player)
	}
}

func TestController_RefusesOutOfTurn(t *testing.T) {
	c, alice, bob := start(t, time.Minute, nil)
	bob.waitCount(t, protocol.KindTurnEnabled, 1)

	c.OnPlayerAction("bob", protocol.RollDice{Player: "mallory"})
	bob.waitCount(t, protocol.KindActionRefused, 1)

	refused := bob.last(protocol.KindActionRefused).(protocol.ActionRefused)
	assert.Equal(t, resolver.CodeNotYourTurn, refused.Code)
	assert.Equal(t, "bob", refused.Action.Sender(), "sender is overridden")
	assert.Zero(t, alice.count(protocol.KindActionRefused))

	s := c.Snapshot(context.Background())
	require.NotNil(t, s)
	assert.False(t, s.Board.Dice.Rolled)
}

func TestController_PerformedAfterModelUpdate(t *testing.T) {
	c, alice, bob := start(t, time.Minute, nil)
	alice.waitCount(t, protocol.KindTurnEnabled, 1)

	c.OnPlayerAction("alice", protocol.RollDice{})
	c.OnPlayerAction("alice", protocol.TerminateRound{})

	bob.waitCount(t, protocol.KindTurnEnabled, 2)
	assert.Equal(t, []protocol.NotificationKind{
		protocol.KindModelUpdate,
		protocol.KindTurnEnabled,
		protocol.KindModelUpdate,
		protocol.KindActionPerformed,
		protocol.KindModelUpdate,
		protocol.KindActionPerformed,
		protocol.KindTurnDisabled,
		protocol.KindTurnEnabled,
	}, bob.kinds())
	assert.Equal(t, bob.kinds(), alice.kinds())
	assert.Equal(t, "bob", bob.last(protocol.KindTurnEnabled).(protocol.TurnEnabled).Player)

	s := c.Snapshot(context.Background())
	require.NotNil(t, s)
	assert.True(t, s.Board.Dice.Rolled)
	assert.Equal(t, "bob", s.CurrentPlayer())
}

func TestController_ImmediateClosure(t *testing.T) {
	c, alice, _ := start(t, time.Minute, nil)
	alice.waitCount(t, protocol.KindTurnEnabled, 1)

	c.OnPlayerAction("alice", protocol.RollDice{})
	alice.waitCount(t, protocol.KindActionPerformed, 1)

	c.OnPlayerAction("alice", protocol.Placement{Target: protocol.TargetCouncil, Member: game.MemberNeutral, Servants: 1})
	alice.waitCount(t, protocol.KindImmediateActionAvailable, 1)
	assert.Equal(t, 1, alice.count(protocol.KindActionPerformed), "placement is not confirmed before its immediates")

	asked := alice.last(protocol.KindImmediateActionAvailable).(protocol.ImmediateActionAvailable)
	assert.Equal(t, game.ImmediatePrivilege, asked.ActionType)

	c.OnPlayerAction("alice", protocol.TerminateRound{})
	alice.waitCount(t, protocol.KindActionRefused, 1)
	assert.Equal(t, resolver.CodeImmediatePending, alice.last(protocol.KindActionRefused).(protocol.ActionRefused).Code)

	c.OnPlayerAction("alice", protocol.ImmediateChoice{Immediate: game.ImmediatePrivilege, Selection: 99})
	alice.waitCount(t, protocol.KindActionRefused, 2)
	assert.Equal(t, resolver.CodeInvalidSelection, alice.last(protocol.KindActionRefused).(protocol.ActionRefused).Code)

	c.OnPlayerAction("alice", protocol.ImmediateChoice{Immediate: game.ImmediatePrivilege, Selection: 2})
	alice.waitCount(t, protocol.KindActionPerformed, 3)

	all := alice.all()
	last := all[len(all)-1].(protocol.ActionPerformed)
	prev := all[len(all)-2].(protocol.ActionPerformed)
	assert.Equal(t, protocol.CategoryImmediate, prev.Action.Category())
	assert.Equal(t, protocol.KindPlacement, last.Action.Kind())

	s := c.Snapshot(context.Background())
	require.NotNil(t, s)
	p := s.Player("alice")
	assert.Equal(t, 5+1+2, p.Goods.Coins)
	assert.Equal(t, 2, p.Goods.Servants)
}

func TestController_Timeout(t *testing.T) {
	before := testutil.ToFloat64(match.TurnTimeouts)
	c, alice, bob := start(t, 50*time.Millisecond, nil)

	bob.waitCount(t, protocol.KindTurnEnabled, 2)

	expired := alice.first(protocol.KindTimeoutExpired)
	require.NotNil(t, expired)
	assert.Equal(t, "alice", expired.(protocol.TimeoutExpired).Player)
	assert.Equal(t, "alice", alice.first(protocol.KindTurnDisabled).(protocol.TurnDisabled).Player)
	assert.GreaterOrEqual(t, testutil.ToFloat64(match.TurnTimeouts)-before, 1.0)

	s := c.Snapshot(context.Background())
	require.NotNil(t, s)
	assert.False(t, s.Player("alice").Disabled, "a timed out player stays enabled")
}

// turnWindow returns the notifications received before the nth
// TurnEnabled.
func turnWindow(r *recorder, n int) []protocol.Notification {
	var out []protocol.Notification
	for _, note := range r.all() {
		if note.Kind() == protocol.KindTurnEnabled {
			n--
			if n == 0 {
				break
			}
		}
		out = append(out, note)
	}
	return out
}

func TestController_ActionNearDeadlineTimesOutOnce(t *testing.T) {
	const timeout = 200 * time.Millisecond

	tests := []struct {
		name  string
		delay time.Duration
	}{
		{"well before", timeout * 3 / 4},
		{"at the deadline", timeout - 2*time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, alice, _ := start(t, timeout, nil)
			alice.waitCount(t, protocol.KindTurnEnabled, 1)

			time.Sleep(tt.delay)
			c.OnPlayerAction("alice", protocol.RollDice{})
			alice.waitCount(t, protocol.KindTurnEnabled, 2)

			var expired, disabled int
			for _, n := range turnWindow(alice, 2) {
				switch n := n.(type) {
				case protocol.TimeoutExpired:
					expired++
					assert.Equal(t, "alice", n.Player)
				case protocol.TurnDisabled:
					disabled++
				}
			}
			assert.Equal(t, 1, expired, "one lapsed window yields one timeout: %v", alice.kinds())
			assert.Equal(t, 1, disabled)
		})
	}
}

func TestController_ActionRestartsTurnWindow(t *testing.T) {
	const timeout = 200 * time.Millisecond
	c, alice, _ := start(t, timeout, nil)
	alice.waitCount(t, protocol.KindTurnEnabled, 1)

	time.Sleep(timeout / 2)
	acted := time.Now()
	c.OnPlayerAction("alice", protocol.RollDice{})
	alice.waitCount(t, protocol.KindActionPerformed, 1)
	alice.waitCount(t, protocol.KindTimeoutExpired, 1)

	assert.GreaterOrEqual(t, time.Since(acted), timeout*3/4, "the accepted action restarts the window")
}

func TestController_StaleDisableIsIgnored(t *testing.T) {
	c, alice, bob := start(t, time.Minute, nil)
	alice.waitCount(t, protocol.KindTurnEnabled, 1)

	again := &recorder{}
	c.EnablePlayer("bob", again)
	c.DisablePlayer("bob", bob)

	s := c.Snapshot(context.Background())
	require.NotNil(t, s)
	assert.False(t, s.Player("bob").Disabled, "the old connection no longer represents bob")
	for _, n := range alice.all() {
		if lobby, ok := n.(protocol.LobbyNotification); ok {
			assert.NotEqual(t, protocol.LobbyPlayerLeft, lobby.Type)
		}
	}

	c.OnPlayerAction("alice", protocol.TerminateRound{})
	again.waitCount(t, protocol.KindTurnEnabled, 2)
	assert.Equal(t, "bob", again.last(protocol.KindTurnEnabled).(protocol.TurnEnabled).Player)

	c.DisablePlayer("bob", again)
	s = c.Snapshot(context.Background())
	require.NotNil(t, s)
	assert.True(t, s.Player("bob").Disabled)
}

func TestController_SkipsDisabledPlayers(t *testing.T) {
	c, alice, bob := start(t, time.Minute, nil)
	alice.waitCount(t, protocol.KindTurnEnabled, 1)

	c.DisablePlayer("bob", bob)
	c.OnPlayerAction("alice", protocol.TerminateRound{})
	alice.waitCount(t, protocol.KindTurnEnabled, 2)
	assert.Equal(t, "alice", alice.last(protocol.KindTurnEnabled).(protocol.TurnEnabled).Player)

	c.OnPlayerAction("bob", protocol.TerminateRound{})
	s := c.Snapshot(context.Background())
	require.NotNil(t, s)
	assert.True(t, s.Player("bob").Disabled)
	assert.Zero(t, bob.count(protocol.KindActionRefused), "a disabled player receives nothing")

	again := &recorder{}
	c.EnablePlayer("bob", again)
	again.waitCount(t, protocol.KindTurnEnabled, 1)
	assert.Equal(t, []protocol.NotificationKind{protocol.KindModelUpdate, protocol.KindTurnEnabled}, again.kinds())
	assert.False(t, again.all()[0].(protocol.ModelUpdate).Snapshot.Player("bob").Disabled)
}

func TestController_Abandoned(t *testing.T) {
	ended := make(chan string, 1)
	c, alice, bob := start(t, time.Minute, func(id string) { ended <- id })

	c.DisablePlayer("alice", alice)
	c.DisablePlayer("bob", bob)

	select {
	case <-c.Done():
	case <-time.After(waitFor):
		t.Fatal("match did not stop")
	}
	assert.Equal(t, "m1", <-ended)
	assert.Nil(t, c.Snapshot(context.Background()))
}

func TestController_PlaysToTheEnd(t *testing.T) {
	c, alice, bob := start(t, time.Millisecond, nil)

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("match did not end")
	}

	for _, r := range []*recorder{alice, bob} {
		require.Equal(t, 1, r.count(protocol.KindMatchEnded))
		ended := r.last(protocol.KindMatchEnded).(protocol.MatchEnded)
		assert.Len(t, ended.Standings, 2)
		kinds := r.kinds()
		assert.Equal(t, protocol.KindMatchEnded, kinds[len(kinds)-1])
	}

	var final *game.Session
	for _, n := range alice.all() {
		if mu, ok := n.(protocol.ModelUpdate); ok {
			final = mu.Snapshot
		}
	}
	require.NotNil(t, final)
	assert.True(t, final.Ended)
	assert.Equal(t, 6, final.Round)
	assert.Equal(t, 3, final.Period)
}
