// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package match runs matches. Each match is owned by one Controller whose
// goroutine is the only writer of the match's session.
package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/resolver"
	"github.com/lorenzo-online/lorenzo/internal/transport"
)

// DefaultTurnTimeout is the action window used when Config leaves it unset.
const DefaultTurnTimeout = 60 * time.Second

// Config describes one match.
type Config struct {
	ID      string
	Catalog game.Catalog
	// Players maps each seated username to its connection, in seat order.
	Players []Seat
	// Seed drives shuffles and dice. Zero picks a time-based seed.
	Seed        uint64
	TurnTimeout time.Duration
	Logger      *slog.Logger
	// OnEnd is called from the controller goroutine once the match is over
	// or abandoned.
	OnEnd func(id string)
}

// Seat binds a player to the handle that reaches them.
type Seat struct {
	Username string
	Handle   transport.Handle
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	if cfg.Catalog == nil {
		return oops.Code("MATCH_INVALID_CONFIG").Errorf("catalog is required")
	}
	if len(cfg.Players) < 2 {
		return oops.Code("MATCH_INVALID_CONFIG").
			With("players", len(cfg.Players)).
			Errorf("a match needs at least 2 players")
	}
	seen := make(map[string]bool, len(cfg.Players))
	for _, seat := range cfg.Players {
		if seat.Username == "" || seen[seat.Username] {
			return oops.Code("MATCH_INVALID_CONFIG").
				With("username", seat.Username).
				Errorf("players need unique, non-empty usernames")
		}
		seen[seat.Username] = true
	}
	if cfg.TurnTimeout < 0 {
		return oops.Code("MATCH_INVALID_CONFIG").Errorf("turn timeout must not be negative")
	}
	return nil
}

// Controller serializes everything that happens in one match.
//
// All exported methods only enqueue a request; the state they affect is
// touched solely by the goroutine running Run.
type Controller struct {
	id       string
	cat      game.Catalog
	rules    game.Rules
	dealer   *game.Dealer
	resolver *resolver.Resolver
	timeout  time.Duration
	logger   *slog.Logger
	onEnd    func(string)

	requests chan request
	done     chan struct{}

	// Owned by the Run goroutine.
	session *game.Session
	handles map[string]transport.Handle
	turn    turnState
	timer   *time.Timer
	epoch   uint64
}

// turnState is what the current player still owes the match.
type turnState struct {
	// standard is the accepted standard action whose confirmation waits
	// on immediates, or nil.
	standard protocol.Action
	endsTurn bool
	// immediates is a stack; the last element is asked first.
	immediates []game.Immediate
}

func (t *turnState) top() *game.Immediate {
	if len(t.immediates) == 0 {
		return nil
	}
	im := t.immediates[len(t.immediates)-1]
	return &im
}

type request interface{ isRequest() }

type actionRequest struct {
	player string
	action protocol.Action
}

type disableRequest struct {
	player string
	handle transport.Handle
}

type enableRequest struct {
	player string
	handle transport.Handle
}

type timeoutRequest struct{ epoch uint64 }

type snapshotRequest struct{ reply chan *game.Session }

func (actionRequest) isRequest()   {}
func (disableRequest) isRequest()  {}
func (enableRequest) isRequest()   {}
func (timeoutRequest) isRequest()  {}
func (snapshotRequest) isRequest() {}

// New creates a controller. Call Run to start the match.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TurnTimeout == 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	usernames := make([]string, 0, len(cfg.Players))
	handles := make(map[string]transport.Handle, len(cfg.Players))
	for _, seat := range cfg.Players {
		usernames = append(usernames, seat.Username)
		if seat.Handle != nil {
			handles[seat.Username] = seat.Handle
		}
	}

	dealer := game.NewDealer(cfg.Catalog, cfg.Seed)
	rules := cfg.Catalog.Rules()
	session := game.NewSession(cfg.Catalog, usernames, dealer)
	for _, p := range session.Players {
		_, ok := handles[p.Username]
		p.Disabled = !ok
	}

	return &Controller{
		id:       cfg.ID,
		cat:      cfg.Catalog,
		rules:    rules,
		dealer:   dealer,
		resolver: resolver.New(rules, dealer),
		timeout:  cfg.TurnTimeout,
		logger:   logger.With("match_id", cfg.ID),
		onEnd:    cfg.OnEnd,
		requests: make(chan request),
		done:     make(chan struct{}),
		session:  session,
		handles:  handles,
	}, nil
}

// ID returns the match identifier.
func (c *Controller) ID() string { return c.id }

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

// OnPlayerAction queues an action submitted by player. The outcome is
// delivered as notifications.
func (c *Controller) OnPlayerAction(player string, a protocol.Action) {
	c.send(actionRequest{player: player, action: a})
}

// DisablePlayer detaches player's connection h. The player's game state
// is kept; their turns are skipped until EnablePlayer. The call is ignored
// when player is already reachable through another handle.
func (c *Controller) DisablePlayer(player string, h transport.Handle) {
	c.send(disableRequest{player: player, handle: h})
}

// EnablePlayer reattaches player through h and sends them a fresh
// snapshot.
func (c *Controller) EnablePlayer(player string, h transport.Handle) {
	c.send(enableRequest{player: player, handle: h})
}

// Snapshot returns a copy of the current session, or nil once the match
// is over.
func (c *Controller) Snapshot(ctx context.Context) *game.Session {
	reply := make(chan *game.Session, 1)
	if !c.send(snapshotRequest{reply: reply}) {
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return nil
	case <-c.done:
		return nil
	}
}

func (c *Controller) send(r request) bool {
	select {
	case c.requests <- r:
		return true
	case <-c.done:
		return false
	}
}

// Run plays the match until it ends, every player is disabled, or ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	defer c.stopTimer()

	ActiveMatches.Inc()
	defer ActiveMatches.Dec()

	c.logger.Info("match started", "players", c.session.Order)
	c.startRound()

	for !c.over() {
		select {
		case <-ctx.Done():
			c.logger.Info("match cancelled", "reason", ctx.Err())
			c.finish()
			return
		case r := <-c.requests:
			c.handle(r)
		}
	}
	c.finish()
}

func (c *Controller) over() bool {
	return c.session.Ended || c.abandoned()
}

func (c *Controller) abandoned() bool {
	for _, p := range c.session.Players {
		if !p.Disabled {
			return false
		}
	}
	return true
}

func (c *Controller) finish() {
	if c.abandoned() && !c.session.Ended {
		c.logger.Info("match abandoned")
	}
	if c.onEnd != nil {
		c.onEnd(c.id)
	}
}

func (c *Controller) handle(r request) {
	switch req := r.(type) {
	case actionRequest:
		c.onAction(req.player, req.action)
	case disableRequest:
		c.onDisable(req.player, req.handle)
	case enableRequest:
		c.onEnable(req.player, req.handle)
	case timeoutRequest:
		c.onTimeout(req.epoch)
	case snapshotRequest:
		req.reply <- c.session.Clone()
	}
}

func (c *Controller) onAction(player string, a protocol.Action) {
	if _, ok := c.handles[player]; !ok {
		c.logger.Warn("action from disabled player dropped", "player", player)
		return
	}
	a = a.WithSender(player)

	if a.Category() == protocol.CategoryImmediate && player != c.session.CurrentPlayer() {
		c.refuse(player, a, oops.Code(resolver.CodeNoImmediatePending).Errorf("no immediate decision is pending"))
		return
	}

	out, err := c.resolver.Resolve(c.session, player, c.turn.top(), a)
	if err != nil {
		c.refuse(player, a, err)
		return
	}
	RecordAction(a.Kind(), OutcomePerformed)

	c.session = out.State
	c.broadcastModel()

	switch a.Category() {
	case protocol.CategoryStandard:
		c.turn.standard = a
		c.turn.endsTurn = out.EndsTurn
	case protocol.CategoryImmediate:
		c.turn.immediates = c.turn.immediates[:len(c.turn.immediates)-1]
		c.push(player, protocol.ActionPerformed{Player: player, Action: a, Message: "Decision accepted."})
	}

	for i := len(out.Immediates) - 1; i >= 0; i-- {
		c.turn.immediates = append(c.turn.immediates, out.Immediates[i])
	}
	if im := c.turn.top(); im != nil {
		c.askImmediate(player, *im)
		c.resetTimer()
		return
	}

	standard, endsTurn := c.turn.standard, c.turn.endsTurn
	c.turn = turnState{}
	c.broadcast(protocol.ActionPerformed{Player: player, Action: standard, Message: describe(player, standard)})

	if endsTurn {
		c.endTurn("Turn over.")
		return
	}
	c.resetTimer()
}

func (c *Controller) refuse(player string, a protocol.Action, err error) {
	code := resolver.RefusalCode(err)
	RecordAction(a.Kind(), OutcomeRefused)
	c.logger.Debug("action refused", "player", player, "kind", a.Kind(), "code", code, "error", err)
	c.push(player, protocol.ActionRefused{Action: a, Code: code, Message: resolver.RefusalMessage(err)})
}

func (c *Controller) askImmediate(player string, im game.Immediate) {
	c.push(player, protocol.ImmediateActionAvailable{
		ActionType: im.Kind,
		Player:     player,
		Message:    immediatePrompt(im),
		Immediate:  im,
	})
}

func (c *Controller) onDisable(player string, h transport.Handle) {
	p := c.session.Player(player)
	if p == nil || p.Disabled {
		return
	}
	if c.handles[player] != h {
		c.logger.Debug("stale disable ignored", "player", player)
		return
	}
	delete(c.handles, player)
	p.Disabled = true
	c.logger.Info("player disabled", "player", player)
	c.broadcast(protocol.LobbyNotification{Type: protocol.LobbyPlayerLeft, Message: player + " disconnected."})

	if c.abandoned() {
		return
	}
	if c.session.CurrentPlayer() == player {
		c.turn = turnState{}
		c.endTurn(player + " disconnected.")
	}
}

func (c *Controller) onEnable(player string, h transport.Handle) {
	p := c.session.Player(player)
	if p == nil {
		return
	}
	if p.Disabled {
		c.logger.Info("player enabled", "player", player)
		c.broadcast(protocol.LobbyNotification{Type: protocol.LobbyPlayerJoined, Message: player + " reconnected."})
	}
	c.handles[player] = h
	p.Disabled = false

	h.PushNotification(protocol.ModelUpdate{Snapshot: c.session.Clone()})
	h.PushNotification(protocol.TurnEnabled{Player: c.session.CurrentPlayer(), Message: "It's " + c.session.CurrentPlayer() + "'s turn."})
}

func (c *Controller) onTimeout(epoch uint64) {
	if epoch != c.epoch || c.session.Ended {
		return
	}
	player := c.session.CurrentPlayer()
	RecordTimeout()
	c.logger.Info("turn timed out", "player", player)

	c.turn = turnState{}
	c.broadcast(protocol.TimeoutExpired{Player: player, Message: player + " ran out of time."})
	c.endTurn(player + "'s time is up.")
}

// endTurn closes the current player's turn and starts the next one,
// rolling over into a new round, period or the end of the match.
func (c *Controller) endTurn(message string) {
	c.stopTimer()
	c.broadcast(protocol.TurnDisabled{Player: c.session.CurrentPlayer(), Message: message})

	if c.session.AdvanceTurn(c.rules) {
		c.endRound()
		return
	}
	c.beginTurn()
}

func (c *Controller) endRound() {
	if c.session.LastRoundOfPeriod(c.rules) {
		ban, ok := c.cat.Ban(c.session.Period)
		resolver.VaticanReport(c.session, c.rules, ban, ok)
	}
	if c.session.Round >= c.rules.Rounds() {
		c.endMatch()
		return
	}
	c.startRound()
}

func (c *Controller) startRound() {
	c.session.StartRound(c.rules, c.dealer)
	c.logger.Debug("round started", "round", c.session.Round, "period", c.session.Period, "order", c.session.Order)
	c.broadcastModel()
	c.beginTurn()
}

// beginTurn enables the current player, skipping disabled ones.
func (c *Controller) beginTurn() {
	if c.abandoned() {
		return
	}
	if p := c.session.Player(c.session.CurrentPlayer()); p.Disabled {
		if c.session.AdvanceTurn(c.rules) {
			c.endRound()
			return
		}
		c.beginTurn()
		return
	}

	player := c.session.CurrentPlayer()
	c.resetTimer()
	c.broadcast(protocol.TurnEnabled{Player: player, Message: "It's " + player + "'s turn."})
}

func (c *Controller) endMatch() {
	c.stopTimer()
	c.session.Ended = true
	standings := resolver.FinalStandings(c.session, c.rules)
	c.logger.Info("match ended", "standings", standings)

	c.broadcastModel()
	c.broadcast(protocol.MatchEnded{Standings: standings, Message: "The match is over."})
}

func (c *Controller) resetTimer() {
	c.stopTimer()
	c.epoch++
	epoch := c.epoch
	c.timer = time.AfterFunc(c.timeout, func() {
		c.send(timeoutRequest{epoch: epoch})
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) broadcastModel() {
	c.broadcast(protocol.ModelUpdate{Snapshot: c.session.Clone()})
}

// broadcast pushes n to every enabled player in seat order.
func (c *Controller) broadcast(n protocol.Notification) {
	for _, p := range c.session.Players {
		if h, ok := c.handles[p.Username]; ok {
			h.PushNotification(n)
		}
	}
}

func (c *Controller) push(player string, n protocol.Notification) {
	if h, ok := c.handles[player]; ok {
		h.PushNotification(n)
	}
}
