// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package core is the server side shared by every transport: it issues
// session tokens, checks credentials, fills the lobby and routes player
// actions to the match they belong to.
package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/match"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

var tracer = otel.Tracer("lorenzo/core")

// Lobby defaults.
const (
	MinPlayersPerMatch     = 2
	MaxPlayersPerMatch     = 4
	DefaultPlayersPerMatch = 4
	DefaultLobbyWait       = 30 * time.Second
)

// CodeNotInMatch is the refusal code for actions sent outside a match.
const CodeNotInMatch = "NOT_IN_MATCH"

// Config configures a Server.
type Config struct {
	Catalog     game.Catalog
	Credentials auth.CredentialStore
	// PlayersPerMatch starts a match as soon as this many players wait.
	PlayersPerMatch int
	// LobbyWait starts a smaller match once at least two players have
	// waited this long.
	LobbyWait         time.Duration
	TurnTimeout       time.Duration
	VersionConstraint string
	Logger            *slog.Logger
	// Seed returns the seed of each new match. Nil seeds from the clock.
	Seed func() uint64
}

// Validate checks the configuration after defaults are applied.
func (cfg Config) Validate() error {
	if cfg.Catalog == nil {
		return oops.Code("SERVER_INVALID_CONFIG").Errorf("catalog is required")
	}
	if cfg.Credentials == nil {
		return oops.Code("SERVER_INVALID_CONFIG").Errorf("credential store is required")
	}
	if cfg.PlayersPerMatch < MinPlayersPerMatch || cfg.PlayersPerMatch > MaxPlayersPerMatch {
		return oops.Code("SERVER_INVALID_CONFIG").
			With("players_per_match", cfg.PlayersPerMatch).
			Errorf("players per match must be between %d and %d", MinPlayersPerMatch, MaxPlayersPerMatch)
	}
	if cfg.LobbyWait <= 0 {
		return oops.Code("SERVER_INVALID_CONFIG").Errorf("lobby wait must be positive")
	}
	if cfg.TurnTimeout < 0 {
		return oops.Code("SERVER_INVALID_CONFIG").Errorf("turn timeout must not be negative")
	}
	return nil
}

type session struct {
	token    string
	handle   transport.Handle
	username string
}

// Server implements transport.Core.
type Server struct {
	catalog         game.Catalog
	credentials     auth.CredentialStore
	playersPerMatch int
	lobbyWait       time.Duration
	turnTimeout     time.Duration
	constraintText  string
	constraint      *semver.Constraints
	logger          *slog.Logger
	seed            func() uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	sessions    map[string]*session // by token
	online      map[string]string   // username to token
	lobby       []*session
	lobbyTimer  *time.Timer
	lobbyEpoch  uint64
	matches     map[string]*match.Controller
	playerMatch map[string]string // username to match id
}

// NewServer creates a server. Matches run until they end or Shutdown is
// called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.PlayersPerMatch == 0 {
		cfg.PlayersPerMatch = DefaultPlayersPerMatch
	}
	if cfg.LobbyWait == 0 {
		cfg.LobbyWait = DefaultLobbyWait
	}
	if cfg.VersionConstraint == "" {
		cfg.VersionConstraint = protocol.DefaultVersionConstraint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Seed == nil {
		cfg.Seed = func() uint64 { return uint64(time.Now().UnixNano()) }
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	constraint, err := semver.NewConstraint(cfg.VersionConstraint)
	if err != nil {
		return nil, oops.Code("SERVER_INVALID_CONFIG").
			With("version_constraint", cfg.VersionConstraint).
			Wrap(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		catalog:         cfg.Catalog,
		credentials:     cfg.Credentials,
		playersPerMatch: cfg.PlayersPerMatch,
		lobbyWait:       cfg.LobbyWait,
		turnTimeout:     cfg.TurnTimeout,
		constraintText:  cfg.VersionConstraint,
		constraint:      constraint,
		logger:          cfg.Logger,
		seed:            cfg.Seed,
		ctx:             ctx,
		cancel:          cancel,
		sessions:        make(map[string]*session),
		online:          make(map[string]string),
		matches:         make(map[string]*match.Controller),
		playerMatch:     make(map[string]string),
	}, nil
}

// Connect registers a connection and returns its session token.
func (s *Server) Connect(_ context.Context, version string, h transport.Handle) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", transport.IncompatibleVersionError(version, s.constraintText, err)
	}
	if !s.constraint.Check(v) {
		return "", transport.IncompatibleVersionError(version, s.constraintText, nil)
	}

	token := NewToken()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", oops.Code("SERVER_CLOSED").Errorf("server is shutting down")
	}
	s.sessions[token] = &session{token: token, handle: h}
	s.mu.Unlock()

	SessionsActive.Inc()
	s.logger.Info("client connected", "token", token, "version", version)
	return token, nil
}

// Login checks the credentials. The result arrives as a LoginSucceeded or
// LoginFailed notification; the returned error only reports a bad token or
// a connection that is already logged in.
func (s *Server) Login(ctx context.Context, token string, creds transport.Credentials) error {
	return s.authenticate(ctx, token, creds, false)
}

// Register creates an account and logs the connection in. The result
// arrives as a RegistrationSucceeded or RegistrationFailed notification.
func (s *Server) Register(ctx context.Context, token string, creds transport.Credentials) error {
	return s.authenticate(ctx, token, creds, true)
}

func (s *Server) authenticate(ctx context.Context, token string, creds transport.Credentials, register bool) (err error) {
	operation := "login"
	if register {
		operation = "register"
	}
	ctx, span := tracer.Start(ctx, "core.authenticate",
		trace.WithAttributes(
			attribute.String("auth.operation", operation),
			attribute.String("auth.username", creds.Username),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sess, err := s.session(token)
	if err != nil {
		return err
	}
	if username := s.usernameOf(sess); username != "" {
		return transport.AlreadyAuthenticatedError(username)
	}

	var ok bool
	if register {
		ok, err = s.credentials.Register(ctx, creds.Username, creds.Password)
	} else {
		ok, err = s.credentials.Login(ctx, creds.Username, creds.Password)
	}

	if !ok {
		reason, unexpected := failureReason(err, register)
		result := ResultFailed
		if unexpected {
			result = ResultError
			errutil.LogErrorContext(ctx, s.logger, "credential check failed", err)
		}
		span.SetAttributes(attribute.String("auth.result", result))
		AuthAttempts.WithLabelValues(operation, result).Inc()
		s.logger.WarnContext(ctx, "authentication refused", "operation", operation, "username", creds.Username, "reason", reason)
		sess.handle.PushNotification(failed(register, reason))
		return nil
	}

	username := auth.NormalizeUsername(creds.Username)

	s.mu.Lock()
	if _, live := s.sessions[token]; !live {
		s.mu.Unlock()
		return transport.UnknownTokenError(token)
	}
	if sess.username != "" {
		s.mu.Unlock()
		return transport.AlreadyAuthenticatedError(sess.username)
	}
	if _, taken := s.online[username]; taken {
		s.mu.Unlock()
		AuthAttempts.WithLabelValues(operation, ResultFailed).Inc()
		sess.handle.PushNotification(failed(register, "already logged in from another connection"))
		return nil
	}
	sess.username = username
	s.online[username] = token
	sess.handle.PushNotification(succeeded(register, username))
	rejoin := s.join(sess)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("auth.result", ResultSucceeded))
	AuthAttempts.WithLabelValues(operation, ResultSucceeded).Inc()
	s.logger.InfoContext(ctx, "player authenticated", "operation", operation, "username", username, "token", token)

	if rejoin != nil {
		s.logger.Info("player rejoined match", "username", username, "match_id", rejoin.ID())
		rejoin.EnablePlayer(username, sess.handle)
	}
	return nil
}

// PerformAction forwards a to the sender's match. Actions sent outside a
// match are refused through the connection.
func (s *Server) PerformAction(ctx context.Context, token string, a protocol.Action) error {
	_, span := tracer.Start(ctx, "core.perform_action",
		trace.WithAttributes(
			attribute.String("action.kind", string(a.Kind())),
			attribute.String("action.category", string(a.Category())),
		),
	)
	defer span.End()

	s.mu.Lock()
	sess, ok := s.sessions[token]
	if !ok {
		s.mu.Unlock()
		return transport.UnknownTokenError(token)
	}
	if sess.username == "" {
		s.mu.Unlock()
		return transport.NotAuthenticatedError()
	}
	username := sess.username
	ctrl := s.matches[s.playerMatch[username]]
	s.mu.Unlock()
	span.SetAttributes(attribute.String("action.player", username))

	if ctrl == nil {
		span.SetAttributes(attribute.Bool("action.refused", true))
		sess.handle.PushNotification(protocol.ActionRefused{
			Action:  a,
			Code:    CodeNotInMatch,
			Message: "You are not playing a match yet.",
		})
		return nil
	}
	ctrl.OnPlayerAction(username, a)
	return nil
}

// Disconnect releases token. A player in a running match is disabled
// until they log in again.
func (s *Server) Disconnect(token string) {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("disconnect for unknown token", "token", token)
		return
	}
	delete(s.sessions, token)

	var ctrl *match.Controller
	username := sess.username
	if username != "" {
		delete(s.online, username)
		s.leaveLobby(sess)
		ctrl = s.matches[s.playerMatch[username]]
	}
	s.mu.Unlock()

	SessionsActive.Dec()
	s.logger.Info("client disconnected", "token", token, "username", username)
	if ctrl != nil {
		ctrl.DisablePlayer(username, sess.handle)
	}
}

// Shutdown stops every match and waits for their controllers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.stopLobbyTimer()
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("SHUTDOWN_TIMEOUT").Wrap(ctx.Err())
	}
}

// MatchCount returns the number of running matches.
func (s *Server) MatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

// LobbySize returns the number of players waiting for a match.
func (s *Server) LobbySize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobby)
}

func (s *Server) session(token string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, transport.UnknownTokenError(token)
	}
	return sess, nil
}

func (s *Server) usernameOf(sess *session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.username
}

// failureReason turns a credential-store result into the message shown to
// the player. unexpected reports errors that are not the player's fault.
func failureReason(err error, register bool) (reason string, unexpected bool) {
	switch {
	case err == nil && register:
		return "registration refused", false
	case err == nil:
		return "invalid username or password", false
	case errors.Is(err, auth.ErrAccountLocked):
		return "account is temporarily locked", false
	case errors.Is(err, auth.ErrDuplicateUsername):
		return "username already taken", false
	}
	switch errutil.Code(err) {
	case "AUTH_INVALID_USERNAME", "AUTH_RESERVED_USERNAME", "AUTH_EMPTY_PASSWORD":
		return err.Error(), false
	}
	return "authentication is unavailable, try again later", true
}

func failed(register bool, reason string) protocol.Notification {
	if register {
		return protocol.RegistrationFailed{Reason: reason}
	}
	return protocol.LoginFailed{Reason: reason}
}

func succeeded(register bool, username string) protocol.Notification {
	if register {
		return protocol.RegistrationSucceeded{Username: username}
	}
	return protocol.LoginSucceeded{Username: username}
}
