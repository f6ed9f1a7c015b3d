// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/lorenzo-online/lorenzo/internal/match"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

// join seats a freshly authenticated player. A player whose match is still
// running gets that match back; everyone else waits in the lobby.
// Called with s.mu held.
func (s *Server) join(sess *session) *match.Controller {
	if ctrl := s.matches[s.playerMatch[sess.username]]; ctrl != nil {
		return ctrl
	}

	s.lobby = append(s.lobby, sess)
	LobbyWaiting.Set(float64(len(s.lobby)))
	s.announce(protocol.LobbyPlayerJoined,
		fmt.Sprintf("%s joined the lobby (%d/%d).", sess.username, len(s.lobby), s.playersPerMatch))

	switch {
	case len(s.lobby) >= s.playersPerMatch:
		s.startMatch()
	case len(s.lobby) >= MinPlayersPerMatch && s.lobbyTimer == nil:
		epoch := s.lobbyEpoch
		s.lobbyTimer = time.AfterFunc(s.lobbyWait, func() { s.lobbyExpired(epoch) })
	}
	return nil
}

// leaveLobby removes a disconnecting player. Called with s.mu held.
func (s *Server) leaveLobby(sess *session) {
	for i, w := range s.lobby {
		if w != sess {
			continue
		}
		s.lobby = append(s.lobby[:i:i], s.lobby[i+1:]...)
		LobbyWaiting.Set(float64(len(s.lobby)))
		if len(s.lobby) < MinPlayersPerMatch {
			s.stopLobbyTimer()
		}
		s.announce(protocol.LobbyPlayerLeft, sess.username+" left the lobby.")
		return
	}
}

func (s *Server) lobbyExpired(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.lobbyEpoch || s.closed {
		return
	}
	s.lobbyTimer = nil
	if len(s.lobby) >= MinPlayersPerMatch {
		s.startMatch()
	}
}

// startMatch seats everyone in the lobby. Called with s.mu held.
func (s *Server) startMatch() {
	seats := make([]match.Seat, len(s.lobby))
	names := make([]string, len(s.lobby))
	for i, w := range s.lobby {
		seats[i] = match.Seat{Username: w.username, Handle: w.handle}
		names[i] = w.username
	}

	id := NewToken()
	ctrl, err := match.New(match.Config{
		ID:          id,
		Catalog:     s.catalog,
		Players:     seats,
		Seed:        s.seed(),
		TurnTimeout: s.turnTimeout,
		Logger:      s.logger,
		OnEnd:       s.matchEnded,
	})
	if err != nil {
		errutil.LogError(s.logger, "match creation failed", err)
		return
	}

	waiting := s.lobby
	s.lobby = nil
	s.stopLobbyTimer()
	LobbyWaiting.Set(0)

	s.matches[id] = ctrl
	for _, name := range names {
		s.playerMatch[name] = id
	}
	msg := protocol.LobbyNotification{
		Type:    protocol.LobbyMatchStarted,
		Message: "The match has started: " + strings.Join(names, ", ") + ".",
	}
	for _, w := range waiting {
		w.handle.PushNotification(msg)
	}

	MatchesStarted.Inc()
	s.logger.Info("match created", "match_id", id, "players", names)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctrl.Run(s.ctx)
	}()
}

// matchEnded runs on the controller goroutine once its match is over.
func (s *Server) matchEnded(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.matches, id)
	for username, matchID := range s.playerMatch {
		if matchID == id {
			delete(s.playerMatch, username)
		}
	}
	s.logger.Info("match removed", "match_id", id)
}

// announce tells every waiting player about a lobby change. Called with
// s.mu held.
func (s *Server) announce(kind, message string) {
	n := protocol.LobbyNotification{Type: kind, Message: message}
	for _, w := range s.lobby {
		w.handle.PushNotification(n)
	}
}

// stopLobbyTimer cancels a pending lobby deadline. Called with s.mu held.
func (s *Server) stopLobbyTimer() {
	if s.lobbyTimer != nil {
		s.lobbyTimer.Stop()
		s.lobbyTimer = nil
	}
	s.lobbyEpoch++
}
