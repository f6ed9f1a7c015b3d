// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package coordinator

import (
	"bufio"
	"io"
	"sync"

	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

// TokenKind tells the coordinator why a wait point was released.
type TokenKind int

// Token kinds. The zero value is the empty token.
const (
	// TokenEmpty carries no payload: the player's action window lapsed.
	TokenEmpty TokenKind = iota
	// TokenConfirmation settles a submitted action, accepted or refused.
	TokenConfirmation
	// TokenImmediate asks for an immediate decision.
	TokenImmediate
	// TokenTurn opens the player's turn.
	TokenTurn
	TokenAuthenticated
	TokenAuthFailed
	TokenMatchEnded
	TokenDisconnected
)

func (k TokenKind) String() string {
	switch k {
	case TokenEmpty:
		return "empty"
	case TokenConfirmation:
		return "confirmation"
	case TokenImmediate:
		return "immediate"
	case TokenTurn:
		return "turn"
	case TokenAuthenticated:
		return "authenticated"
	case TokenAuthFailed:
		return "auth_failed"
	case TokenMatchEnded:
		return "match_ended"
	case TokenDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Token releases one of the coordinator's wait points.
type Token struct {
	Kind TokenKind

	// Action is the settled action of a confirmation token. It may be nil
	// for a refusal of a request the server could not decode.
	Action  protocol.Action
	Refused bool
	Message string

	Immediate game.Immediate
	Err       error
}

// InputQueue holds the operator's latest unread line. A new line replaces
// one nobody has read yet.
type InputQueue struct {
	mu     sync.Mutex
	ch     chan string
	closed bool
}

// NewInputQueue creates an empty queue.
func NewInputQueue() *InputQueue {
	return &InputQueue{ch: make(chan string, 1)}
}

// Offer queues line, discarding any unread one. It reports false once the
// queue is closed.
func (q *InputQueue) Offer(line string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	for {
		select {
		case q.ch <- line:
			return true
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// Close marks the end of input. A line queued before Close can still be
// read.
func (q *InputQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// C returns the channel lines are read from. It is closed after Close.
func (q *InputQueue) C() <-chan string {
	return q.ch
}

// ReadLines feeds every line of r into q and closes q at end of input. It
// blocks on r, so run it on its own goroutine.
func ReadLines(r io.Reader, q *InputQueue) error {
	defer q.Close()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		q.Offer(scanner.Text())
	}
	return scanner.Err()
}
