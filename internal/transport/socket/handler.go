// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/notify"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

const (
	maxFrameSize = 1 << 20
	writeTimeout = 10 * time.Second
)

// outgoing is a queued server frame. Notifications are encoded by the
// writer so pushing one never costs the match goroutine a marshal.
type outgoing struct {
	frame        Frame
	notification protocol.Notification
}

// connectionHandler serves one client connection.
type connectionHandler struct {
	conn   net.Conn
	core   transport.Core
	logger *slog.Logger
	out    *notify.Outbox[outgoing]

	// token is only touched by the read loop.
	token string
}

func newConnectionHandler(conn net.Conn, core transport.Core, logger *slog.Logger) *connectionHandler {
	return &connectionHandler{
		conn:   conn,
		core:   core,
		logger: logger.With("remote", conn.RemoteAddr().String()),
		out:    notify.NewOutbox[outgoing](),
	}
}

// PushNotification implements transport.Handle.
func (h *connectionHandler) PushNotification(n protocol.Notification) {
	h.out.Push(outgoing{notification: n})
}

// Handle processes the connection until the client leaves or ctx is
// cancelled.
func (h *connectionHandler) Handle(ctx context.Context) {
	transport.Connections.WithLabelValues(transport.LabelSocket).Inc()
	defer transport.Connections.WithLabelValues(transport.LabelSocket).Dec()

	stop := context.AfterFunc(ctx, func() {
		_ = h.conn.Close()
	})
	defer stop()

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writeLoop()
	}()

	err := h.readLoop(ctx)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		h.logger.Debug("connection ended")
	default:
		h.logger.Debug("connection read error", "error", err)
	}

	if h.token != "" {
		h.core.Disconnect(h.token)
	}
	h.out.Close()
	<-written
	if err := h.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		h.logger.Debug("error closing connection", "error", err)
	}
}

func (h *connectionHandler) readLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(h.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			h.replyError(0, oops.Code("FRAME_DECODE_FAILED").Wrap(err))
			continue
		}
		if f.Type == FrameDisconnect {
			return nil
		}
		h.process(ctx, f)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (h *connectionHandler) process(ctx context.Context, f Frame) {
	h.logger.Debug("frame received", "type", f.Type, "id", f.ID)

	if f.Type != FrameConnect {
		if h.token == "" {
			h.replyError(f.ID, transport.NotConnectedError())
			return
		}
		if f.Token != h.token {
			h.replyError(f.ID, transport.UnknownTokenError(f.Token))
			return
		}
	}

	switch f.Type {
	case FrameConnect:
		h.connect(ctx, f)
	case FrameLogin, FrameRegister:
		creds, err := decodePayload[transport.Credentials](f)
		if err != nil {
			h.replyError(f.ID, err)
			return
		}
		if f.Type == FrameLogin {
			err = h.core.Login(ctx, h.token, creds)
		} else {
			err = h.core.Register(ctx, h.token, creds)
		}
		h.reply(f.ID, err)
	case FrameAction:
		env, err := decodePayload[protocol.ActionEnvelope](f)
		if err != nil {
			h.replyError(f.ID, err)
			return
		}
		a, err := protocol.DecodeAction(env)
		if err != nil {
			h.replyError(f.ID, err)
			return
		}
		h.reply(f.ID, h.core.PerformAction(ctx, h.token, a))
	default:
		h.replyError(f.ID, oops.Code("UNKNOWN_FRAME").With("type", f.Type).Errorf("unknown frame type %q", f.Type))
	}
}

func (h *connectionHandler) connect(ctx context.Context, f Frame) {
	if h.token != "" {
		h.replyError(f.ID, oops.Code("ALREADY_CONNECTED").Errorf("connection already has a session"))
		return
	}
	p, err := decodePayload[connectPayload](f)
	if err != nil {
		h.replyError(f.ID, err)
		return
	}
	token, err := h.core.Connect(ctx, p.Version, h)
	if err != nil {
		h.logger.Info("connect refused", "version", p.Version, "error", err)
		h.replyError(f.ID, err)
		return
	}
	h.token = token
	h.logger.Info("session opened", "token", token)
	h.send(FrameConnected, f.ID, connectedPayload{Token: token})
}

func (h *connectionHandler) reply(id uint64, err error) {
	if err != nil {
		h.replyError(id, err)
		return
	}
	h.send(FrameAck, id, nil)
}

func (h *connectionHandler) replyError(id uint64, err error) {
	h.send(FrameError, id, errorPayload{Code: transport.ErrorCode(err), Message: err.Error()})
}

func (h *connectionHandler) send(typ FrameType, id uint64, payload any) {
	f, err := newFrame(typ, id, h.token, payload)
	if err != nil {
		errutil.LogError(h.logger, "reply dropped", err)
		return
	}
	h.out.Push(outgoing{frame: f})
}

// writeLoop drains the outbox onto the connection until it is closed.
func (h *connectionHandler) writeLoop() {
	w := bufio.NewWriter(h.conn)
	enc := json.NewEncoder(w)
	for {
		item, err := h.out.Next(context.Background())
		if err != nil {
			return
		}

		f := item.frame
		if item.notification != nil {
			env, err := protocol.Encode(item.notification)
			if err != nil {
				errutil.LogError(h.logger, "notification dropped", err)
				continue
			}
			if f, err = newFrame(FrameNotification, 0, "", env); err != nil {
				errutil.LogError(h.logger, "notification dropped", err)
				continue
			}
			transport.Notifications.WithLabelValues(transport.LabelSocket, string(env.Kind)).Inc()
		}

		_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err = enc.Encode(f)
		if err == nil {
			err = w.Flush()
		}
		if err != nil {
			h.logger.Debug("write failed, closing connection", "error", err)
			_ = h.conn.Close()
			return
		}
	}
}
