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
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
)

// ClientConfig holds configuration for the socket client.
type ClientConfig struct {
	// Address is the server address (e.g., "localhost:7200").
	Address string
	// Version is announced on connect. Defaults to protocol.Version.
	Version     string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Client implements transport.Binding over a socket. A Client connects
// once; create a new one to reconnect.
type Client struct {
	transport.ClientState

	cfg    ClientConfig
	logger *slog.Logger

	// requests serializes request/reply exchanges.
	requests sync.Mutex
	replies  chan Frame
	nextID   uint64

	mu      sync.Mutex
	conn    net.Conn
	enc     *json.Encoder
	done    chan struct{}
	closing bool
}

var _ transport.Binding = (*Client)(nil)

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, oops.Code("SOCKET_INVALID_CONFIG").Errorf("address is required")
	}
	if cfg.Version == "" {
		cfg.Version = protocol.Version
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		logger:  cfg.Logger.With("transport", transport.LabelSocket),
		replies: make(chan Frame, 1),
	}, nil
}

// Connect dials the server and opens a session.
func (c *Client) Connect(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return "", oops.Code("ALREADY_CONNECTED").Errorf("client is already connected")
	}
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		c.mu.Unlock()
		return "", transport.ConnectionError(c.cfg.Address, err)
	}
	c.conn = conn
	c.enc = json.NewEncoder(conn)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(conn)

	reply, err := c.request(ctx, FrameConnect, "", connectPayload{Version: c.cfg.Version})
	if err != nil {
		c.abort()
		return "", err
	}
	p, err := decodePayload[connectedPayload](reply)
	if err != nil {
		c.abort()
		return "", err
	}

	c.SetToken(p.Token)
	c.logger.Info("connected", "addr", c.cfg.Address, "token", p.Token)
	return p.Token, nil
}

// Login implements transport.Binding.
func (c *Client) Login(ctx context.Context, creds transport.Credentials) error {
	return c.tokenRequest(ctx, FrameLogin, creds)
}

// Register implements transport.Binding.
func (c *Client) Register(ctx context.Context, creds transport.Credentials) error {
	return c.tokenRequest(ctx, FrameRegister, creds)
}

// PerformAction implements transport.Binding.
func (c *Client) PerformAction(ctx context.Context, a protocol.Action) error {
	if err := c.Guard(); err != nil {
		c.logger.Warn("action not sent", "kind", a.Kind(), "error", err)
		return err
	}
	env, err := protocol.EncodeAction(a)
	if err != nil {
		return err
	}
	return c.tokenRequest(ctx, FrameAction, env)
}

func (c *Client) tokenRequest(ctx context.Context, typ FrameType, payload any) error {
	token := c.Token()
	if token == "" {
		return transport.NotConnectedError()
	}
	_, err := c.request(ctx, typ, token, payload)
	return err
}

// request sends one frame and waits for its reply.
func (c *Client) request(ctx context.Context, typ FrameType, token string, payload any) (Frame, error) {
	c.requests.Lock()
	defer c.requests.Unlock()

	c.nextID++
	id := c.nextID
	f, err := newFrame(typ, id, token, payload)
	if err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	enc, done, closing := c.enc, c.done, c.closing
	if enc == nil || closing {
		c.mu.Unlock()
		return Frame{}, transport.NotConnectedError()
	}
	err = enc.Encode(f)
	c.mu.Unlock()
	if err != nil {
		return Frame{}, transport.ConnectionError(c.cfg.Address, err)
	}

	for {
		select {
		case reply := <-c.replies:
			if reply.ID != id {
				c.logger.Debug("stale reply dropped", "id", reply.ID, "want", id)
				continue
			}
			if reply.Type == FrameError {
				p, err := decodePayload[errorPayload](reply)
				if err != nil {
					return Frame{}, err
				}
				return Frame{}, transport.FromCode(p.Code, p.Message)
			}
			return reply, nil
		case <-done:
			return Frame{}, transport.NotConnectedError()
		case <-ctx.Done():
			return Frame{}, oops.Code("REQUEST_CANCELLED").With("type", typ).Wrap(ctx.Err())
		}
	}
}

func (c *Client) readLoop(conn net.Conn) {
	defer close(c.done)
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			c.Disconnected(c.readError(err))
			return
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			c.logger.Warn("undecodable frame dropped", "error", err)
			continue
		}

		switch f.Type {
		case FrameNotification:
			env, err := decodePayload[protocol.Envelope](f)
			if err != nil {
				c.logger.Warn("undecodable notification dropped", "error", err)
				continue
			}
			n, err := protocol.Decode(env)
			if err != nil {
				c.logger.Warn("undecodable notification dropped", "kind", env.Kind, "error", err)
				continue
			}
			c.Deliver(n)
		case FrameConnected, FrameAck, FrameError:
			c.deliverReply(f)
		default:
			c.logger.Debug("unexpected frame", "type", f.Type)
		}
	}
}

// deliverReply hands f to the waiting request, replacing any reply nobody
// picked up.
func (c *Client) deliverReply(f Frame) {
	for {
		select {
		case c.replies <- f:
			return
		default:
		}
		select {
		case <-c.replies:
		default:
		}
	}
}

func (c *Client) readError(err error) error {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return nil
	}
	if errors.Is(err, io.EOF) {
		err = oops.Code(transport.CodeConnectionFailed).Errorf("server closed the connection")
	}
	c.logger.Info("connection lost", "error", err)
	return transport.ConnectionError(c.cfg.Address, err)
}

// abort tears down a connection whose handshake failed.
func (c *Client) abort() {
	c.mu.Lock()
	c.closing = true
	conn, done := c.conn, c.done
	c.mu.Unlock()
	_ = conn.Close()
	<-done
}

// Close disconnects from the server. Observers see OnDisconnection(nil).
func (c *Client) Close() error {
	c.mu.Lock()
	if c.conn == nil || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn, done := c.conn, c.done
	if token := c.Token(); token != "" {
		if f, err := newFrame(FrameDisconnect, 0, token, nil); err == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.enc.Encode(f)
		}
	}
	c.mu.Unlock()

	err := conn.Close()
	<-done
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return oops.Code("SOCKET_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
