// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package grpcbind

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
)

// ClientConfig holds configuration for the gRPC client.
type ClientConfig struct {
	// Address is the target server address (e.g., "localhost:7100").
	Address string

	// Version is the protocol version announced on Connect. Defaults to
	// protocol.Version.
	Version string

	// TLSConfig enables TLS. If nil, an insecure connection is used.
	TLSConfig *tls.Config

	// KeepaliveTime is how often to ping the server (default: 10s)
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for ping response (default: 5s)
	KeepaliveTimeout time.Duration

	// DialOptions are appended to the defaults. Tests use it to dial an
	// in-memory listener.
	DialOptions []grpc.DialOption

	Logger *slog.Logger
}

// Client implements transport.Binding over gRPC. A Client connects once;
// create a new one to reconnect.
type Client struct {
	transport.ClientState

	cfg    ClientConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *grpc.ClientConn
	rpc     matchClient
	cancel  context.CancelFunc
	done    chan struct{}
	closing bool
}

var _ transport.Binding = (*Client)(nil)

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, oops.Code("GRPC_INVALID_CONFIG").Errorf("address is required")
	}
	if cfg.Version == "" {
		cfg.Version = protocol.Version
	}
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: cfg.Logger.With("transport", transport.LabelGRPC)}, nil
}

// Connect dials the server, opens a connection and starts receiving
// notifications.
func (c *Client) Connect(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return "", oops.Code("ALREADY_CONNECTED").Errorf("client is already connected")
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.cfg.KeepaliveTime,
			Timeout:             c.cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	if c.cfg.TLSConfig != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(c.cfg.TLSConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, c.cfg.DialOptions...)

	conn, err := grpc.NewClient(c.cfg.Address, opts...)
	if err != nil {
		return "", transport.ConnectionError(c.cfg.Address, err)
	}
	rpc := matchClient{cc: conn}

	resp, err := rpc.Connect(ctx, &ConnectRequest{Version: c.cfg.Version})
	if err != nil {
		_ = conn.Close()
		return "", fromStatus(c.cfg.Address, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := rpc.Notifications(streamCtx, &TokenRequest{Token: resp.Token})
	if err != nil {
		cancel()
		_ = conn.Close()
		return "", transport.ConnectionError(c.cfg.Address, err)
	}

	c.conn, c.rpc, c.cancel = conn, rpc, cancel
	c.done = make(chan struct{})
	c.SetToken(resp.Token)
	go c.receive(stream)

	c.logger.Info("connected", "addr", c.cfg.Address, "token", resp.Token)
	return resp.Token, nil
}

// receive delivers notifications until the stream ends.
func (c *Client) receive(stream grpc.ServerStreamingClient[protocol.Envelope]) {
	defer close(c.done)
	for {
		env, err := stream.Recv()
		if err != nil {
			c.Disconnected(c.streamError(err))
			return
		}
		n, err := protocol.Decode(*env)
		if err != nil {
			c.logger.Warn("undecodable notification dropped", "kind", env.Kind, "error", err)
			continue
		}
		c.Deliver(n)
	}
}

// streamError maps the end of the notification stream to the error
// reported to observers. A stream we closed ourselves reports nil.
func (c *Client) streamError(err error) error {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing || status.Code(err) == codes.Canceled {
		return nil
	}
	if errors.Is(err, io.EOF) {
		err = oops.Code(transport.CodeConnectionFailed).Errorf("server closed the connection")
	}
	c.logger.Info("connection lost", "error", err)
	return transport.ConnectionError(c.cfg.Address, err)
}

// Login implements transport.Binding.
func (c *Client) Login(ctx context.Context, creds transport.Credentials) error {
	return c.credentials(ctx, "Login", creds)
}

// Register implements transport.Binding.
func (c *Client) Register(ctx context.Context, creds transport.Credentials) error {
	return c.credentials(ctx, "Register", creds)
}

func (c *Client) credentials(ctx context.Context, method string, creds transport.Credentials) error {
	rpc, token, err := c.session()
	if err != nil {
		return err
	}
	if err := rpc.ack(ctx, method, &CredentialsRequest{Token: token, Credentials: creds}); err != nil {
		return fromStatus(c.cfg.Address, err)
	}
	return nil
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
	rpc, token, err := c.session()
	if err != nil {
		return err
	}
	if err := rpc.ack(ctx, "PerformAction", &ActionRequest{Token: token, Action: env}); err != nil {
		return fromStatus(c.cfg.Address, err)
	}
	return nil
}

func (c *Client) session() (matchClient, string, error) {
	c.mu.Lock()
	rpc := c.rpc
	connected := c.conn != nil && !c.closing
	c.mu.Unlock()

	token := c.Token()
	if !connected || token == "" {
		return matchClient{}, "", transport.NotConnectedError()
	}
	return rpc, token, nil
}

// Close disconnects from the server. Observers see OnDisconnection(nil).
func (c *Client) Close() error {
	c.mu.Lock()
	if c.conn == nil || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn, rpc, cancel, done := c.conn, c.rpc, c.cancel, c.done
	c.mu.Unlock()

	if token := c.Token(); token != "" {
		ctx, stop := context.WithTimeout(context.Background(), time.Second)
		if err := rpc.ack(ctx, "Disconnect", &TokenRequest{Token: token}); err != nil {
			c.logger.Debug("disconnect call failed", "error", err)
		}
		stop()
	}
	cancel()
	<-done

	if err := conn.Close(); err != nil {
		return oops.Code("GRPC_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
