// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package grpcbind carries the transport contract over gRPC. The Match
// service is hand-described and spoken with a JSON codec: five unary calls
// mirror transport.Core and a server stream delivers each connection's
// notifications in order.
package grpcbind

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/lorenzo-online/lorenzo/internal/notify"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

// connection is the server's Handle for one client. Notifications queue
// in the outbox until the client's Notifications stream drains them.
type connection struct {
	outbox    *notify.Outbox[protocol.Notification]
	streaming bool
}

func (c *connection) PushNotification(n protocol.Notification) {
	c.outbox.Push(n)
}

// Server exposes a transport.Core over gRPC.
type Server struct {
	core   transport.Core
	logger *slog.Logger
	grpc   *grpc.Server

	mu    sync.Mutex
	conns map[string]*connection
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// TLSConfig enables TLS. Nil serves plaintext.
	TLSConfig *tls.Config
	Logger    *slog.Logger
}

var _ MatchServer = (*Server)(nil)

// NewServer creates a gRPC server forwarding to core.
func NewServer(core transport.Core, cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	opts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(cfg.TLSConfig)))
	}

	s := &Server{
		core:   core,
		logger: cfg.Logger.With("transport", transport.LabelGRPC),
		grpc:   grpc.NewServer(opts...),
		conns:  make(map[string]*connection),
	}
	RegisterMatchServer(s.grpc, s)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc server started", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return oops.Code("GRPC_SERVE_FAILED").With("addr", lis.Addr().String()).Wrap(err)
	}
	return nil
}

// Stop ends every notification stream and stops the server, waiting for
// in-flight calls until ctx is done.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	tokens := make([]string, 0, len(s.conns))
	for token := range s.conns {
		tokens = append(tokens, token)
	}
	s.mu.Unlock()
	for _, token := range tokens {
		s.drop(token)
	}

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("graceful stop timed out, forcing")
		s.grpc.Stop()
		<-done
	}
}

// Connect implements MatchServer.
func (s *Server) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	conn := &connection{outbox: notify.NewOutbox[protocol.Notification]()}
	token, err := s.core.Connect(ctx, req.Version, conn)
	if err != nil {
		s.logger.InfoContext(ctx, "connect refused", "version", req.Version, "error", err)
		return nil, toStatus(err)
	}

	s.mu.Lock()
	s.conns[token] = conn
	s.mu.Unlock()
	transport.Connections.WithLabelValues(transport.LabelGRPC).Inc()
	return &ConnectResponse{Token: token}, nil
}

// Login implements MatchServer.
func (s *Server) Login(ctx context.Context, req *CredentialsRequest) (*Ack, error) {
	s.logger.DebugContext(ctx, "login request", "token", req.Token, "username", req.Credentials.Username)
	return ack(s.core.Login(ctx, req.Token, req.Credentials))
}

// Register implements MatchServer.
func (s *Server) Register(ctx context.Context, req *CredentialsRequest) (*Ack, error) {
	s.logger.DebugContext(ctx, "register request", "token", req.Token, "username", req.Credentials.Username)
	return ack(s.core.Register(ctx, req.Token, req.Credentials))
}

// PerformAction implements MatchServer.
func (s *Server) PerformAction(ctx context.Context, req *ActionRequest) (*Ack, error) {
	a, err := protocol.DecodeAction(req.Action)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.DebugContext(ctx, "action request", "token", req.Token, "kind", a.Kind())
	return ack(s.core.PerformAction(ctx, req.Token, a))
}

// Disconnect implements MatchServer. Unknown tokens are not an error.
func (s *Server) Disconnect(ctx context.Context, req *TokenRequest) (*Ack, error) {
	s.logger.DebugContext(ctx, "disconnect request", "token", req.Token)
	s.drop(req.Token)
	return &Ack{}, nil
}

// Notifications implements MatchServer. The stream ends when the client
// goes away, which disconnects it from the core.
func (s *Server) Notifications(req *TokenRequest, stream grpc.ServerStreamingServer[protocol.Envelope]) error {
	ctx := stream.Context()

	s.mu.Lock()
	conn, ok := s.conns[req.Token]
	if ok && conn.streaming {
		s.mu.Unlock()
		return status.Error(codes.AlreadyExists, "notification stream already open")
	}
	if ok {
		conn.streaming = true
	}
	s.mu.Unlock()
	if !ok {
		return toStatus(transport.UnknownTokenError(req.Token))
	}
	defer s.drop(req.Token)

	for {
		n, err := conn.outbox.Next(ctx)
		if errors.Is(err, notify.ErrOutboxClosed) {
			return nil
		}
		if err != nil {
			s.logger.DebugContext(ctx, "notification stream ended", "token", req.Token, "reason", err)
			return status.FromContextError(err).Err()
		}

		env, err := protocol.Encode(n)
		if err != nil {
			errutil.LogError(s.logger, "notification dropped", err)
			continue
		}
		if err := stream.Send(&env); err != nil {
			s.logger.WarnContext(ctx, "failed to send notification", "token", req.Token, "kind", env.Kind, "error", err)
			return oops.Code("SEND_FAILED").With("token", req.Token).Wrap(err)
		}
		transport.Notifications.WithLabelValues(transport.LabelGRPC, string(env.Kind)).Inc()
	}
}

func ack(err error) (*Ack, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &Ack{}, nil
}

// drop forgets token and tells the core. Safe to call more than once.
func (s *Server) drop(token string) {
	s.mu.Lock()
	conn, ok := s.conns[token]
	delete(s.conns, token)
	s.mu.Unlock()
	if !ok {
		return
	}

	conn.outbox.Close()
	s.core.Disconnect(token)
	transport.Connections.WithLabelValues(transport.LabelGRPC).Dec()
	s.logger.Info("connection closed", "token", token)
}
