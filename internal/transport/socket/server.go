// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package socket carries the transport contract over a plain TCP stream
// of newline-delimited JSON frames.
package socket

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/internal/transport"
)

// Server is a socket server.
type Server struct {
	addr   string
	core   transport.Core
	logger *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	handlers sync.WaitGroup
}

// NewServer creates a new socket server listening on addr.
func NewServer(addr string, core transport.Core, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		core:   core,
		logger: logger.With("transport", transport.LabelSocket),
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("SOCKET_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled, then waits
// for every connection to wind down.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("socket server started", "addr", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			s.logger.Debug("error closing listener", "error", err)
		}
	})
	defer stop()
	defer s.handlers.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return oops.Code("SOCKET_ACCEPT_FAILED").With("addr", listener.Addr().String()).Wrap(err)
		}

		h := newConnectionHandler(conn, s.core, s.logger)
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			h.Handle(ctx)
		}()
	}
}
