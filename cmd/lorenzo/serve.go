// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lorenzo-online/lorenzo/internal/config"
	"github.com/lorenzo-online/lorenzo/internal/core"
	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/logging"
	"github.com/lorenzo-online/lorenzo/internal/match"
	"github.com/lorenzo-online/lorenzo/internal/observability"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/tls"
	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/internal/transport/grpcbind"
	"github.com/lorenzo-online/lorenzo/internal/transport/socket"
)

const shutdownTimeout = 10 * time.Second

// serveAddrs are the addresses the server actually bound.
type serveAddrs struct {
	GRPC          string
	Socket        string
	Observability string
}

// serveHooks lets tests observe a running server.
type serveHooks struct {
	// Ready is called once every listener is bound.
	Ready func(serveAddrs)
}

func newServeCmd(load configLoader, hooks *serveHooks) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the match server",
		Long: `Run the match server. Players connect over gRPC or the line protocol,
wait in the lobby and are seated in matches of two to four.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, hooks)
		},
	}
	config.ServerFlags(cmd.Flags())
	return cmd
}

// runServe runs the server until ctx is done or a listener fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, hooks *serveHooks) error {
	logger, err := logging.SetDefault(logging.Options{
		Service: "lorenzo-server",
		Version: version,
		Format:  cfg.Logging.Format,
		Level:   cfg.Logging.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	logger.Info("starting server",
		"grpc_addr", cfg.Server.GRPCAddr,
		"socket_addr", cfg.Server.SocketAddr,
		"players_per_match", cfg.Server.PlayersPerMatch,
	)

	catalog, err := game.LoadCatalog(cfg.Server.Catalog)
	if err != nil {
		return err
	}

	creds, err := openCredentials(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}
	defer creds.close()

	srv, err := core.NewServer(core.Config{
		Catalog:           catalog,
		Credentials:       creds,
		PlayersPerMatch:   cfg.Server.PlayersPerMatch,
		LobbyWait:         cfg.Server.LobbyWait,
		TurnTimeout:       cfg.Server.TurnTimeout,
		VersionConstraint: cfg.Server.VersionConstraint,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	tlsConfig, err := serverTLS(cfg.Server, logger)
	if err != nil {
		return err
	}

	var addrs serveAddrs
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return oops.Code("GRPC_LISTEN_FAILED").With("addr", cfg.Server.GRPCAddr).Wrap(err)
	}
	addrs.GRPC = grpcLis.Addr().String()
	grpcSrv := grpcbind.NewServer(srv, grpcbind.ServerConfig{TLSConfig: tlsConfig, Logger: logger})

	var (
		sockSrv *socket.Server
		sockLis net.Listener
	)
	if cfg.Server.SocketAddr != "" {
		sockLis, err = net.Listen("tcp", cfg.Server.SocketAddr)
		if err != nil {
			_ = grpcLis.Close()
			return oops.Code("SOCKET_LISTEN_FAILED").With("addr", cfg.Server.SocketAddr).Wrap(err)
		}
		addrs.Socket = sockLis.Addr().String()
		sockSrv = socket.NewServer(cfg.Server.SocketAddr, srv, logger)
	}

	var ready atomic.Bool
	var obsSrv *observability.Server
	var obsErrs <-chan error
	if cfg.Observability.Addr != "" {
		obsSrv = observability.NewServer(observability.Config{
			Addr:            cfg.Observability.Addr,
			Version:         version,
			ProtocolVersion: protocol.Version,
			Ready:           ready.Load,
			Logger:          logger,
		}, match.RegisterMetrics, core.RegisterMetrics, transport.RegisterMetrics)
		obsErrs, err = obsSrv.Start()
		if err != nil {
			_ = grpcLis.Close()
			if sockLis != nil {
				_ = sockLis.Close()
			}
			return err
		}
		addrs.Observability = obsSrv.Addr()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcSrv.Serve(grpcLis) })
	if sockSrv != nil {
		g.Go(func() error { return sockSrv.Serve(gctx, sockLis) })
	}
	if obsErrs != nil {
		g.Go(func() error {
			if err, ok := <-obsErrs; ok && err != nil {
				return oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		ready.Store(false)
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.Stop(shutdownCtx)
		if obsSrv != nil {
			if err := obsSrv.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	ready.Store(true)
	cmd.Println("Lorenzo server started")
	logger.Info("server ready",
		"grpc_addr", addrs.GRPC,
		"socket_addr", addrs.Socket,
		"observability_addr", addrs.Observability,
	)
	if hooks != nil && hooks.Ready != nil {
		hooks.Ready(addrs)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// serverTLS returns nil when TLS is off. Otherwise it generates the
// certificates on first use and loads them.
func serverTLS(cfg config.Server, logger *slog.Logger) (*cryptotls.Config, error) {
	if !cfg.TLS {
		logger.Warn("gRPC TLS disabled")
		return nil, nil
	}
	generated, err := tls.Ensure(cfg.CertsDir, cfg.Hosts...)
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Info("generated TLS certificates", "certs_dir", cfg.CertsDir)
	}
	return tls.ServerConfig(cfg.CertsDir)
}
