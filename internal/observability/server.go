// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package observability serves Prometheus metrics and health probes.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker reports whether the server accepts players.
type ReadinessChecker func() bool

// Registrar adds a package's collectors to a registry, e.g.
// match.RegisterMetrics.
type Registrar func(prometheus.Registerer)

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "lorenzo_build_info",
		Help: "Build information; the value is always 1",
	},
	[]string{"version", "protocol"},
)

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr       string
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	isReady    ReadinessChecker
	running    atomic.Bool
}

// Config configures a Server.
type Config struct {
	// Addr is a "host:port" listen address, e.g. "127.0.0.1:9100".
	Addr            string
	Version         string
	ProtocolVersion string
	Ready           ReadinessChecker
	Logger          *slog.Logger
}

// NewServer creates an observability server with its own registry holding
// the Go and process collectors plus everything registrars add.
func NewServer(cfg Config, registrars ...Registrar) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(buildInfo)
	buildInfo.WithLabelValues(cfg.Version, cfg.ProtocolVersion).Set(1)

	for _, register := range registrars {
		register(registry)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     cfg.Addr,
		logger:   logger,
		registry: registry,
		isReady:  cfg.Ready,
	}
}

// Registry returns the server's registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start begins serving. The returned channel receives a serve failure
// after Start returns and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server. Stopping a stopped server is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").Wrap(err)
		}
	}
	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
