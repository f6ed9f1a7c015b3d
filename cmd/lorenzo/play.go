// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lorenzo-online/lorenzo/internal/config"
	"github.com/lorenzo-online/lorenzo/internal/console"
	"github.com/lorenzo-online/lorenzo/internal/coordinator"
	"github.com/lorenzo-online/lorenzo/internal/logging"
	"github.com/lorenzo-online/lorenzo/internal/tls"
	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/internal/transport/grpcbind"
	"github.com/lorenzo-online/lorenzo/internal/transport/socket"
)

func newPlayCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a match from the console",
		Long: `Connect to a Lorenzo server, log in or register, and play a match
by answering the numbered prompts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPlay(ctx, cfg.Client, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	config.ClientFlags(cmd.Flags())
	return cmd
}

// runPlay drives one session of the console client.
func runPlay(ctx context.Context, cfg config.Client, in io.Reader, out io.Writer) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := console.NewLogger(level)

	binding, err := newBinding(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := binding.Close(); err != nil {
			logger.Debug("error closing binding", "error", err)
		}
	}()

	input := coordinator.NewInputQueue()
	go func() {
		if err := coordinator.ReadLines(in, input); err != nil {
			logger.Debug("input closed", "error", err)
		}
	}()

	c := coordinator.New(binding, console.New(out), input, coordinator.WithLogger(logger))
	return c.Run(ctx)
}

// newBinding creates the client end of the configured transport.
func newBinding(cfg config.Client, logger *slog.Logger) (transport.Binding, error) {
	switch cfg.Transport {
	case config.TransportGRPC:
		clientCfg := grpcbind.ClientConfig{Address: cfg.Address, Logger: logger}
		if cfg.TLS {
			tlsConfig, err := tls.ClientConfig(cfg.CAFile, cfg.ServerName)
			if err != nil {
				return nil, err
			}
			clientCfg.TLSConfig = tlsConfig
		}
		return grpcbind.NewClient(clientCfg)
	case config.TransportSocket:
		return socket.NewClient(socket.ClientConfig{Address: cfg.Address, Logger: logger})
	default:
		return nil, oops.Code("CONFIG_INVALID").With("transport", cfg.Transport).Errorf("unknown transport %q", cfg.Transport)
	}
}
