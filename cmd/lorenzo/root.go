// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/lorenzo-online/lorenzo/internal/config"
)

// NewRootCmd creates the root command for the Lorenzo CLI.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "lorenzo",
		Short: "Lorenzo - an online board game of Renaissance Florence",
		Long: `Lorenzo runs networked matches of a Renaissance worker-placement
board game for two to four players, and ships a console client to play them.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/lorenzo/config.yaml)")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(config.Sources{File: configFile, Flags: cmd.Flags()})
	}

	cmd.AddCommand(newServeCmd(load, nil))
	cmd.AddCommand(newPlayCmd(load))
	cmd.AddCommand(newUsersCmd(load))
	cmd.AddCommand(newMigrateCmd(load))
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newStatusCmd(load))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// configLoader loads the configuration for a command, applying its flags.
type configLoader func(cmd *cobra.Command) (*config.Config, error)
