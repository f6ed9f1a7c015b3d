// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/lorenzo-online/lorenzo/internal/protocol"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("lorenzo %s (commit: %s, built: %s)\n", version, commit, date)
			cmd.Printf("protocol %s, accepts %s\n", protocol.Version, protocol.DefaultVersionConstraint)
		},
	}
}
