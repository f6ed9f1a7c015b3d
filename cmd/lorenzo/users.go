// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"bufio"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lorenzo-online/lorenzo/internal/config"
	"github.com/lorenzo-online/lorenzo/internal/logging"
)

func newUsersCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage player accounts",
	}

	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Register a player account",
		Long:  `Register a player account. The password is read from the first line of standard input.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return runUsersAdd(cmd, cfg, args[0])
		},
	}
	config.StoreFlags(add.Flags())
	config.LogFlags(add.Flags())

	cmd.AddCommand(add)
	return cmd
}

func runUsersAdd(cmd *cobra.Command, cfg *config.Config, username string) error {
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger, err := logging.Setup(logging.Options{
		Service: "lorenzo-admin",
		Version: version,
		Format:  cfg.Logging.Format,
		Level:   cfg.Logging.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	creds, err := openCredentials(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}
	defer creds.close()

	if _, err := creds.Register(ctx, username, password); err != nil {
		return err
	}
	cmd.Printf("Registered %s\n", username)
	return nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", oops.Code("PASSWORD_REQUIRED").Errorf("password must be given on standard input")
	}
	return password, nil
}
