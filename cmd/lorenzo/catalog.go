// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lorenzo-online/lorenzo/internal/game"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect card catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of catalog files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := game.GenerateCatalogSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>...",
		Short: "Check catalog files against the schema and the game rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				if err := validateCatalogFile(path); err != nil {
					cmd.PrintErrf("%s: %v\n", path, err)
					failed++
					continue
				}
				cmd.Printf("%s: ok\n", path)
			}
			if failed > 0 {
				return oops.Code("CATALOG_INVALID").Errorf("%d of %d catalog(s) invalid", failed, len(args))
			}
			return nil
		},
	})

	return cmd
}

func validateCatalogFile(path string) error {
	//nolint:gosec // path is an operator-supplied argument
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("CATALOG_READ_FAILED").With("path", path).Wrap(err)
	}
	_, err = game.ParseCatalog(data)
	return err
}
