// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a YAML config file",
		Long: `Check FILE against the config schema and the semantic rules the
service applies at startup, with environment overrides applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(config.LoadOptions{Path: args[0]}); err != nil {
				return err //nolint:wrapcheck // config errors carry their own codes
			}
			cmd.Printf("%s: OK\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the config JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err //nolint:wrapcheck // config errors carry their own codes
			}
			if _, err := cmd.OutOrStdout().Write(append(schema, '\n')); err != nil {
				return oops.Code("OUTPUT_FAILED").Wrap(err)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in defaults as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.WriteYAML(cmd.OutOrStdout(), config.Default())
		},
	})

	return cmd
}
