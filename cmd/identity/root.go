// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/xdg"
)

const serviceName = "identity"

// NewRootCmd creates the root command for the identity CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Identity - user accounts and sessions over HTTP",
		Long: `Identity registers users with hashed credentials and issues
expiring session tokens, served as a small JSON HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd(nil))
	cmd.AddCommand(NewMigrateCmd(nil))
	cmd.AddCommand(NewUserCmd(nil))
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads --config plus the command's own flags and the
// environment. Without --config the XDG config file is used if present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil || path == "" {
		path = defaultConfigFile()
	}
	//nolint:wrapcheck // config errors carry their own codes
	return config.Load(config.LoadOptions{Path: path, Flags: cmd.Flags()})
}

func defaultConfigFile() string {
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
