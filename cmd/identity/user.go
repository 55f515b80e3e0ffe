// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/logging"
)

// NewUserCmd creates the user subcommand for account administration.
func NewUserCmd(deps *UserDeps) *cobra.Command {
	if deps == nil {
		deps = &UserDeps{}
	}
	if deps.DirectoryOpener == nil {
		deps.DirectoryOpener = OpenDirectory
	}
	if deps.PasswordReader == nil {
		deps.PasswordReader = readPassword
	}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var username, email string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user in the configured directory",
		Long: `Register a user directly in the directory. The password is read
from the terminal without echo, or from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runUserAdd(cmd, cfg, deps, username, email)
		},
	}
	add.Flags().StringVar(&username, "username", "", "username (required)")
	add.Flags().StringVar(&email, "email", "", "email address (required)")
	add.Flags().String("directory-driver", config.Default().Directory.Driver, "user directory (postgres or sqlite)")
	add.Flags().String("database-url", "", "PostgreSQL URL for the postgres directory")
	add.Flags().String("sqlite-path", config.Default().Directory.SQLitePath, "database file for the sqlite directory")
	cmd.AddCommand(add)

	return cmd
}

func runUserAdd(cmd *cobra.Command, cfg *config.Config, deps *UserDeps, username, email string) error {
	if cfg.Directory.Driver == config.DriverMemory {
		return oops.Code("CONFIG_INVALID").
			Errorf("user add needs a persistent directory; set --directory-driver to postgres or sqlite")
	}

	// Log to stderr so stdout carries only the created user.
	logger := logging.Setup(serviceName, version, "text", cfg.Log.Level, cmd.ErrOrStderr())

	password, err := deps.PasswordReader(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}

	ctx := cmd.Context()
	backends, err := deps.DirectoryOpener(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open directory").Wrap(err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("directory close failed", "error", err)
		}
	}()

	svc, err := auth.NewUserServiceWithLogger(backends.Users, auth.NewArgon2idHasher(), logger)
	if err != nil {
		return oops.With("operation", "create user service").Wrap(err)
	}

	user, err := svc.Register(ctx, auth.Registration{
		Username: username,
		Password: password,
		Email:    email,
	})
	if err != nil {
		return err //nolint:wrapcheck // auth errors carry their own kind
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	//nolint:wrapcheck // output errors are reported as-is
	return enc.Encode(user)
}

// readPassword prompts on a terminal without echo, and otherwise reads
// the first line of in.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = io.WriteString(out, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = io.WriteString(out, "\n")
		if err != nil {
			return "", oops.With("source", "terminal").Wrap(err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.With("source", "stdin").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
