// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/pkg/errutil"
)

func TestConfigDir(t *testing.T) {
	tests := []struct {
		name    string
		xdgHome string
		home    string
		want    string
	}{
		{name: "env var", xdgHome: "/custom/config", home: "/home/testuser", want: "/custom/config/identity"},
		{name: "home fallback", xdgHome: "", home: "/home/testuser", want: "/home/testuser/.config/identity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tt.xdgHome)
			t.Setenv("HOME", tt.home)

			got, err := ConfigDir()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataDir(t *testing.T) {
	tests := []struct {
		name    string
		xdgHome string
		home    string
		want    string
	}{
		{name: "env var", xdgHome: "/custom/data", home: "/home/testuser", want: "/custom/data/identity"},
		{name: "home fallback", xdgHome: "", home: "/home/testuser", want: "/home/testuser/.local/share/identity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_DATA_HOME", tt.xdgHome)
			t.Setenv("HOME", tt.home)

			got, err := DataDir()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigDir_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	_, err := ConfigDir()

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "XDG_NO_HOME")
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")

	got, err := ConfigFile()

	require.NoError(t, err)
	assert.Equal(t, "/etc/xdg/identity/config.yaml", got)
}

func TestSQLitePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib")
	assert.Equal(t, "/var/lib/identity/identity.sqlite", SQLitePath())

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "")
	assert.Equal(t, "identity.sqlite", SQLitePath())
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureDir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
