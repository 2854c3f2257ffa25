package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", false)
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigMissingFileNotRequired(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"), false)
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigMissingFileRequired(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"), true)
	require.Error(t, err)
}

func TestLoadConfigOverlay(t *testing.T) {
	path := writeConfig(t, `
host = "chat.example.com"
port = 9999
username = "penger"
auto_login = false
`)
	cfg, err := loadConfig(path, true)
	require.NoError(t, err)

	require.Equal(t, "chat.example.com", cfg.Host)
	require.Equal(t, 9999, cfg.Port)
	require.Equal(t, "penger", cfg.Username)
	require.False(t, cfg.AutoLogin)

	// Keys absent from the file keep their defaults.
	require.Equal(t, defaultConfig().Scrollback, cfg.Scrollback)
	require.False(t, cfg.QUIC)
}

func TestLoadConfigPartial(t *testing.T) {
	path := writeConfig(t, `username = "penger"`)
	cfg, err := loadConfig(path, true)
	require.NoError(t, err)

	want := defaultConfig()
	want.Username = "penger"
	require.Equal(t, want, cfg)
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	for _, port := range []int{-1, 0, 70000} {
		path := writeConfig(t, fmt.Sprintf("port = %d", port))
		_, err := loadConfig(path, true)
		require.Error(t, err, "port %d", port)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, `password = "never-here"`)
	_, err := loadConfig(path, true)
	require.ErrorContains(t, err, "unknown key")
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	path := writeConfig(t, `host = unquoted`)
	_, err := loadConfig(path, true)
	require.Error(t, err)
}
