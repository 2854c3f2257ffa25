package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/blockdoth/chatger/internal/history"
	"github.com/blockdoth/chatger/internal/transport"
)

// appConfig is the resolved configuration after overlaying the config
// file and flags on the defaults. Passwords never appear here; they come
// from the -pass flag or an interactive prompt only.
type appConfig struct {
	Host       string
	Port       int
	Username   string
	AutoLogin  bool
	QUIC       bool
	LogFile    string
	Scrollback int
}

func defaultConfig() appConfig {
	return appConfig{
		Host:       "127.0.0.1",
		Port:       transport.DefaultPort,
		AutoLogin:  true,
		Scrollback: history.DefaultCapacity,
	}
}

// fileConfig mirrors the TOML file layout.
type fileConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	AutoLogin  bool   `toml:"auto_login"`
	QUIC       bool   `toml:"quic"`
	LogFile    string `toml:"log_file"`
	Scrollback int    `toml:"scrollback"`
}

// defaultConfigPath returns the conventional config location, or "" if
// the user config dir cannot be determined.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatger", "config.toml")
}

// loadConfig overlays the TOML file at path on the defaults. Only keys
// present in the file override; absent keys keep their defaults. A
// missing file at the conventional path is not an error.
func loadConfig(path string, mustExist bool) (appConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !mustExist && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("auto_login") {
		cfg.AutoLogin = raw.AutoLogin
	}
	if meta.IsDefined("quic") {
		cfg.QUIC = raw.QUIC
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("scrollback") {
		cfg.Scrollback = raw.Scrollback
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return appConfig{}, fmt.Errorf("load config: port %d out of range", cfg.Port)
	}
	if cfg.Scrollback <= 0 {
		return appConfig{}, fmt.Errorf("load config: scrollback must be positive, got %d", cfg.Scrollback)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return appConfig{}, fmt.Errorf("load config: unknown key %q", undec[0].String())
	}

	return cfg, nil
}
