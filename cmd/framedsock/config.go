package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/srediag/framedsock/internal/hub"
	"github.com/srediag/framedsock/pkg/framed"
)

const (
	defaultNetwork = "tcp"
	defaultAddress = "127.0.0.1:7070"
)

// serverConfig is everything `framedsock serve` needs after the config file
// and flags have been merged.
type serverConfig struct {
	Network       string
	Address       string
	AdminAddress  string
	MaxGoroutines int
	MaxOpenFDs    int32
	LogLevel      int
	Hub           *hub.Config
}

type fileConfig struct {
	Mode          string `toml:"mode"`
	Network       string `toml:"network"`
	Address       string `toml:"address"`
	AdminAddress  string `toml:"admin_address"`
	MaxConns      int    `toml:"max_conns"`
	QueueCap      int64  `toml:"queue_cap"`
	PollInterval  string `toml:"poll_interval"`
	Delimiter     string `toml:"delimiter"`
	ChunkSize     int    `toml:"chunk_size"`
	MaxGoroutines int    `toml:"max_goroutines"`
	MaxOpenFDs    int32  `toml:"max_open_fds"`
	LogLevel      *int   `toml:"log_level"`
}

func defaultServerConfig() serverConfig {
	h := hub.DefaultConfig()
	h.Framed = framed.DefaultConfig()
	return serverConfig{
		Network:  defaultNetwork,
		Address:  defaultAddress,
		LogLevel: -1,
		Hub:      h,
	}
}

// loadServerConfig reads a TOML file over the defaults. Keys missing from the
// file keep their default value.
func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return serverConfig{}, fmt.Errorf("load server config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("mode") {
		mode, err := hub.ParseMode(strings.TrimSpace(raw.Mode))
		if err != nil {
			return serverConfig{}, err
		}
		cfg.Hub.Mode = mode
	}
	if meta.IsDefined("network") {
		cfg.Network = strings.TrimSpace(raw.Network)
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("admin_address") {
		cfg.AdminAddress = strings.TrimSpace(raw.AdminAddress)
	}
	if meta.IsDefined("max_conns") {
		cfg.Hub.MaxConns = raw.MaxConns
	}
	if meta.IsDefined("queue_cap") {
		cfg.Hub.QueueCap = raw.QueueCap
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return serverConfig{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.Hub.PollInterval = d
	}
	if meta.IsDefined("delimiter") {
		delim, err := parseDelimiter(raw.Delimiter)
		if err != nil {
			return serverConfig{}, err
		}
		cfg.Hub.Framed.Delimiter = delim
	}
	if meta.IsDefined("chunk_size") {
		cfg.Hub.Framed.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("max_goroutines") {
		cfg.MaxGoroutines = raw.MaxGoroutines
	}
	if meta.IsDefined("max_open_fds") {
		cfg.MaxOpenFDs = raw.MaxOpenFDs
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = *raw.LogLevel
	}
	return cfg, nil
}

func (c serverConfig) verify() error {
	if c.Network != "tcp" && c.Network != "unix" {
		return fmt.Errorf("unsupported network %q", c.Network)
	}
	if c.Address == "" {
		return fmt.Errorf("empty listen address")
	}
	return hub.VerifyConfig(c.Hub)
}

// parseDelimiter accepts a single byte or a Go escape such as `\n` or `\x00`.
func parseDelimiter(s string) ([]byte, error) {
	if len(s) == 1 {
		return []byte(s), nil
	}
	unquoted, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return nil, fmt.Errorf("parse delimiter %q: %w", s, err)
	}
	if len(unquoted) != 1 {
		return nil, fmt.Errorf("parse delimiter %q: %w", s, framed.ErrInvalidDelimiter)
	}
	return []byte(unquoted), nil
}
