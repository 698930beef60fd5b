// Package config loads linesrv settings from a TOML or YAML file with
// LINESRV_* environment overrides.
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a string such as "30s" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Config is the top-level linesrv configuration.
type Config struct {
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Connection ConnectionConfig `toml:"connection" yaml:"connection"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// ServerConfig describes the listeners.
type ServerConfig struct {
	// TCP listen address, e.g. "127.0.0.1:12345".
	Listen string `toml:"listen" yaml:"listen"`
	// Optional HTTP address serving the protocol over WebSocket. Empty disables it.
	WebSocketListen string `toml:"websocket_listen" yaml:"websocket_listen"`
	WebSocketPath   string `toml:"websocket_path" yaml:"websocket_path"`
	// Origin patterns allowed to open WebSocket connections.
	WebSocketOrigins []string `toml:"websocket_origins" yaml:"websocket_origins"`
	ShutdownTimeout  Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxConnections   int      `toml:"max_connections" yaml:"max_connections"`
	ReusePort        bool     `toml:"reuse_port" yaml:"reuse_port"`
}

// ConnectionConfig holds per-connection limits.
type ConnectionConfig struct {
	// Zero leaves frames unbounded.
	MaxFrameSize   int      `toml:"max_frame_size" yaml:"max_frame_size"`
	ReadBufferSize int      `toml:"read_buffer_size" yaml:"read_buffer_size"`
	IdleTimeout    Duration `toml:"idle_timeout" yaml:"idle_timeout"`
}

// LogConfig controls the CLI log handler.
type LogConfig struct {
	// debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`
	// auto, always or never.
	Color string `toml:"color" yaml:"color"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          "127.0.0.1:12345",
			WebSocketPath:   "/ws",
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Connection: ConnectionConfig{
			MaxFrameSize:   1024 * 1024,
			ReadBufferSize: 4096,
		},
		Log: LogConfig{
			Level: "info",
			Color: "auto",
		},
	}
}

// Load reads the file at path on top of Default, applies environment
// overrides and validates the result. An empty path skips the file.
// The format is chosen by extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errors.Errorf("parsing %s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "opening config")
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrapf(err, "parsing %s", path)
		}
	default:
		return errors.Errorf("unsupported config format %q", ext)
	}

	return nil
}

// applyEnv overrides fields from LINESRV_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LINESRV_LISTEN"); ok && v != "" {
		c.Server.Listen = v
	}
	if v, ok := lookup("LINESRV_WEBSOCKET_LISTEN"); ok {
		c.Server.WebSocketListen = v
	}
	if v, ok := lookup("LINESRV_MAX_CONNECTIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "LINESRV_MAX_CONNECTIONS")
		}
		c.Server.MaxConnections = n
	}
	if v, ok := lookup("LINESRV_MAX_FRAME_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "LINESRV_MAX_FRAME_SIZE")
		}
		c.Connection.MaxFrameSize = n
	}
	if v, ok := lookup("LINESRV_IDLE_TIMEOUT"); ok && v != "" {
		if err := c.Connection.IdleTimeout.UnmarshalText([]byte(v)); err != nil {
			return errors.WithMessage(err, "LINESRV_IDLE_TIMEOUT")
		}
	}
	if v, ok := lookup("LINESRV_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}

	return nil
}

// Validate checks that the configuration can be used to start a server.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server.listen must be set")
	}
	if c.Server.MaxConnections < 0 {
		return errors.Errorf("server.max_connections must not be negative, got %d", c.Server.MaxConnections)
	}
	if c.Server.WebSocketListen != "" && !strings.HasPrefix(c.Server.WebSocketPath, "/") {
		return errors.Errorf("server.websocket_path must start with /, got %q", c.Server.WebSocketPath)
	}
	if c.Connection.MaxFrameSize < 0 {
		return errors.Errorf("connection.max_frame_size must not be negative, got %d", c.Connection.MaxFrameSize)
	}
	if c.Connection.ReadBufferSize < 0 {
		return errors.Errorf("connection.read_buffer_size must not be negative, got %d", c.Connection.ReadBufferSize)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Color {
	case "auto", "always", "never":
	default:
		return errors.Errorf("log.color must be auto, always or never, got %q", c.Log.Color)
	}

	return nil
}

// SlogLevel converts the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, errors.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
	return level, nil
}
