// Package config loads client configuration from YAML files and NEXUS_*
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// NEXUS_SERVER_URL or NEXUS_RECONNECT_MAX_ATTEMPTS.
const EnvPrefix = "NEXUS"

var ErrInvalidConfig = errors.New("invalid configuration")

// ServerConfig locates the real-time endpoint.
type ServerConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
}

// ReconnectConfig drives the exponential backoff policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ConnectionConfig tunes the live socket.
type ConnectionConfig struct {
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	MaxMessageSize    int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
}

type NotificationsConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// CredentialsConfig selects where the bearer token lives.
type CredentialsConfig struct {
	Service  string   `mapstructure:"service" yaml:"service"`
	FileDir  string   `mapstructure:"file_dir" yaml:"file_dir"`
	Backends []string `mapstructure:"backends" yaml:"backends"`
}

type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the top-level client configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Reconnect     ReconnectConfig     `mapstructure:"reconnect" yaml:"reconnect"`
	Connection    ConnectionConfig    `mapstructure:"connection" yaml:"connection"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Credentials   CredentialsConfig   `mapstructure:"credentials" yaml:"credentials"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// Dir returns ~/.config/nexus-realtime, or the working directory when the
// home directory cannot be resolved.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nexus-realtime")
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:              "ws://localhost:4000/ws",
			HandshakeTimeout: 10 * time.Second,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   time.Second,
			MaxAttempts: 5,
		},
		Connection: ConnectionConfig{
			WriteTimeout:      10 * time.Second,
			HeartbeatInterval: 25 * time.Second,
			MaxMessageSize:    1 << 20,
		},
		Notifications: NotificationsConfig{Capacity: 200},
		Credentials: CredentialsConfig{
			Service: "nexus-realtime",
			FileDir: filepath.Join(Dir(), "credentials"),
		},
		Storage: StorageConfig{Path: filepath.Join(Dir(), "state.db")},
		Log:     LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.handshake_timeout", d.Server.HandshakeTimeout)
	v.SetDefault("reconnect.base_delay", d.Reconnect.BaseDelay)
	v.SetDefault("reconnect.max_delay", d.Reconnect.MaxDelay)
	v.SetDefault("reconnect.max_attempts", d.Reconnect.MaxAttempts)
	v.SetDefault("connection.write_timeout", d.Connection.WriteTimeout)
	v.SetDefault("connection.heartbeat_interval", d.Connection.HeartbeatInterval)
	v.SetDefault("connection.max_message_size", d.Connection.MaxMessageSize)
	v.SetDefault("notifications.capacity", d.Notifications.Capacity)
	v.SetDefault("credentials.service", d.Credentials.Service)
	v.SetDefault("credentials.file_dir", d.Credentials.FileDir)
	v.SetDefault("credentials.backends", d.Credentials.Backends)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads the configuration at path. An empty path means DefaultPath;
// a missing file is not an error and yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the realtime client relies on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "server.url: %v", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return errors.Wrapf(ErrInvalidConfig, "server.url: unsupported scheme %q", u.Scheme)
	}
	if c.Reconnect.BaseDelay <= 0 {
		return errors.Wrap(ErrInvalidConfig, "reconnect.base_delay must be positive")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.Wrap(ErrInvalidConfig, "reconnect.max_attempts must not be negative")
	}
	if c.Notifications.Capacity <= 0 {
		return errors.Wrap(ErrInvalidConfig, "notifications.capacity must be positive")
	}
	return nil
}

// WriteFile stores cfg as YAML at path, creating parent directories.
// Durations are written in their human form ("1s") so the file stays editable.
func WriteFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	data, err := yaml.Marshal(cfg.document())
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "writing config %s", path)
	}
	return nil
}

func (c Config) document() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"url":               c.Server.URL,
			"handshake_timeout": c.Server.HandshakeTimeout.String(),
		},
		"reconnect": map[string]any{
			"base_delay":   c.Reconnect.BaseDelay.String(),
			"max_delay":    c.Reconnect.MaxDelay.String(),
			"max_attempts": c.Reconnect.MaxAttempts,
		},
		"connection": map[string]any{
			"write_timeout":      c.Connection.WriteTimeout.String(),
			"heartbeat_interval": c.Connection.HeartbeatInterval.String(),
			"max_message_size":   c.Connection.MaxMessageSize,
		},
		"notifications": map[string]any{"capacity": c.Notifications.Capacity},
		"credentials": map[string]any{
			"service":  c.Credentials.Service,
			"file_dir": c.Credentials.FileDir,
			"backends": c.Credentials.Backends,
		},
		"storage": map[string]any{"path": c.Storage.Path},
		"log":     map[string]any{"level": c.Log.Level},
	}
}

// String renders the effective configuration as YAML.
func (c Config) String() string {
	data, err := yaml.Marshal(c.document())
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
