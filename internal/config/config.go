package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidPort   = errors.New("server port must be between 1 and 65535")
	ErrInvalidRoute  = errors.New("routes must be non-empty, start with '/' and differ")
	ErrInvalidBuffer = errors.New("relay listener_buffer must be positive")
	ErrPartialTLS    = errors.New("server tls_cert and tls_key must be set together")
	ErrPongTimeout   = errors.New("relay pong_timeout must exceed ping_interval")
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Routes  RoutesConfig  `yaml:"routes"`
	Relay   RelayConfig   `yaml:"relay"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	TLSCert        string   `yaml:"tls_cert"`
	TLSKey         string   `yaml:"tls_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RoutesConfig maps request paths to stream roles.
type RoutesConfig struct {
	Send   string `yaml:"send"`
	Listen string `yaml:"listen"`
}

type RelayConfig struct {
	ListenerBuffer  int           `yaml:"listener_buffer"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	// Verbose logs every accepted value and the resulting average.
	Verbose bool `yaml:"verbose"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Routes: RoutesConfig{
			Send:   "/send",
			Listen: "/listen",
		},
		Relay: RelayConfig{
			ListenerBuffer:  64,
			WriteTimeout:    10 * time.Second,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			MaxMessageBytes: 512,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return defaultConfig()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	send, listen := c.Routes.Send, c.Routes.Listen
	if !strings.HasPrefix(send, "/") || !strings.HasPrefix(listen, "/") || send == listen {
		return fmt.Errorf("%w: send=%q listen=%q", ErrInvalidRoute, send, listen)
	}

	if c.Relay.ListenerBuffer <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBuffer, c.Relay.ListenerBuffer)
	}

	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return ErrPartialTLS
	}

	if c.Relay.PingInterval > 0 && c.Relay.PongTimeout <= c.Relay.PingInterval {
		return fmt.Errorf("%w: ping=%s pong=%s", ErrPongTimeout, c.Relay.PingInterval, c.Relay.PongTimeout)
	}

	return nil
}

// TLSEnabled reports whether the server should terminate TLS itself.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
