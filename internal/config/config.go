// Package config provides Viper-based configuration loading for the duel broker.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TCPConfig holds the line-delimited TCP frontend settings.
type TCPConfig struct {
	// Enabled turns the TCP listener on.
	Enabled bool `mapstructure:"enabled"`
	// Host is the bind address.
	Host string `mapstructure:"host"`
	// Port is the TCP port.
	Port int `mapstructure:"port"`
	// ReadTimeout closes a connection that sends nothing for this long. Zero disables.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds each write to the client. Zero disables.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxLineBytes is the longest accepted message line.
	MaxLineBytes int `mapstructure:"max_line_bytes"`
	// OutboxSize is the per-connection buffered message count.
	OutboxSize int `mapstructure:"outbox_size"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TCPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// WebSocketConfig holds the WebSocket frontend settings.
type WebSocketConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// Path is the HTTP path upgraded to a WebSocket.
	Path string `mapstructure:"path"`
	// WriteWait bounds each frame write.
	WriteWait time.Duration `mapstructure:"write_wait"`
	// PongWait is how long a silent peer is kept; pings go out at 9/10 of it.
	PongWait time.Duration `mapstructure:"pong_wait"`
	// MaxMessageBytes is the read limit per frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	OutboxSize      int   `mapstructure:"outbox_size"`
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
func (w WebSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// PingPeriod returns the keepalive ping interval.
func (w WebSocketConfig) PingPeriod() time.Duration {
	return w.PongWait * 9 / 10
}

// AdminConfig holds the admin gRPC listener settings.
type AdminConfig struct {
	// GRPCHost is the bind address for the health service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the health service.
	GRPCPort int `mapstructure:"grpc_port"`
	// StatsInterval is how often broker load is logged. Zero disables.
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.GRPCHost, a.GRPCPort)
}

// EngineConfig holds session engine settings.
type EngineConfig struct {
	// TickInterval is the period of each engine's clock update.
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// LatencyConfig holds the latency simulator settings.
type LatencyConfig struct {
	// FakeDelay delays each input message by this much. Zero disables.
	FakeDelay time.Duration `mapstructure:"fake_delay"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	TCP       TCPConfig       `mapstructure:"tcp"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Latency   LatencyConfig   `mapstructure:"latency"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTCP(c.TCP); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		errs = append(errs, err.Error())
	}
	if !c.TCP.Enabled && !c.WebSocket.Enabled {
		errs = append(errs, "at least one of tcp.enabled and websocket.enabled must be true")
	}
	if c.TCP.Enabled && c.WebSocket.Enabled && c.TCP.Addr() == c.WebSocket.Addr() {
		errs = append(errs, fmt.Sprintf("tcp and websocket must not share address %s", c.TCP.Addr()))
	}
	if err := validateAdmin(c.Admin); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Engine.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("engine.tick_interval must be > 0, got %s", c.Engine.TickInterval))
	}
	if c.Latency.FakeDelay < 0 {
		errs = append(errs, "latency.fake_delay must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be 1-65535, got %d", field, port)
	}
	return nil
}

func validateTCP(t TCPConfig) error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if err := validatePort("tcp.port", t.Port); err != nil {
		errs = append(errs, err.Error())
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "tcp.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "tcp.write_timeout must not be negative")
	}
	if t.MaxLineBytes < 16 {
		errs = append(errs, fmt.Sprintf("tcp.max_line_bytes must be >= 16, got %d", t.MaxLineBytes))
	}
	if t.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("tcp.outbox_size must be >= 1, got %d", t.OutboxSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	if !w.Enabled {
		return nil
	}
	var errs []string
	if err := validatePort("websocket.port", w.Port); err != nil {
		errs = append(errs, err.Error())
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with /, got %q", w.Path))
	}
	if w.WriteWait <= 0 {
		errs = append(errs, "websocket.write_wait must be > 0")
	}
	if w.PongWait <= 0 {
		errs = append(errs, "websocket.pong_wait must be > 0")
	}
	if w.MaxMessageBytes < 16 {
		errs = append(errs, fmt.Sprintf("websocket.max_message_bytes must be >= 16, got %d", w.MaxMessageBytes))
	}
	if w.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("websocket.outbox_size must be >= 1, got %d", w.OutboxSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	var errs []string
	if a.GRPCHost == "" {
		errs = append(errs, "admin.grpc_host must not be empty")
	}
	if err := validatePort("admin.grpc_port", a.GRPCPort); err != nil {
		errs = append(errs, err.Error())
	}
	if a.StatsInterval < 0 {
		errs = append(errs, "admin.stats_interval must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with DUEL_ prefix
	v.SetEnvPrefix("DUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file overrides anything.
func Default() (Config, error) {
	v := viper.New()
	setDefaults(v)
	return LoadFromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tcp.enabled", true)
	v.SetDefault("tcp.host", "0.0.0.0")
	v.SetDefault("tcp.port", 4100)
	v.SetDefault("tcp.read_timeout", "2m")
	v.SetDefault("tcp.write_timeout", "10s")
	v.SetDefault("tcp.max_line_bytes", 4096)
	v.SetDefault("tcp.outbox_size", 256)

	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 4101)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.max_message_bytes", 4096)
	v.SetDefault("websocket.outbox_size", 256)

	v.SetDefault("admin.grpc_host", "127.0.0.1")
	v.SetDefault("admin.grpc_port", 50061)
	v.SetDefault("admin.stats_interval", "1m")

	v.SetDefault("engine.tick_interval", "15ms")

	v.SetDefault("latency.fake_delay", "0s")
}
