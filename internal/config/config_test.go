package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		TCP: TCPConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         4100,
			ReadTimeout:  2 * time.Minute,
			WriteTimeout: 10 * time.Second,
			MaxLineBytes: 4096,
			OutboxSize:   256,
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            4101,
			Path:            "/ws",
			WriteWait:       10 * time.Second,
			PongWait:        time.Minute,
			MaxMessageBytes: 4096,
			OutboxSize:      256,
		},
		Admin: AdminConfig{
			GRPCHost:      "127.0.0.1",
			GRPCPort:      50061,
			StatsInterval: time.Minute,
		},
		Engine: EngineConfig{
			TickInterval: 15 * time.Millisecond,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestAddrs(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:4100", cfg.TCP.Addr())
	assert.Equal(t, "0.0.0.0:4101", cfg.WebSocket.Addr())
	assert.Equal(t, "127.0.0.1:50061", cfg.Admin.Addr())
}

func TestPingPeriod(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 54*time.Second, cfg.WebSocket.PingPeriod())
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Millisecond, cfg.Engine.TickInterval)
	assert.Zero(t, cfg.Latency.FakeDelay)
	assert.True(t, cfg.TCP.Enabled)
	assert.True(t, cfg.WebSocket.Enabled)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
tcp:
  host: 127.0.0.1
  port: 4200
  read_timeout: 1m
websocket:
  enabled: false
engine:
  tick_interval: 20ms
latency:
  fake_delay: 150ms
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4200, cfg.TCP.Port)
	assert.Equal(t, time.Minute, cfg.TCP.ReadTimeout)
	assert.Equal(t, 4096, cfg.TCP.MaxLineBytes, "unset keys keep defaults")
	assert.False(t, cfg.WebSocket.Enabled)
	assert.Equal(t, 20*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, 150*time.Millisecond, cfg.Latency.FakeDelay)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))
	t.Setenv("DUEL_LATENCY_FAKE_DELAY", "75ms")
	t.Setenv("DUEL_TCP_PORT", "4300")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75*time.Millisecond, cfg.Latency.FakeDelay)
	assert.Equal(t, 4300, cfg.TCP.Port)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  tick_interval: 0s\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.tick_interval")
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateFrontends(t *testing.T) {
	cfg := validConfig()
	cfg.TCP.Enabled = false
	cfg.WebSocket.Enabled = false
	assert.ErrorContains(t, cfg.Validate(), "at least one")

	cfg = validConfig()
	cfg.WebSocket.Port = cfg.TCP.Port
	assert.ErrorContains(t, cfg.Validate(), "must not share")

	cfg = validConfig()
	cfg.TCP.Enabled = false
	cfg.TCP.Port = 0
	assert.NoError(t, cfg.Validate(), "disabled frontends are not validated")
}

func TestValidateTCP(t *testing.T) {
	cfg := validConfig()
	cfg.TCP.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TCP.OutboxSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TCP.ReadTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateWebSocket(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.Path = "ws"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.WebSocket.PongWait = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateAdmin(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.GRPCHost = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Admin.GRPCPort = 65536
	assert.Error(t, cfg.Validate())
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "loud"
	cfg.Engine.TickInterval = 0
	cfg.Latency.FakeDelay = -time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "engine.tick_interval")
	assert.Contains(t, err.Error(), "latency.fake_delay")
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Admin.GRPCPort = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.TCP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyNonNegativeDelayAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(0, 10_000).Draw(t, "delay_ms")
		cfg := validConfig()
		cfg.Latency.FakeDelay = time.Duration(ms) * time.Millisecond
		if err := cfg.Validate(); err != nil {
			t.Fatalf("delay %dms rejected: %v", ms, err)
		}
	})
}
