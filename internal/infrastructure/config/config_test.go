package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes YAML content to a temporary config file.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
router:
  host: "192.168.88.1"
  port: 8729
  username: "netwatch"
  polling_interval_seconds: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-site", cfg.Site.ID)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "localhost", cfg.MQTT.Broker.Host)
	assert.Equal(t, "192.168.88.1", cfg.Router.Host)
	assert.Equal(t, 8729, cfg.Router.Port)
	assert.Equal(t, 15, cfg.Router.PollingIntervalSeconds)

	// Unset values keep their defaults
	assert.Equal(t, 1000, cfg.Router.DefaultTimeoutMs)
	assert.Equal(t, 10, cfg.Router.DefaultIntervalSeconds)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
database:
  path: "/tmp/test.db"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site.id is required")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Router.Host = "10.0.0.1"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: "influxdb.url",
		},
		{
			name:    "zero remote timeout",
			mutate:  func(c *Config) { c.Remote.Timeout = 0 },
			wantErr: "remote.timeout",
		},
		{
			name:    "router port low",
			mutate:  func(c *Config) { c.Router.Port = 0 },
			wantErr: "router.port",
		},
		{
			name:    "router port high",
			mutate:  func(c *Config) { c.Router.Port = 70000 },
			wantErr: "router.port",
		},
		{
			name:    "zero polling interval",
			mutate:  func(c *Config) { c.Router.PollingIntervalSeconds = 0 },
			wantErr: "router.polling_interval_seconds",
		},
		{
			name:    "negative default timeout",
			mutate:  func(c *Config) { c.Router.DefaultTimeoutMs = -1 },
			wantErr: "router.default_timeout_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_GetRemoteTimeout(t *testing.T) {
	cfg := &Config{Remote: RemoteConfig{Timeout: 7}}
	assert.Equal(t, 7*time.Second, cfg.GetRemoteTimeout())
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("NETWATCH_DATABASE_PATH", "/custom/path.db")
	t.Setenv("NETWATCH_MQTT_HOST", "mqtt.example.com")
	t.Setenv("NETWATCH_MQTT_USERNAME", "testuser")
	t.Setenv("NETWATCH_MQTT_PASSWORD", "testpass")
	t.Setenv("NETWATCH_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("NETWATCH_ROUTER_HOST", "192.168.88.1")
	t.Setenv("NETWATCH_ROUTER_PORT", "8729")
	t.Setenv("NETWATCH_ROUTER_USERNAME", "api")
	t.Setenv("NETWATCH_ROUTER_PASSWORD", "hunter2")

	applyEnvOverrides(cfg)

	assert.Equal(t, "/custom/path.db", cfg.Database.Path)
	assert.Equal(t, "mqtt.example.com", cfg.MQTT.Broker.Host)
	assert.Equal(t, "testuser", cfg.MQTT.Auth.Username)
	assert.Equal(t, "testpass", cfg.MQTT.Auth.Password)
	assert.Equal(t, "secret-token", cfg.InfluxDB.Token)
	assert.Equal(t, "192.168.88.1", cfg.Router.Host)
	assert.Equal(t, 8729, cfg.Router.Port)
	assert.Equal(t, "api", cfg.Router.Username)
	assert.Equal(t, "hunter2", cfg.Router.Password)
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("NETWATCH_ROUTER_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	assert.Equal(t, 8728, cfg.Router.Port)
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.NotEmpty(t, cfg.Site.ID)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, 1883, cfg.MQTT.Broker.Port)
	assert.Equal(t, 8728, cfg.Router.Port)
	assert.Equal(t, 30, cfg.Router.PollingIntervalSeconds)
	assert.NoError(t, cfg.Validate())
}
