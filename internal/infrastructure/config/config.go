package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Netwatch Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Remote   RemoteConfig   `yaml:"remote"`
	Router   RouterConfig   `yaml:"router"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RemoteConfig contains settings for the RouterOS control channel that are
// process-level rather than part of the stored system configuration.
type RemoteConfig struct {
	// Timeout bounds dialling and each command round trip (seconds).
	// Default: 10
	Timeout int `yaml:"timeout"`
}

// RouterConfig seeds the stored system configuration on first start.
//
// Once the system_config row exists it is owned by the admin surface and
// these values are ignored.
type RouterConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	Username               string `yaml:"username"`
	Password               string `yaml:"password"`
	PollingIntervalSeconds int    `yaml:"polling_interval_seconds"`
	DefaultTimeoutMs       int    `yaml:"default_timeout_ms"`
	DefaultIntervalSeconds int    `yaml:"default_interval_seconds"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values), including a .env file
//     in the working directory if one exists
//
// Environment variables follow the pattern: NETWATCH_SECTION_KEY
// For example: NETWATCH_DATABASE_PATH, NETWATCH_ROUTER_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A missing .env is the normal case outside development.
	_ = godotenv.Load() //nolint:errcheck // optional file

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Netwatch",
		},
		Database: DatabaseConfig{
			Path:        "./data/netwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "netwatch-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Remote: RemoteConfig{
			Timeout: 10,
		},
		Router: RouterConfig{
			Port:                   8728,
			Username:               "admin",
			PollingIntervalSeconds: 30,
			DefaultTimeoutMs:       1000,
			DefaultIntervalSeconds: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NETWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("NETWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("NETWATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NETWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NETWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("NETWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Router bootstrap
	if v := os.Getenv("NETWATCH_ROUTER_HOST"); v != "" {
		cfg.Router.Host = v
	}
	if v := os.Getenv("NETWATCH_ROUTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Router.Port = port
		}
	}
	if v := os.Getenv("NETWATCH_ROUTER_USERNAME"); v != "" {
		cfg.Router.Username = v
	}
	if v := os.Getenv("NETWATCH_ROUTER_PASSWORD"); v != "" {
		cfg.Router.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Remote.Timeout <= 0 {
		errs = append(errs, "remote.timeout must be positive")
	}

	if c.Router.Port < 1 || c.Router.Port > 65535 {
		errs = append(errs, "router.port must be between 1 and 65535")
	}
	if c.Router.PollingIntervalSeconds <= 0 {
		errs = append(errs, "router.polling_interval_seconds must be positive")
	}
	if c.Router.DefaultTimeoutMs <= 0 {
		errs = append(errs, "router.default_timeout_ms must be positive")
	}
	if c.Router.DefaultIntervalSeconds <= 0 {
		errs = append(errs, "router.default_interval_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRemoteTimeout returns the control channel timeout as a Duration.
func (c *Config) GetRemoteTimeout() time.Duration {
	return time.Duration(c.Remote.Timeout) * time.Second
}
