package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Kocom bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Wallpad  WallpadConfig  `yaml:"wallpad"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig identifies the installation. The ID becomes part of every MQTT
// topic, so two bridges in one building stay distinguishable.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// WallpadConfig contains the bus connection and device inventory settings.
type WallpadConfig struct {
	// Connection is the bus connection URL.
	// Supported formats:
	//   - "tcp://192.168.0.10:8899" (EW11 TCP-to-RS485 gateway)
	//   - "serial:///dev/ttyUSB0?baud=9600" (direct RS485 adapter)
	Connection string `yaml:"connection"`

	// SendSpacing is the pause between transmitted frames in milliseconds.
	// Default: 1000. The bus is half-duplex; lowering this risks collisions.
	SendSpacing int `yaml:"send_spacing"`

	// Reconnect contains bus reconnection settings.
	Reconnect WallpadReconnectConfig `yaml:"reconnect"`

	// Devices describes the installed device inventory.
	Devices DevicesConfig `yaml:"devices"`

	// PollInterval is the thermostat/air-conditioner polling period in
	// seconds. Default: 60. Negative disables polling.
	PollInterval int `yaml:"poll_interval"`
}

// WallpadReconnectConfig contains bus reconnection settings.
type WallpadReconnectConfig struct {
	// Delay is the fixed delay between attempts in seconds. Default: 30.
	Delay int `yaml:"delay"`

	// MaxAttempts bounds consecutive attempts before the bridge gives up.
	// Default: 5.
	MaxAttempts int `yaml:"max_attempts"`
}

// DevicesConfig describes which devices exist in this home. Maps are keyed
// by room index; sizes are the number of wired channels in a bank.
type DevicesConfig struct {
	Lights          map[byte]int `yaml:"lights"`
	Outlets         map[byte]int `yaml:"outlets"`
	Thermostats     []byte       `yaml:"thermostats"`
	AirConditioners []byte       `yaml:"air_conditioners"`
	Fan             bool         `yaml:"fan"`
	GasValve        bool         `yaml:"gas_valve"`
	Elevator        bool         `yaml:"elevator"`
	AirQuality      bool         `yaml:"air_quality"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for air quality and
// temperature history.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KOCOM_SECTION_KEY
// For example: KOCOM_WALLPAD_CONNECTION, KOCOM_MQTT_HOST
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
			ID:   "home",
			Name: "Kocom Bridge",
		},
		Wallpad: WallpadConfig{
			SendSpacing: 1000,
			Reconnect: WallpadReconnectConfig{
				Delay:       30,
				MaxAttempts: 5,
			},
			PollInterval: 60,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "kocom-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KOCOM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KOCOM_WALLPAD_CONNECTION"); v != "" {
		cfg.Wallpad.Connection = v
	}

	if v := os.Getenv("KOCOM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("KOCOM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("KOCOM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("KOCOM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
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

	if c.Wallpad.Connection == "" {
		errs = append(errs, "wallpad.connection is required (set KOCOM_WALLPAD_CONNECTION or wallpad.connection)")
	}
	for room, size := range c.Wallpad.Devices.Lights {
		if size < 1 || size > 8 {
			errs = append(errs, fmt.Sprintf("wallpad.devices.lights[%d] size must be 1-8", room))
		}
	}
	for room, size := range c.Wallpad.Devices.Outlets {
		if size < 1 || size > 8 {
			errs = append(errs, fmt.Sprintf("wallpad.devices.outlets[%d] size must be 1-8", room))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set KOCOM_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetSendSpacing returns the inter-frame spacing as a Duration.
func (c *Config) GetSendSpacing() time.Duration {
	return time.Duration(c.Wallpad.SendSpacing) * time.Millisecond
}

// GetReconnectDelay returns the bus reconnect delay as a Duration.
func (c *Config) GetReconnectDelay() time.Duration {
	return time.Duration(c.Wallpad.Reconnect.Delay) * time.Second
}

// GetPollInterval returns the device poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Wallpad.PollInterval) * time.Second
}
