package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
site:
  id: "apt-1203"
wallpad:
  connection: "tcp://192.168.0.10:8899"
  devices:
    lights:
      0: 3
      1: 2
    thermostats: [0, 1]
    gas_valve: true
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "apt-1203" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "apt-1203")
	}

	if cfg.Wallpad.Connection != "tcp://192.168.0.10:8899" {
		t.Errorf("Wallpad.Connection = %q, want gateway URL", cfg.Wallpad.Connection)
	}

	if cfg.Wallpad.Devices.Lights[0] != 3 || cfg.Wallpad.Devices.Lights[1] != 2 {
		t.Errorf("Devices.Lights = %v, want {0:3 1:2}", cfg.Wallpad.Devices.Lights)
	}

	if !cfg.Wallpad.Devices.GasValve {
		t.Error("Devices.GasValve = false, want true")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive a partial file.
	if cfg.Wallpad.SendSpacing != 1000 {
		t.Errorf("Wallpad.SendSpacing = %d, want default 1000", cfg.Wallpad.SendSpacing)
	}
	if cfg.Wallpad.Reconnect.MaxAttempts != 5 {
		t.Errorf("Reconnect.MaxAttempts = %d, want default 5", cfg.Wallpad.Reconnect.MaxAttempts)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
wallpad:
  connection: "tcp://192.168.0.10:8899"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Site: SiteConfig{ID: "home"},
			Wallpad: WallpadConfig{
				Connection: "tcp://192.168.0.10:8899",
				Devices: DevicesConfig{
					Lights: map[byte]int{0: 3},
				},
			},
			MQTT: MQTTConfig{
				Enabled: true,
				Broker:  MQTTBrokerConfig{Host: "localhost"},
				QoS:     1,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing connection",
			mutate:  func(c *Config) { c.Wallpad.Connection = "" },
			wantErr: true,
		},
		{
			name:    "light bank too large",
			mutate:  func(c *Config) { c.Wallpad.Devices.Lights[0] = 9 },
			wantErr: true,
		},
		{
			name:    "outlet bank zero",
			mutate:  func(c *Config) { c.Wallpad.Devices.Outlets = map[byte]int{2: 0} },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name: "mqtt disabled skips broker checks",
			mutate: func(c *Config) {
				c.MQTT.Enabled = false
				c.MQTT.Broker.Host = ""
				c.MQTT.QoS = 9
			},
		},
		{
			name: "influxdb enabled requires url and token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Wallpad: WallpadConfig{
			SendSpacing:  1000,
			Reconnect:    WallpadReconnectConfig{Delay: 30},
			PollInterval: 60,
		},
	}

	if got := cfg.GetSendSpacing().Milliseconds(); got != 1000 {
		t.Errorf("GetSendSpacing() = %vms, want 1000", got)
	}

	if got := cfg.GetReconnectDelay().Seconds(); got != 30 {
		t.Errorf("GetReconnectDelay() = %vs, want 30", got)
	}

	if got := cfg.GetPollInterval().Seconds(); got != 60 {
		t.Errorf("GetPollInterval() = %vs, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("KOCOM_WALLPAD_CONNECTION", "serial:///dev/ttyUSB0")
	t.Setenv("KOCOM_MQTT_HOST", "mqtt.example.com")
	t.Setenv("KOCOM_MQTT_USERNAME", "testuser")
	t.Setenv("KOCOM_MQTT_PASSWORD", "testpass")
	t.Setenv("KOCOM_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Wallpad.Connection != "serial:///dev/ttyUSB0" {
		t.Errorf("Wallpad.Connection = %q, want env override", cfg.Wallpad.Connection)
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Wallpad.SendSpacing != 1000 {
		t.Errorf("defaultConfig Wallpad.SendSpacing = %d, want 1000", cfg.Wallpad.SendSpacing)
	}

	if cfg.Wallpad.Reconnect.Delay != 30 {
		t.Errorf("defaultConfig Reconnect.Delay = %d, want 30", cfg.Wallpad.Reconnect.Delay)
	}
}
