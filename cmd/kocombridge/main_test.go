package main

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("KOCOM_CONFIG")
	defer os.Setenv("KOCOM_CONFIG", originalEnv)

	os.Setenv("KOCOM_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingConnection verifies run fails when the bus connection URL
// is absent.
func TestRun_MissingConnection(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site

wallpad:
  connection: ""
  devices:
    lights:
      0: 2

mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
    tls: false
  qos: 1

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("KOCOM_CONFIG")
	defer os.Setenv("KOCOM_CONFIG", originalEnv)
	os.Setenv("KOCOM_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a bus connection URL")
	}
}

// TestRun_UnreachableBus verifies run fails cleanly when the gateway cannot
// be dialled.
func TestRun_UnreachableBus(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site

wallpad:
  connection: "tcp://127.0.0.1:59998"
  devices:
    lights:
      0: 2

mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-unreachable-bus"
    tls: false
  qos: 1

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("KOCOM_CONFIG")
	defer os.Setenv("KOCOM_CONFIG", originalEnv)
	os.Setenv("KOCOM_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the gateway is unreachable")
	}
}

// TestRun_MQTTDisabled verifies the bridge runs bus-only when mqtt.enabled
// is false: no broker connection is attempted and run exits cleanly on
// context cancellation.
func TestRun_MQTTDisabled(t *testing.T) {
	// Stand in for the TCP-to-serial gateway.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start fake gateway: %v", err)
	}
	defer listener.Close()
	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		io.Copy(io.Discard, conn)
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site

wallpad:
  connection: "tcp://` + listener.Addr().String() + `"
  devices:
    lights:
      0: 2
  poll_interval: -1

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("KOCOM_CONFIG")
	defer os.Setenv("KOCOM_CONFIG", originalEnv)
	os.Setenv("KOCOM_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() with mqtt disabled error = %v, want nil", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("KOCOM_CONFIG")
	defer os.Setenv("KOCOM_CONFIG", originalEnv)

	os.Unsetenv("KOCOM_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("KOCOM_CONFIG")
	defer os.Setenv("KOCOM_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("KOCOM_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
