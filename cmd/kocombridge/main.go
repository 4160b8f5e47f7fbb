// Kocom Bridge - Wallpad to MQTT gateway
//
// This is the main entry point for the Kocom bridge. It connects a Kocom
// wallpad's RS485 bus (directly or through a TCP-to-serial gateway) to an
// MQTT broker, so any MQTT-speaking home automation platform can observe
// and control the home's devices: lights, outlets, thermostats, the
// ventilation fan, the gas valve, the elevator, air conditioners and the
// air quality sensor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/kocom-bridge/internal/bridge"
	"github.com/nerrad567/kocom-bridge/internal/infrastructure/config"
	"github.com/nerrad567/kocom-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/kocom-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/kocom-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/kocom-bridge/internal/wallpad"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Kocom bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to the wallpad bus
	conn, err := wallpad.Connect(ctx, wallpad.Config{
		Connection:           cfg.Wallpad.Connection,
		SendSpacing:          cfg.GetSendSpacing(),
		ReconnectDelay:       cfg.GetReconnectDelay(),
		MaxReconnectAttempts: cfg.Wallpad.Reconnect.MaxAttempts,
		Logger:               log.With("component", "wallpad"),
	})
	if err != nil {
		return fmt.Errorf("connecting to wallpad bus: %w", err)
	}
	defer func() {
		log.Info("closing wallpad connection")
		if closeErr := conn.Close(); closeErr != nil {
			log.Error("error closing wallpad connection", "error", closeErr)
		}
	}()
	log.Info("wallpad bus connected", "connection", cfg.Wallpad.Connection)

	// A permanently lost bus connection is fatal: the supervisor (systemd,
	// container runtime) restarts the process with a clean slate.
	busDown := make(chan error, 1)
	conn.SetOnDown(func(err error) {
		select {
		case busDown <- err:
		default:
		}
	})

	// Build the device hub
	hub := wallpad.NewHub(conn, wallpad.HubConfig{
		LightRooms:          cfg.Wallpad.Devices.Lights,
		OutletRooms:         cfg.Wallpad.Devices.Outlets,
		ThermostatRooms:     cfg.Wallpad.Devices.Thermostats,
		AirConditionerRooms: cfg.Wallpad.Devices.AirConditioners,
		Fan:                 cfg.Wallpad.Devices.Fan,
		GasValve:            cfg.Wallpad.Devices.GasValve,
		Elevator:            cfg.Wallpad.Devices.Elevator,
		AirQuality:          cfg.Wallpad.Devices.AirQuality,
		PollInterval:        cfg.GetPollInterval(),
	}, log.With("component", "hub"))
	defer func() {
		log.Info("stopping device hub")
		hub.Close()
	}()

	// Connect to MQTT broker (optional: without it the bridge still keeps
	// the bus connection alive and polls devices, useful for diagnostics)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, running bus-only")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the MQTT bridge
	if mqttClient != nil {
		br, err := startBridge(cfg, hub, conn, mqttClient, influxClient, log)
		if err != nil {
			return fmt.Errorf("starting bridge: %w", err)
		}
		defer func() {
			log.Info("stopping bridge")
			br.Stop()
		}()
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, conn, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Issue the initial state refresh and start polling
	hub.Start()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal or permanent bus failure
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-busDown:
		log.Error("wallpad bus permanently down", "error", err)
		return fmt.Errorf("wallpad bus: %w", err)
	}

	log.Info("Kocom bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses KOCOM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KOCOM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, conn *wallpad.Conn, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check the bus
	if !conn.IsConnected() {
		return fmt.Errorf("wallpad: not connected")
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// startBridge wires the hub, MQTT client and optional metrics backend into
// the bridge and starts it.
func startBridge(cfg *config.Config, hub *wallpad.Hub, conn *wallpad.Conn, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) (*bridge.Bridge, error) {
	opts := bridge.Options{
		Hub:    hub,
		Bus:    conn,
		MQTT:   &mqttBridgeAdapter{client: mqttClient},
		Site:   cfg.Site.ID,
		QoS:    byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
		Logger: log.With("component", "bridge"),
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	br, err := bridge.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	if err := br.Start(); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started")

	return br, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The only difference is the Subscribe handler type:
// the infrastructure client takes a named MessageHandler, the bridge a plain
// function type.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, handler)
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
