package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/kocom-bridge/internal/infrastructure/config"
)

// Offline reasons carried in the status message so a consumer can tell a
// clean stop from a crash.
const (
	reasonShutdown   = "graceful_shutdown"
	reasonUnexpected = "unexpected_disconnect"
)

// statusMessage is the retained payload on kocom/system/status.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusOnline(clientID string) []byte {
	return encodeStatus(statusMessage{Status: "online", ClientID: clientID})
}

func statusOffline(clientID, reason string) []byte {
	return encodeStatus(statusMessage{Status: "offline", ClientID: clientID, Reason: reason})
}

func encodeStatus(msg statusMessage) []byte {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, _ := json.Marshal(msg)
	return payload
}

// brokerOptions maps the config onto paho client options. Reconnection is
// delegated to paho: connect retry with backoff between InitialDelay and
// MaxDelay, clean session on every connect (which is why the client replays
// its subscriptions itself).
func brokerOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// setWill registers the testament the broker publishes if the bridge dies
// without a graceful disconnect.
func setWill(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(Topics{}.SystemStatus(),
		string(statusOffline(clientID, reasonUnexpected)), 1, true)
}
