package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/kocom-bridge/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial broker connection.
	connectTimeout = 10 * time.Second

	// opTimeout bounds publish and subscribe acknowledgements.
	opTimeout = 5 * time.Second

	// disconnectQuiesce is how long Close lets in-flight operations finish,
	// in milliseconds (paho's unit).
	disconnectQuiesce = 1000

	keepAlive = 60 * time.Second

	maxQoS = 2

	// maxPayloadSize caps outgoing payloads at 1MB. Bridge payloads are tiny
	// JSON documents; anything near this limit is a bug.
	maxPayloadSize = 1 << 20
)

// MessageHandler receives one inbound message. Handlers run on paho's
// delivery goroutines; a returned error is logged, nothing more, since MQTT
// has no nack.
type MessageHandler func(topic string, payload []byte) error

// Logger is the minimal logging surface the client needs. Satisfied by
// logging.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription is one tracked topic filter, kept so it can be replayed
// after a reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client is the bridge's broker connection. Beyond plain publish and
// subscribe it maintains the pieces the bridge needs to look alive to the
// rest of the home automation setup: a retained status message with an LWT
// counterpart, subscription replay when paho reconnects under a clean
// session, and panic containment around handlers.
type Client struct {
	cfg  config.MQTTConfig
	paho pahomqtt.Client

	mu        sync.RWMutex
	connected bool
	subs      map[string]subscription
	onUp      func()
	onDown    func(error)
	logger    Logger
}

// Connect dials the broker and blocks until the connection is up or the
// timeout passes. Reconnection after that is paho's job, configured in
// brokerOptions.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts := brokerOptions(cfg)
	setWill(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDown(err) })

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired yet;
	// mark connected here so IsConnected is true as soon as Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// Publish sends payload to topic. State topics are published retained so a
// late subscriber immediately sees current state; commands and events are
// not.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// Subscribe registers handler for a topic filter, wildcards included. The
// subscription is tracked and replayed on reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.paho.Subscribe(topic, qos, c.guard(handler)), ErrSubscribeFailed); err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Close publishes the graceful offline status (distinct from the LWT crash
// status) and disconnects. Safe on a client that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(statusOffline(c.cfg.Broker.ClientID, reasonShutdown)).
			WaitTimeout(opTimeout)
	}
	c.paho.Disconnect(disconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the connection state as last observed.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho.IsConnected()
}

// SetOnConnect registers a callback for connection establishment, fired on
// the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onUp = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback for lost connections.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDown = callback
	c.mu.Unlock()
}

// SetLogger routes handler errors and panics somewhere visible. Without it
// they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// handleUp runs on every (re)connect: replay subscriptions, which a clean
// session reconnect wiped broker-side, and refresh the retained status.
func (c *Client) handleUp() {
	c.mu.Lock()
	c.connected = true
	subs := make([]subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	onUp := c.onUp
	c.mu.Unlock()

	for _, s := range subs {
		c.paho.Subscribe(s.topic, s.qos, c.guard(s.handler))
	}

	c.publishStatus(statusOnline(c.cfg.Broker.ClientID))

	if onUp != nil {
		onUp()
	}
}

func (c *Client) handleDown(err error) {
	c.mu.Lock()
	c.connected = false
	onDown := c.onDown
	c.mu.Unlock()

	if onDown != nil {
		onDown(err)
	}
}

// publishStatus sends a retained message to the system status topic.
func (c *Client) publishStatus(payload []byte) pahomqtt.Token {
	return c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
}

// guard wraps a handler with panic recovery. Paho shares delivery
// goroutines across subscriptions; one panicking handler must not take the
// client down.
func (c *Client) guard(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.getLogger(); l != nil {
					l.Error("mqtt handler panic", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if l := c.getLogger(); l != nil {
				l.Warn("mqtt handler error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// await blocks on a paho token, wrapping timeouts and failures in the
// given sentinel.
func await(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, opTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
