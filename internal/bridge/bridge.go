package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/kocom-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/kocom-bridge/internal/wallpad"
)

// statsInterval is how often bus statistics are written to the metrics
// backend.
const statsInterval = 60 * time.Second

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// MetricsWriter receives time-series measurements. Satisfied by
// *influxdb.Client. Optional: a nil writer disables metrics.
type MetricsWriter interface {
	WriteAirQuality(site string, pm10, pm25 byte, co2, voc uint16, temperature, humidity byte)
	WriteClimate(site, device string, room byte, current, target byte, on bool)
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Hub is the wallpad device hub.
	Hub *wallpad.Hub

	// Bus is the wallpad connection, used for statistics reporting.
	Bus wallpad.Bus

	// MQTT is the broker client.
	MQTT MQTTClient

	// Metrics is the optional time-series backend.
	Metrics MetricsWriter

	// Site tags metrics with the installation identifier.
	Site string

	// QoS is the publish quality of service.
	QoS byte

	// Logger receives bridge events. Optional.
	Logger Logger
}

// Bridge translates between the wallpad hub and MQTT. Device state flows
// out on retained kocom/state/... topics whenever a controller observes a
// change; commands flow in on kocom/command/... topics and are applied
// through the hub's typed accessors.
//
// Thread Safety: All methods are safe for concurrent use. Handlers run on
// the MQTT client's delivery goroutines and controller callbacks on the bus
// receive goroutine.
type Bridge struct {
	hub     *wallpad.Hub
	bus     wallpad.Bus
	mqtt    MQTTClient
	metrics MetricsWriter
	site    string
	qos     byte
	logger  Logger

	topics mqtt.Topics

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a bridge from the given options. Call Start to register
// subscriptions and begin publishing.
func New(opts Options) (*Bridge, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("bridge: hub is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: mqtt client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &Bridge{
		hub:     opts.Hub,
		bus:     opts.Bus,
		mqtt:    opts.MQTT,
		metrics: opts.Metrics,
		site:    opts.Site,
		qos:     opts.QoS,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start registers state callbacks on every configured controller and
// subscribes to the command topic tree.
func (b *Bridge) Start() error {
	b.registerStateCallbacks()

	if err := b.mqtt.Subscribe(b.topics.AllCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("bridge: subscribe commands: %w", err)
	}

	if b.metrics != nil && b.bus != nil {
		b.wg.Add(1)
		go b.statsLoop()
	}

	b.logger.Info("bridge started", "site", b.site)
	return nil
}

// Stop halts background loops. MQTT and bus connections are owned by the
// caller and closed separately.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
	b.wg.Wait()
}

// registerStateCallbacks wires every configured controller to a retained
// state publisher.
func (b *Bridge) registerStateCallbacks() {
	for _, room := range b.hub.LightRooms() {
		room := room
		bank := b.hub.Light(room)
		bank.RegisterCallback(func() { b.publishSwitch("light", room, bank) })
	}
	for _, room := range b.hub.OutletRooms() {
		room := room
		bank := b.hub.Outlet(room)
		bank.RegisterCallback(func() { b.publishSwitch("outlet", room, bank) })
	}
	for _, room := range b.hub.ThermostatRooms() {
		room := room
		t := b.hub.Thermostat(room)
		t.RegisterCallback(func() { b.publishThermostat(room, t) })
	}
	for _, room := range b.hub.AirConditionerRooms() {
		room := room
		a := b.hub.AirConditioner(room)
		a.RegisterCallback(func() { b.publishAirConditioner(room, a) })
	}
	if fan := b.hub.Fan(); fan != nil {
		fan.RegisterCallback(func() { b.publishFan(fan) })
	}
	if gv := b.hub.GasValve(); gv != nil {
		gv.RegisterCallback(func() { b.publishGasValve(gv) })
	}
	if aq := b.hub.AirQuality(); aq != nil {
		aq.RegisterCallback(func() { b.publishAirQuality(aq) })
	}
	if ev := b.hub.Elevator(); ev != nil {
		ev.RegisterArrivalHandler(b.publishElevatorArrival)
	}
}

// =============================================================================
// State publishing (hub -> MQTT)
// =============================================================================

func (b *Bridge) publishSwitch(device string, room byte, bank *wallpad.SwitchBank) {
	channels := make([]bool, bank.Size())
	for i := range channels {
		channels[i] = bank.IsOn(i)
	}
	b.publishState(b.topics.RoomState(device, room), SwitchState{
		Channels:  channels,
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bridge) publishThermostat(room byte, t *wallpad.Thermostat) {
	b.publishState(b.topics.RoomState("thermostat", room), ThermostatState{
		On:        t.IsOn(),
		Away:      t.IsAway(),
		Target:    t.TargetTemp(),
		Current:   t.CurrentTemp(),
		Timestamp: time.Now().UTC(),
	})

	if b.metrics != nil {
		b.metrics.WriteClimate(b.site, "thermostat", room,
			byte(t.CurrentTemp()), byte(t.TargetTemp()), t.IsOn())
	}
}

func (b *Bridge) publishAirConditioner(room byte, a *wallpad.AirConditioner) {
	b.publishState(b.topics.RoomState("air_conditioner", room), AirConditionerState{
		On:        a.IsOn(),
		Mode:      a.Mode().String(),
		FanSpeed:  a.FanSpeed(),
		Target:    a.TargetTemp(),
		Current:   a.CurrentTemp(),
		Timestamp: time.Now().UTC(),
	})

	if b.metrics != nil {
		b.metrics.WriteClimate(b.site, "air_conditioner", room,
			byte(a.CurrentTemp()), byte(a.TargetTemp()), a.IsOn())
	}
}

func (b *Bridge) publishFan(f *wallpad.Fan) {
	b.publishState(b.topics.DeviceState("fan"), FanState{
		On:        f.IsOn(),
		Step:      f.Step(),
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bridge) publishGasValve(g *wallpad.GasValve) {
	b.publishState(b.topics.DeviceState("gas_valve"), GasValveState{
		Locked:    g.IsLocked(),
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bridge) publishAirQuality(a *wallpad.AirQuality) {
	b.publishState(b.topics.DeviceState("air_quality"), AirQualityState{
		PM10:        a.PM10(),
		PM25:        a.PM25(),
		CO2:         a.CO2(),
		VOC:         a.VOC(),
		Temperature: a.Temperature(),
		Humidity:    a.Humidity(),
		Timestamp:   time.Now().UTC(),
	})

	if b.metrics != nil {
		// #nosec G115 -- sensor values fit their wire-format widths
		b.metrics.WriteAirQuality(b.site,
			byte(a.PM10()), byte(a.PM25()),
			uint16(a.CO2()), uint16(a.VOC()),
			byte(a.Temperature()), byte(a.Humidity()))
	}
}

func (b *Bridge) publishElevatorArrival() {
	payload, err := json.Marshal(ElevatorEvent{
		Event:     elevatorArrivedEvent,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := b.mqtt.Publish(b.topics.Event("elevator"), payload, b.qos, false); err != nil {
		b.logger.Error("publish elevator event failed", "error", err)
	}
}

// publishState marshals and publishes a retained state message.
func (b *Bridge) publishState(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshal state failed", "topic", topic, "error", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, true); err != nil {
		b.logger.Error("publish state failed", "topic", topic, "error", err)
	}
}

// =============================================================================
// Command handling (MQTT -> hub)
// =============================================================================

// handleCommand routes one inbound command message. The returned error is
// logged by the MQTT client wrapper; it does not affect acknowledgment.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	rest := strings.TrimPrefix(topic, mqtt.TopicPrefixCommand+"/")
	if rest == topic || rest == "" {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	parts := strings.Split(rest, "/")

	b.logger.Debug("command received", "topic", topic, "payload", string(payload))

	switch parts[0] {
	case "light", "outlet":
		return b.handleSwitchCommand(parts, payload)
	case "thermostat":
		return b.handleThermostatCommand(parts, payload)
	case "air_conditioner":
		return b.handleAirConditionerCommand(parts, payload)
	case "fan":
		return b.handleFanCommand(parts, payload)
	case "gas_valve":
		return b.handleGasValveCommand(parts, payload)
	case "elevator":
		return b.handleElevatorCommand(parts, payload)
	case "air_quality":
		return b.handleAirQualityCommand(parts, payload)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownDevice, parts[0])
	}
}

// handleSwitchCommand handles kocom/command/{light,outlet}/{room}/{channel}
// with an on/off payload, or {light,outlet}/{room} with a "refresh" payload.
func (b *Bridge) handleSwitchCommand(parts []string, payload []byte) error {
	if len(parts) != 2 && len(parts) != 3 {
		return fmt.Errorf("%w: want %s/{room}/{channel}", ErrUnknownTopic, parts[0])
	}
	room, err := parseRoom(parts[1])
	if err != nil {
		return err
	}

	var bank *wallpad.SwitchBank
	if parts[0] == "light" {
		bank = b.hub.Light(room)
	} else {
		bank = b.hub.Outlet(room)
	}
	if bank == nil {
		return fmt.Errorf("%w: %s room %d", ErrUnknownDevice, parts[0], room)
	}

	if len(parts) == 2 {
		if !isRefresh(payload) {
			return fmt.Errorf("%w: want %s/{room}/{channel} or a refresh", ErrBadPayload, parts[0])
		}
		return bank.Refresh()
	}

	channel, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("%w: channel %q", ErrBadPayload, parts[2])
	}

	on, err := parseOnOff(payload)
	if err != nil {
		return err
	}
	if on {
		return bank.TurnOn(channel)
	}
	return bank.TurnOff(channel)
}

// handleThermostatCommand handles kocom/command/thermostat/{room} with a
// ThermostatCommand JSON payload.
func (b *Bridge) handleThermostatCommand(parts []string, payload []byte) error {
	if len(parts) != 2 {
		return fmt.Errorf("%w: want thermostat/{room}", ErrUnknownTopic)
	}
	room, err := parseRoom(parts[1])
	if err != nil {
		return err
	}
	t := b.hub.Thermostat(room)
	if t == nil {
		return fmt.Errorf("%w: thermostat room %d", ErrUnknownDevice, room)
	}

	if isRefresh(payload) {
		return t.Refresh()
	}

	var cmd ThermostatCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	if cmd.Power != nil {
		switch strings.ToLower(*cmd.Power) {
		case "on":
			err = t.On()
		case "off":
			err = t.Off()
		case "away":
			err = t.Away()
		default:
			return fmt.Errorf("%w: power %q", ErrBadPayload, *cmd.Power)
		}
		if err != nil {
			return err
		}
	}
	if cmd.Target != nil {
		return t.SetTemp(*cmd.Target)
	}
	return nil
}

// handleAirConditionerCommand handles kocom/command/air_conditioner/{room}
// with an AirConditionerCommand JSON payload.
func (b *Bridge) handleAirConditionerCommand(parts []string, payload []byte) error {
	if len(parts) != 2 {
		return fmt.Errorf("%w: want air_conditioner/{room}", ErrUnknownTopic)
	}
	room, err := parseRoom(parts[1])
	if err != nil {
		return err
	}
	a := b.hub.AirConditioner(room)
	if a == nil {
		return fmt.Errorf("%w: air_conditioner room %d", ErrUnknownDevice, room)
	}

	if isRefresh(payload) {
		return a.Refresh()
	}

	var cmd AirConditionerCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	if cmd.Power != nil {
		switch strings.ToLower(*cmd.Power) {
		case "on":
			err = a.TurnOn()
		case "off":
			err = a.TurnOff()
		default:
			return fmt.Errorf("%w: power %q", ErrBadPayload, *cmd.Power)
		}
		if err != nil {
			return err
		}
	}
	if cmd.Mode != nil {
		mode, err := parseAirconMode(*cmd.Mode)
		if err != nil {
			return err
		}
		if err := a.SetMode(mode); err != nil {
			return err
		}
	}
	if cmd.FanSpeed != nil {
		if err := a.SetFanSpeed(*cmd.FanSpeed); err != nil {
			return err
		}
	}
	if cmd.Target != nil {
		return a.SetTemp(*cmd.Target)
	}
	return nil
}

// handleFanCommand handles kocom/command/fan. The payload is either a bare
// step number or a FanCommand JSON object.
func (b *Bridge) handleFanCommand(parts []string, payload []byte) error {
	if len(parts) != 1 {
		return fmt.Errorf("%w: want fan", ErrUnknownTopic)
	}
	fan := b.hub.Fan()
	if fan == nil {
		return fmt.Errorf("%w: fan", ErrUnknownDevice)
	}

	if isRefresh(payload) {
		return fan.Refresh()
	}

	text := strings.TrimSpace(string(payload))
	if step, err := strconv.Atoi(text); err == nil {
		return fan.SetStep(step)
	}

	var cmd FanCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Step == nil {
		return fmt.Errorf("%w: fan payload %q", ErrBadPayload, text)
	}
	return fan.SetStep(*cmd.Step)
}

// handleGasValveCommand handles kocom/command/gas_valve. Only "lock" is
// accepted; the valve cannot be opened remotely.
func (b *Bridge) handleGasValveCommand(parts []string, payload []byte) error {
	if len(parts) != 1 {
		return fmt.Errorf("%w: want gas_valve", ErrUnknownTopic)
	}
	gv := b.hub.GasValve()
	if gv == nil {
		return fmt.Errorf("%w: gas_valve", ErrUnknownDevice)
	}

	if !strings.EqualFold(strings.TrimSpace(string(payload)), "lock") {
		return fmt.Errorf("%w: gas valve accepts only %q", ErrBadPayload, "lock")
	}
	return gv.Lock()
}

// handleElevatorCommand handles kocom/command/elevator with a "call"
// payload.
func (b *Bridge) handleElevatorCommand(parts []string, payload []byte) error {
	if len(parts) != 1 {
		return fmt.Errorf("%w: want elevator", ErrUnknownTopic)
	}
	ev := b.hub.Elevator()
	if ev == nil {
		return fmt.Errorf("%w: elevator", ErrUnknownDevice)
	}

	if !strings.EqualFold(strings.TrimSpace(string(payload)), "call") {
		return fmt.Errorf("%w: elevator accepts only %q", ErrBadPayload, "call")
	}
	return ev.Call()
}

// handleAirQualityCommand handles kocom/command/air_quality. The sensor is
// read-only; the only accepted command is a refresh.
func (b *Bridge) handleAirQualityCommand(parts []string, payload []byte) error {
	if len(parts) != 1 {
		return fmt.Errorf("%w: want air_quality", ErrUnknownTopic)
	}
	aq := b.hub.AirQuality()
	if aq == nil {
		return fmt.Errorf("%w: air_quality", ErrUnknownDevice)
	}

	if !isRefresh(payload) {
		return fmt.Errorf("%w: air quality accepts only %q", ErrBadPayload, "refresh")
	}
	return aq.Refresh()
}

// =============================================================================
// Metrics
// =============================================================================

// statsLoop periodically writes bus statistics to the metrics backend.
func (b *Bridge) statsLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			stats := b.bus.Stats()
			b.metrics.WritePoint("bus_stats",
				map[string]string{"site": b.site},
				map[string]interface{}{
					"frames_tx":        stats.FramesTx,
					"frames_rx":        stats.FramesRx,
					"decode_errors":    stats.DecodeErrors,
					"checksum_errors":  stats.ChecksumErrors,
					"reconnects_total": stats.ReconnectsTotal,
					"pending_sends":    stats.PendingSends,
					"connected":        stats.Connected,
				})
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func parseRoom(s string) (byte, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: room %q", ErrBadPayload, s)
	}
	return byte(n), nil
}

// isRefresh reports whether a payload asks for a state refresh.
func isRefresh(payload []byte) bool {
	return strings.EqualFold(strings.TrimSpace(string(payload)), "refresh")
}

// parseOnOff interprets an on/off command payload.
func parseOnOff(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: on/off payload %q", ErrBadPayload, payload)
}

func parseAirconMode(s string) (wallpad.AirConditionerMode, error) {
	switch strings.ToLower(s) {
	case "cool":
		return wallpad.ModeCool, nil
	case "fan_only":
		return wallpad.ModeFanOnly, nil
	case "dry":
		return wallpad.ModeDry, nil
	case "auto":
		return wallpad.ModeAuto, nil
	}
	return 0, fmt.Errorf("%w: mode %q", ErrBadPayload, s)
}

// nopLogger discards all log output.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
