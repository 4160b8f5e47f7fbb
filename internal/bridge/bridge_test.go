package bridge_test

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/kocom-bridge/internal/bridge"
	"github.com/nerrad567/kocom-bridge/internal/wallpad"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeBus implements wallpad.Bus, recording sent frames and allowing tests
// to inject inbound frames through the hub dispatcher.
type fakeBus struct {
	mu      sync.Mutex
	sent    [][]byte
	onFrame func(wallpad.Frame)
}

func (b *fakeBus) Send(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, frame)
	return nil
}

func (b *fakeBus) SetOnFrame(callback func(wallpad.Frame)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFrame = callback
}

func (b *fakeBus) IsConnected() bool    { return true }
func (b *fakeBus) Stats() wallpad.Stats { return wallpad.Stats{Connected: true} }
func (b *fakeBus) Close() error         { return nil }

func (b *fakeBus) inject(f wallpad.Frame) {
	b.mu.Lock()
	callback := b.onFrame
	b.mu.Unlock()
	callback(f)
}

func (b *fakeBus) sentFrames() []wallpad.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	frames := make([]wallpad.Frame, 0, len(b.sent))
	for _, raw := range b.sent {
		f, err := wallpad.Decode(raw)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

// published is one recorded MQTT publish.
type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeMQTT implements bridge.MQTTClient, recording publishes and routing
// delivered messages to the subscribed handler.
type fakeMQTT struct {
	mu       sync.Mutex
	messages []published
	handlers map[string]func(topic string, payload []byte) error
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: make(map[string]func(string, []byte) error)}
}

func (m *fakeMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{topic, payload, qos, retained})
	return nil
}

func (m *fakeMQTT) Subscribe(topic string, qos byte, handler func(string, []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *fakeMQTT) IsConnected() bool { return true }

// deliver routes a message to the wildcard command handler, as the broker
// would, and returns the handler's error.
func (m *fakeMQTT) deliver(t *testing.T, topic string, payload string) error {
	t.Helper()
	m.mu.Lock()
	handler := m.handlers["kocom/command/#"]
	m.mu.Unlock()
	if handler == nil {
		t.Fatal("no command handler subscribed")
	}
	return handler(topic, []byte(payload))
}

// find returns the most recent publish on topic, if any.
func (m *fakeMQTT) find(topic string) (published, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].topic == topic {
			return m.messages[i], true
		}
	}
	return published{}, false
}

// climateWrite is one recorded WriteClimate call.
type climateWrite struct {
	device  string
	room    byte
	current byte
	target  byte
	on      bool
}

// fakeMetrics implements bridge.MetricsWriter.
type fakeMetrics struct {
	mu         sync.Mutex
	climate    []climateWrite
	airQuality int
	points     int
}

func (m *fakeMetrics) WriteAirQuality(_ string, _, _ byte, _, _ uint16, _, _ byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.airQuality++
}

func (m *fakeMetrics) WriteClimate(_, device string, room byte, current, target byte, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.climate = append(m.climate, climateWrite{device, room, current, target, on})
}

func (m *fakeMetrics) WritePoint(string, map[string]string, map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points++
}

// =============================================================================
// Fixtures
// =============================================================================

func testBridge(t *testing.T) (*bridge.Bridge, *fakeBus, *fakeMQTT, *fakeMetrics) {
	t.Helper()

	bus := &fakeBus{}
	hub := wallpad.NewHub(bus, wallpad.HubConfig{
		LightRooms:          map[byte]int{0: 3},
		OutletRooms:         map[byte]int{0: 2},
		ThermostatRooms:     []byte{1},
		AirConditionerRooms: []byte{1},
		Fan:                 true,
		GasValve:            true,
		Elevator:            true,
		AirQuality:          true,
		PollInterval:        -1,
	}, nil)
	t.Cleanup(hub.Close)

	client := newFakeMQTT()
	metrics := &fakeMetrics{}

	br, err := bridge.New(bridge.Options{
		Hub:     hub,
		Bus:     bus,
		MQTT:    client,
		Metrics: metrics,
		Site:    "test-site",
		QoS:     1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := br.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(br.Stop)

	return br, bus, client, metrics
}

// dataFrame builds an inbound state frame from a device to the wallpad.
func dataFrame(src wallpad.Address, cmd wallpad.Command, value [8]byte) wallpad.Frame {
	return wallpad.Frame{
		Type:       wallpad.FrameData,
		Dst:        wallpad.SingletonAddr(wallpad.ClassWallpad),
		Src:        src,
		Cmd:        cmd,
		Value:      value,
		ChecksumOK: true,
	}
}

// waitForFrames polls until the bus has seen at least n frames. Needed for
// switch banks, which debounce before sending.
func waitForFrames(t *testing.T, bus *fakeBus, n int) []wallpad.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frames := bus.sentFrames()
		if len(frames) >= n {
			return frames
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("bus saw %d frames, want at least %d", len(bus.sentFrames()), n)
	return nil
}

// =============================================================================
// Command routing (MQTT -> bus)
// =============================================================================

func TestCommandLightOn(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	if err := client.deliver(t, "kocom/command/light/0/1", "on"); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	frames := waitForFrames(t, bus, 1)
	f := frames[0]
	if f.Dst != wallpad.Addr(wallpad.ClassLight, 0) {
		t.Errorf("Dst = %v, want light/0", f.Dst)
	}
	if f.Cmd != wallpad.CmdSet {
		t.Errorf("Cmd = %v, want set", f.Cmd)
	}
	if f.Value[1] != 0xFF {
		t.Errorf("Value[1] = 0x%02X, want 0xFF", f.Value[1])
	}
}

func TestCommandOutletOff(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	if err := client.deliver(t, "kocom/command/outlet/0/0", "off"); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	frames := waitForFrames(t, bus, 1)
	if frames[0].Dst != wallpad.Addr(wallpad.ClassOutlet, 0) {
		t.Errorf("Dst = %v, want outlet/0", frames[0].Dst)
	}
	if frames[0].Value[0] != 0x00 {
		t.Errorf("Value[0] = 0x%02X, want 0x00", frames[0].Value[0])
	}
}

func TestCommandThermostat(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	err := client.deliver(t, "kocom/command/thermostat/1", `{"power":"on","target":24}`)
	if err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	// Power and target are applied as two Set frames.
	frames := waitForFrames(t, bus, 2)
	last := frames[len(frames)-1]
	if last.Dst != wallpad.Addr(wallpad.ClassThermostat, 1) {
		t.Errorf("Dst = %v, want thermostat/1", last.Dst)
	}
	if last.Value[0] != 0x11 {
		t.Errorf("Value[0] = 0x%02X, want 0x11 (on)", last.Value[0])
	}
	if last.Value[2] != 24 {
		t.Errorf("Value[2] = %d, want 24", last.Value[2])
	}
}

func TestCommandAirConditionerMode(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	err := client.deliver(t, "kocom/command/air_conditioner/1", `{"mode":"cool","target":22}`)
	if err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	frames := waitForFrames(t, bus, 2)
	last := frames[len(frames)-1]
	if last.Dst != wallpad.Addr(wallpad.ClassAirConditioner, 1) {
		t.Errorf("Dst = %v, want air_conditioner/1", last.Dst)
	}
	if last.Value[0] != 0x10 {
		t.Errorf("Value[0] = 0x%02X, want 0x10 (on)", last.Value[0])
	}
	if last.Value[1] != byte(wallpad.ModeCool) {
		t.Errorf("Value[1] = 0x%02X, want cool", last.Value[1])
	}
	if last.Value[5] != 22 {
		t.Errorf("Value[5] = %d, want 22", last.Value[5])
	}
}

func TestCommandFanBareNumber(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	if err := client.deliver(t, "kocom/command/fan", "2"); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	frames := waitForFrames(t, bus, 1)
	f := frames[0]
	if f.Dst != wallpad.SingletonAddr(wallpad.ClassFan) {
		t.Errorf("Dst = %v, want fan", f.Dst)
	}
	if f.Value[0] != 0x11 {
		t.Errorf("Value[0] = 0x%02X, want 0x11 (on)", f.Value[0])
	}
	if f.Value[2] != 0x80 {
		t.Errorf("Value[2] = 0x%02X, want 0x80 (step 2)", f.Value[2])
	}
}

func TestCommandFanJSON(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	if err := client.deliver(t, "kocom/command/fan", `{"step":0}`); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	frames := waitForFrames(t, bus, 1)
	if frames[0].Value[0] != 0x00 {
		t.Errorf("Value[0] = 0x%02X, want 0x00 (off)", frames[0].Value[0])
	}
}

func TestCommandGasValveLock(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	if err := client.deliver(t, "kocom/command/gas_valve", "lock"); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	frames := waitForFrames(t, bus, 1)
	if frames[0].Dst != wallpad.SingletonAddr(wallpad.ClassGasValve) {
		t.Errorf("Dst = %v, want gas_valve", frames[0].Dst)
	}
	if frames[0].Cmd != wallpad.CmdLock {
		t.Errorf("Cmd = %v, want lock", frames[0].Cmd)
	}
}

func TestCommandGasValveRejectsUnlock(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	err := client.deliver(t, "kocom/command/gas_valve", "unlock")
	if !errors.Is(err, bridge.ErrBadPayload) {
		t.Errorf("deliver error = %v, want ErrBadPayload", err)
	}
	if len(bus.sentFrames()) != 0 {
		t.Error("unlock command reached the bus")
	}
}

func TestCommandElevatorCall(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	if err := client.deliver(t, "kocom/command/elevator", "call"); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	frames := waitForFrames(t, bus, 1)
	f := frames[0]
	// Call frames carry inverted addressing: wallpad as destination.
	if f.Dst != wallpad.SingletonAddr(wallpad.ClassWallpad) {
		t.Errorf("Dst = %v, want wallpad", f.Dst)
	}
	if f.Src != wallpad.SingletonAddr(wallpad.ClassElevator) {
		t.Errorf("Src = %v, want elevator", f.Src)
	}
	if f.Cmd != wallpad.CmdElevatorCall {
		t.Errorf("Cmd = %v, want elevator call", f.Cmd)
	}
}

func TestCommandRefresh(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		dst   wallpad.Address
	}{
		{"light room", "kocom/command/light/0", wallpad.Addr(wallpad.ClassLight, 0)},
		{"thermostat", "kocom/command/thermostat/1", wallpad.Addr(wallpad.ClassThermostat, 1)},
		{"air conditioner", "kocom/command/air_conditioner/1", wallpad.Addr(wallpad.ClassAirConditioner, 1)},
		{"fan", "kocom/command/fan", wallpad.SingletonAddr(wallpad.ClassFan)},
		{"air quality", "kocom/command/air_quality", wallpad.SingletonAddr(wallpad.ClassAirQuality)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bus, client, _ := testBridge(t)

			if err := client.deliver(t, tt.topic, "refresh"); err != nil {
				t.Fatalf("deliver error = %v", err)
			}

			frames := waitForFrames(t, bus, 1)
			if frames[0].Cmd != wallpad.CmdGet {
				t.Errorf("Cmd = %v, want get", frames[0].Cmd)
			}
			if frames[0].Dst != tt.dst {
				t.Errorf("Dst = %v, want %v", frames[0].Dst, tt.dst)
			}
		})
	}
}

func TestCommandUnknownDevice(t *testing.T) {
	_, _, client, _ := testBridge(t)

	err := client.deliver(t, "kocom/command/toaster", "on")
	if !errors.Is(err, bridge.ErrUnknownDevice) {
		t.Errorf("deliver error = %v, want ErrUnknownDevice", err)
	}
}

func TestCommandUnconfiguredRoom(t *testing.T) {
	_, _, client, _ := testBridge(t)

	err := client.deliver(t, "kocom/command/light/9/0", "on")
	if !errors.Is(err, bridge.ErrUnknownDevice) {
		t.Errorf("deliver error = %v, want ErrUnknownDevice", err)
	}
}

func TestCommandBadPayload(t *testing.T) {
	_, _, client, _ := testBridge(t)

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"light gibberish", "kocom/command/light/0/0", "maybe"},
		{"thermostat broken json", "kocom/command/thermostat/1", `{"power":`},
		{"thermostat bad power", "kocom/command/thermostat/1", `{"power":"standby"}`},
		{"aircon bad mode", "kocom/command/air_conditioner/1", `{"mode":"heat"}`},
		{"fan gibberish", "kocom/command/fan", "fast"},
		{"elevator bad action", "kocom/command/elevator", "descend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.deliver(t, tt.topic, tt.payload)
			if !errors.Is(err, bridge.ErrBadPayload) {
				t.Errorf("deliver error = %v, want ErrBadPayload", err)
			}
		})
	}
}

// =============================================================================
// State publishing (bus -> MQTT)
// =============================================================================

func TestStatePublishThermostat(t *testing.T) {
	_, bus, client, metrics := testBridge(t)

	bus.inject(dataFrame(
		wallpad.Addr(wallpad.ClassThermostat, 1),
		wallpad.CmdSet,
		[8]byte{0x11, 0x00, 24, 0x00, 21},
	))

	msg, ok := client.find("kocom/state/thermostat/1")
	if !ok {
		t.Fatal("no state published")
	}
	if !msg.retained {
		t.Error("state not retained")
	}
	if msg.qos != 1 {
		t.Errorf("qos = %d, want 1", msg.qos)
	}

	var state bridge.ThermostatState
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if !state.On || state.Away {
		t.Errorf("state = on:%v away:%v, want on, not away", state.On, state.Away)
	}
	if state.Target != 24 || state.Current != 21 {
		t.Errorf("temps = %d/%d, want 24/21", state.Target, state.Current)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.climate) != 1 {
		t.Fatalf("climate writes = %d, want 1", len(metrics.climate))
	}
	w := metrics.climate[0]
	if w.device != "thermostat" || w.room != 1 || w.current != 21 || w.target != 24 || !w.on {
		t.Errorf("climate write = %+v", w)
	}
}

func TestStatePublishLight(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	bus.inject(dataFrame(
		wallpad.Addr(wallpad.ClassLight, 0),
		wallpad.CmdSet,
		[8]byte{0xFF, 0x00, 0xFF},
	))

	msg, ok := client.find("kocom/state/light/0")
	if !ok {
		t.Fatal("no state published")
	}

	var state bridge.SwitchState
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	want := []bool{true, false, true}
	if len(state.Channels) != len(want) {
		t.Fatalf("channels = %d, want %d", len(state.Channels), len(want))
	}
	for i := range want {
		if state.Channels[i] != want[i] {
			t.Errorf("channel %d = %v, want %v", i, state.Channels[i], want[i])
		}
	}
}

func TestStatePublishAirQuality(t *testing.T) {
	_, bus, client, metrics := testBridge(t)

	bus.inject(dataFrame(
		wallpad.SingletonAddr(wallpad.ClassAirQuality),
		wallpad.CmdSet,
		[8]byte{35, 12, 0x03, 0xE8, 0x01, 0x2C, 22, 45},
	))

	msg, ok := client.find("kocom/state/air_quality")
	if !ok {
		t.Fatal("no state published")
	}

	var state bridge.AirQualityState
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.CO2 != 1000 || state.VOC != 300 {
		t.Errorf("co2/voc = %d/%d, want 1000/300", state.CO2, state.VOC)
	}
	if state.PM10 != 35 || state.PM25 != 12 {
		t.Errorf("pm = %d/%d, want 35/12", state.PM10, state.PM25)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.airQuality != 1 {
		t.Errorf("air quality writes = %d, want 1", metrics.airQuality)
	}
}

func TestElevatorArrivalEvent(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	// Arrivals come back addressed to the wallpad.
	bus.inject(wallpad.Frame{
		Type:       wallpad.FrameData,
		Dst:        wallpad.SingletonAddr(wallpad.ClassElevator),
		Src:        wallpad.SingletonAddr(wallpad.ClassWallpad),
		Cmd:        wallpad.CmdSet,
		Value:      [8]byte{0x03},
		ChecksumOK: true,
	})

	msg, ok := client.find("kocom/event/elevator")
	if !ok {
		t.Fatal("no event published")
	}
	if msg.retained {
		t.Error("event should not be retained")
	}

	var event bridge.ElevatorEvent
	if err := json.Unmarshal(msg.payload, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Event != "arrived" {
		t.Errorf("event = %q, want %q", event.Event, "arrived")
	}
}

func TestStateTopicsAreRetained(t *testing.T) {
	_, bus, client, _ := testBridge(t)

	bus.inject(dataFrame(
		wallpad.SingletonAddr(wallpad.ClassFan),
		wallpad.CmdSet,
		[8]byte{0x11, 0x01, 0x40},
	))

	msg, ok := client.find("kocom/state/fan")
	if !ok {
		t.Fatal("no state published")
	}
	if !msg.retained {
		t.Error("state not retained")
	}
	if !strings.HasPrefix(msg.topic, "kocom/state/") {
		t.Errorf("topic = %q", msg.topic)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := bridge.New(bridge.Options{MQTT: newFakeMQTT()}); err == nil {
		t.Error("New() without hub should fail")
	}

	bus := &fakeBus{}
	hub := wallpad.NewHub(bus, wallpad.HubConfig{PollInterval: -1}, nil)
	defer hub.Close()

	if _, err := bridge.New(bridge.Options{Hub: hub}); err == nil {
		t.Error("New() without mqtt should fail")
	}
}
