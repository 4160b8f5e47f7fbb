package wallpad

import (
	"sync"
	"time"
)

// defaultPollInterval is how often thermostats and air conditioners are
// polled. They do not volunteer state after a target change, so periodic
// Get commands keep the bridge view current.
const defaultPollInterval = 60 * time.Second

// HubConfig describes which devices are wired in this installation. The hub
// is purely a function of it: controllers are built once at construction and
// live until Close.
type HubConfig struct {
	// LightRooms maps room index to the number of light channels in that
	// room's bank.
	LightRooms map[byte]int

	// OutletRooms maps room index to the number of outlet channels.
	OutletRooms map[byte]int

	// ThermostatRooms lists rooms with a thermostat.
	ThermostatRooms []byte

	// AirConditionerRooms lists rooms with an air conditioner.
	AirConditionerRooms []byte

	// Singleton device flags.
	Fan        bool
	GasValve   bool
	Elevator   bool
	AirQuality bool

	// PollInterval is the thermostat/air-conditioner polling period.
	// Zero means the 60s default; negative disables polling.
	PollInterval time.Duration
}

// Hub owns every device controller and routes inbound frames to them. It is
// the composition root of the bridge: the presentation layer holds a Hub
// and talks to devices through the typed accessors.
type Hub struct {
	bus    Bus
	cfg    HubConfig
	logger Logger

	// controllers is the routing table, keyed by normalised source address.
	controllers map[Address]frameHandler

	lights          map[byte]*SwitchBank
	outlets         map[byte]*SwitchBank
	thermostats     map[byte]*Thermostat
	airConditioners map[byte]*AirConditioner
	fan             *Fan
	gasValve        *GasValve
	elevator        *Elevator
	airQuality      *AirQuality

	done *closeOnce
	wg   sync.WaitGroup
}

// NewHub builds all configured controllers and registers the frame
// dispatcher on the bus. Call Start to begin polling and issue the initial
// state refresh.
func NewHub(bus Bus, cfg HubConfig, logger Logger) *Hub {
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}

	h := &Hub{
		bus:             bus,
		cfg:             cfg,
		logger:          logger,
		controllers:     make(map[Address]frameHandler),
		lights:          make(map[byte]*SwitchBank),
		outlets:         make(map[byte]*SwitchBank),
		thermostats:     make(map[byte]*Thermostat),
		airConditioners: make(map[byte]*AirConditioner),
		done:            newCloseOnce(),
	}

	for room, size := range cfg.LightRooms {
		bank := NewLightBank(bus, room, size, logger)
		h.lights[room] = bank
		h.controllers[bank.Address()] = bank
	}
	for room, size := range cfg.OutletRooms {
		bank := NewOutletBank(bus, room, size, logger)
		h.outlets[room] = bank
		h.controllers[bank.Address()] = bank
	}
	for _, room := range cfg.ThermostatRooms {
		t := NewThermostat(bus, room, logger)
		h.thermostats[room] = t
		h.controllers[t.Address()] = t
	}
	for _, room := range cfg.AirConditionerRooms {
		a := NewAirConditioner(bus, room, logger)
		h.airConditioners[room] = a
		h.controllers[a.Address()] = a
	}
	if cfg.Fan {
		h.fan = NewFan(bus, logger)
		h.controllers[h.fan.Address()] = h.fan
	}
	if cfg.GasValve {
		h.gasValve = NewGasValve(bus, logger)
		h.controllers[h.gasValve.Address()] = h.gasValve
	}
	if cfg.Elevator {
		h.elevator = NewElevator(bus, logger)
	}
	if cfg.AirQuality {
		h.airQuality = NewAirQuality(bus, logger)
		h.controllers[h.airQuality.Address()] = h.airQuality
	}

	bus.SetOnFrame(h.dispatch)
	return h
}

// Start issues the initial state refresh and launches the poll loop.
func (h *Hub) Start() {
	h.refreshAll()

	if h.cfg.PollInterval > 0 {
		h.wg.Add(1)
		go h.pollLoop()
	}
}

// Close stops the poll loop. The bus connection is owned by the caller and
// closed separately.
func (h *Hub) Close() {
	h.done.Close()
	h.wg.Wait()
}

// Typed controller accessors. Each returns nil when the device is not
// configured.

func (h *Hub) Light(room byte) *SwitchBank { return h.lights[room] }

func (h *Hub) Outlet(room byte) *SwitchBank { return h.outlets[room] }

func (h *Hub) Thermostat(room byte) *Thermostat { return h.thermostats[room] }

func (h *Hub) AirConditioner(room byte) *AirConditioner {
	return h.airConditioners[room]
}

func (h *Hub) Fan() *Fan { return h.fan }

func (h *Hub) GasValve() *GasValve { return h.gasValve }

func (h *Hub) Elevator() *Elevator { return h.elevator }

func (h *Hub) AirQuality() *AirQuality { return h.airQuality }

// LightRooms returns the configured light room indexes.
func (h *Hub) LightRooms() []byte {
	rooms := make([]byte, 0, len(h.lights))
	for room := range h.lights {
		rooms = append(rooms, room)
	}
	return rooms
}

// OutletRooms returns the configured outlet room indexes.
func (h *Hub) OutletRooms() []byte {
	rooms := make([]byte, 0, len(h.outlets))
	for room := range h.outlets {
		rooms = append(rooms, room)
	}
	return rooms
}

// ThermostatRooms returns the configured thermostat room indexes.
func (h *Hub) ThermostatRooms() []byte {
	rooms := make([]byte, 0, len(h.thermostats))
	for room := range h.thermostats {
		rooms = append(rooms, room)
	}
	return rooms
}

// AirConditionerRooms returns the configured air conditioner room indexes.
func (h *Hub) AirConditionerRooms() []byte {
	rooms := make([]byte, 0, len(h.airConditioners))
	for room := range h.airConditioners {
		rooms = append(rooms, room)
	}
	return rooms
}

// dispatch routes one decoded frame to its controller. It runs on the bus
// receive goroutine: one frame is fully handled, including subscriber
// notification, before the next is decoded.
func (h *Hub) dispatch(f Frame) {
	// Acks confirm receipt but carry no state.
	if f.Type != FrameData {
		return
	}

	// Elevator arrivals come back addressed to the wallpad itself instead
	// of a device-keyed source address.
	if f.Src.Class == ClassWallpad && f.Dst.Class == ClassElevator {
		if h.elevator == nil {
			h.logger.Warn("elevator frame but elevator not configured")
			return
		}
		h.elevator.handleFrame(f)
		return
	}

	ctrl, ok := h.controllers[f.Src.Key()]
	if !ok {
		h.logger.Debug("frame for unconfigured device",
			"src", f.Src.String(), "cmd", f.Cmd.String())
		return
	}
	ctrl.handleFrame(f)
}

// refreshAll asks every pollable controller for its current state. Gas
// valve and elevator are excluded: the valve reports only on command frames
// and the elevator only signals arrivals.
func (h *Hub) refreshAll() {
	for _, bank := range h.lights {
		h.refresh(bank.Refresh)
	}
	for _, bank := range h.outlets {
		h.refresh(bank.Refresh)
	}
	for _, t := range h.thermostats {
		h.refresh(t.Refresh)
	}
	for _, a := range h.airConditioners {
		h.refresh(a.Refresh)
	}
	if h.fan != nil {
		h.refresh(h.fan.Refresh)
	}
	if h.airQuality != nil {
		h.refresh(h.airQuality.Refresh)
	}
}

func (h *Hub) refresh(fn func() error) {
	if err := fn(); err != nil {
		h.logger.Warn("refresh failed", "error", err)
	}
}

// pollLoop periodically refreshes thermostats and air conditioners. Target
// changes made at the device produce no frames, so polling is the only way
// to observe them.
func (h *Hub) pollLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done.Done():
			return
		case <-ticker.C:
			for _, t := range h.thermostats {
				h.refresh(t.Refresh)
			}
			for _, a := range h.airConditioners {
				h.refresh(a.Refresh)
			}
		}
	}
}
