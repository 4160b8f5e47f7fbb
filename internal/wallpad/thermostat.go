package wallpad

// Thermostat state vector offsets.
const (
	thermoPowerOn  = 0x11
	thermoPowerOff = 0x01
	thermoAwayOn   = 0x01
)

// Thermostat controls one room's heating. Vector layout: [0] power
// (0x11 on, 0x01 off), [1] away flag (0x01), [2] target temperature,
// [4] current temperature, all in whole degrees Celsius.
type Thermostat struct {
	controller
}

// NewThermostat builds the controller for a room's thermostat.
func NewThermostat(bus Bus, room byte, logger Logger) *Thermostat {
	return &Thermostat{controller: newController(bus, Addr(ClassThermostat, room), logger)}
}

// IsOn reports whether heating is enabled.
func (t *Thermostat) IsOn() bool {
	return t.snapshot()[0] == thermoPowerOn
}

// IsAway reports whether away mode is active.
func (t *Thermostat) IsAway() bool {
	return t.snapshot()[1] == thermoAwayOn
}

// TargetTemp returns the target temperature in degrees Celsius.
func (t *Thermostat) TargetTemp() int {
	return int(t.snapshot()[2])
}

// CurrentTemp returns the measured room temperature in degrees Celsius.
func (t *Thermostat) CurrentTemp() int {
	return int(t.snapshot()[4])
}

// On enables heating and clears away mode.
func (t *Thermostat) On() error {
	t.mu.Lock()
	t.state[0] = thermoPowerOn
	t.state[1] = 0x00
	t.mu.Unlock()
	return t.sendSet()
}

// Off disables heating and clears away mode.
func (t *Thermostat) Off() error {
	t.mu.Lock()
	t.state[0] = thermoPowerOff
	t.state[1] = 0x00
	t.mu.Unlock()
	return t.sendSet()
}

// Away enables heating in away mode (reduced setback operation handled by
// the thermostat itself).
func (t *Thermostat) Away() error {
	t.mu.Lock()
	t.state[0] = thermoPowerOn
	t.state[1] = thermoAwayOn
	t.mu.Unlock()
	return t.sendSet()
}

// SetTemp sets the target temperature in whole degrees Celsius.
func (t *Thermostat) SetTemp(target int) error {
	t.mu.Lock()
	t.state[2] = byte(target)
	t.mu.Unlock()
	return t.sendSet()
}

func (t *Thermostat) handleFrame(f Frame) {
	t.setState(f.Value)
	t.logger.Debug("thermostat updated",
		"addr", t.addr.String(),
		"on", t.IsOn(),
		"away", t.IsAway(),
		"target", t.TargetTemp(),
		"current", t.CurrentTemp())
	t.notify()
}
