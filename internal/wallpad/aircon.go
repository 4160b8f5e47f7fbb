package wallpad

import "fmt"

// Air conditioner state vector constants. [0] power (0x10 on, 0x00 off),
// [1] mode, [2] fan speed (1..3), [4] current temp, [5] target temp.
const (
	airconPowerOn  = 0x10
	airconPowerOff = 0x00
)

// AirConditionerMode is the operating mode byte.
type AirConditionerMode byte

const (
	ModeCool    AirConditionerMode = 0x00
	ModeFanOnly AirConditionerMode = 0x01
	ModeDry     AirConditionerMode = 0x02
	ModeAuto    AirConditionerMode = 0x03
)

// String returns the mode name for logging.
func (m AirConditionerMode) String() string {
	switch m {
	case ModeCool:
		return "cool"
	case ModeFanOnly:
		return "fan_only"
	case ModeDry:
		return "dry"
	case ModeAuto:
		return "auto"
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(m))
}

// Air conditioner fan speeds.
const (
	AirconFanLow    = 0x01
	AirconFanMedium = 0x02
	AirconFanHigh   = 0x03
)

// AirConditioner controls one room's air conditioner.
type AirConditioner struct {
	controller
}

// NewAirConditioner builds the controller for a room's air conditioner.
func NewAirConditioner(bus Bus, room byte, logger Logger) *AirConditioner {
	return &AirConditioner{controller: newController(bus, Addr(ClassAirConditioner, room), logger)}
}

// IsOn reports whether the unit is running.
func (a *AirConditioner) IsOn() bool {
	return a.snapshot()[0] == airconPowerOn
}

// Mode returns the current operating mode.
func (a *AirConditioner) Mode() AirConditionerMode {
	return AirConditionerMode(a.snapshot()[1])
}

// FanSpeed returns the current fan speed (1..3).
func (a *AirConditioner) FanSpeed() int {
	return int(a.snapshot()[2])
}

// CurrentTemp returns the measured room temperature in degrees Celsius.
func (a *AirConditioner) CurrentTemp() int {
	return int(a.snapshot()[4])
}

// TargetTemp returns the target temperature in degrees Celsius.
func (a *AirConditioner) TargetTemp() int {
	return int(a.snapshot()[5])
}

// TurnOn starts the unit in its last mode.
func (a *AirConditioner) TurnOn() error {
	a.mu.Lock()
	a.state[0] = airconPowerOn
	a.mu.Unlock()
	return a.sendSet()
}

// TurnOff stops the unit.
func (a *AirConditioner) TurnOff() error {
	a.mu.Lock()
	a.state[0] = airconPowerOff
	a.mu.Unlock()
	return a.sendSet()
}

// SetMode starts the unit in the given operating mode.
func (a *AirConditioner) SetMode(mode AirConditionerMode) error {
	a.mu.Lock()
	a.state[0] = airconPowerOn
	a.state[1] = byte(mode)
	a.mu.Unlock()
	return a.sendSet()
}

// SetFanSpeed sets the fan speed (AirconFanLow..AirconFanHigh).
func (a *AirConditioner) SetFanSpeed(speed int) error {
	if speed < AirconFanLow || speed > AirconFanHigh {
		return fmt.Errorf("%s: fan speed %d out of range [1,3]", a.addr, speed)
	}
	a.mu.Lock()
	a.state[2] = byte(speed)
	a.mu.Unlock()
	return a.sendSet()
}

// SetTemp sets the target temperature in whole degrees Celsius.
func (a *AirConditioner) SetTemp(target int) error {
	a.mu.Lock()
	a.state[5] = byte(target)
	a.mu.Unlock()
	return a.sendSet()
}

func (a *AirConditioner) handleFrame(f Frame) {
	a.setState(f.Value)
	a.logger.Debug("air conditioner updated",
		"addr", a.addr.String(),
		"on", a.IsOn(),
		"mode", a.Mode().String(),
		"target", a.TargetTemp(),
		"current", a.CurrentTemp())
	a.notify()
}
