package wallpad

// Fan state vector constants. [0] power (0x11 on, 0x00 off), [1] always
// 0x01, [2] speed step scaled by 0x40 (steps 1..3).
const (
	fanPowerOn  = 0x11
	fanPowerOff = 0x00
	fanStepUnit = 0x40

	// FanMaxStep is the highest supported speed step.
	FanMaxStep = 3
)

// Fan controls the whole-home ventilation fan. Singleton: one per home.
type Fan struct {
	controller
}

// NewFan builds the ventilation fan controller.
func NewFan(bus Bus, logger Logger) *Fan {
	f := &Fan{controller: newController(bus, SingletonAddr(ClassFan), logger)}
	// Byte 1 is constant on the wire even while the fan is off.
	f.state[1] = 0x01
	return f
}

// IsOn reports whether the fan is running.
func (f *Fan) IsOn() bool {
	return f.snapshot()[0] == fanPowerOn
}

// Step returns the current speed step, 0 when off, 1..3 when running.
func (f *Fan) Step() int {
	s := f.snapshot()
	if s[0] != fanPowerOn {
		return 0
	}
	return int(s[2]) / fanStepUnit
}

// SetStep sets the fan speed. Step 0 turns the fan off; steps 1..3 turn it
// on at the given speed.
func (f *Fan) SetStep(step int) error {
	if step < 0 {
		step = 0
	}
	if step > FanMaxStep {
		step = FanMaxStep
	}

	f.mu.Lock()
	if step == 0 {
		f.state[0] = fanPowerOff
	} else {
		f.state[0] = fanPowerOn
		f.state[2] = byte(step * fanStepUnit)
	}
	f.mu.Unlock()
	return f.sendSet()
}

func (f *Fan) handleFrame(fr Frame) {
	f.setState(fr.Value)
	f.logger.Debug("fan updated", "on", f.IsOn(), "step", f.Step())
	f.notify()
}
