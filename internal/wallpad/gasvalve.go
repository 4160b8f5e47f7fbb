package wallpad

import "sync/atomic"

// GasValve controls the gas shutoff valve. Singleton: one per home.
//
// The valve is command-driven: its state is not carried in value bytes but
// derived from the Lock/Unlock command codes seen on the bus. Only Lock can
// be issued from here; opening the valve requires a physical press on the
// wallpad, a deliberate safety property of the installation that this
// controller preserves by not exposing an unlock method.
type GasValve struct {
	controller
	locked atomic.Bool
}

// NewGasValve builds the gas valve controller.
func NewGasValve(bus Bus, logger Logger) *GasValve {
	return &GasValve{controller: newController(bus, SingletonAddr(ClassGasValve), logger)}
}

// IsLocked reports whether the valve is shut.
func (g *GasValve) IsLocked() bool {
	return g.locked.Load()
}

// Lock shuts the valve. The local state flips only when the bus confirms
// with a Lock frame.
func (g *GasValve) Lock() error {
	return g.bus.Send(Encode(g.addr, CmdLock, [8]byte{}))
}

func (g *GasValve) handleFrame(f Frame) {
	switch f.Cmd {
	case CmdLock:
		g.locked.Store(true)
	case CmdUnlock:
		g.locked.Store(false)
	default:
		return
	}
	g.logger.Info("gas valve state", "locked", g.locked.Load())
	g.notify()
}
