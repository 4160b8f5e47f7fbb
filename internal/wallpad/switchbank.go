package wallpad

import (
	"fmt"
	"sync"
	"time"
)

// debounceWindow is the quiescence window for batching switch toggles.
// Rapid calls within the window coalesce into one Set frame.
const debounceWindow = 200 * time.Millisecond

// SwitchBank controls a bank of on/off channels behind a single bus address:
// the room light groups and the controllable outlets. One byte per channel
// in the state vector, 0xFF on, 0x00 off.
//
// Toggles are batched: TurnOn and TurnOff mutate the local vector
// immediately (IsOn reflects the change at once) and lazily arm a single
// debounce timer. When the timer fires, one Set frame carries the
// then-current vector. Toggles arriving while the timer is pending mutate
// the vector that timer will send; they never arm a second timer. A scene
// that flips all eight channels therefore costs one frame, not eight.
type SwitchBank struct {
	controller
	size int

	timerMu sync.Mutex
	pending *time.Timer
}

// NewLightBank builds the controller for a room's light bank. size is the
// number of wired channels (1..8).
func NewLightBank(bus Bus, room byte, size int, logger Logger) *SwitchBank {
	return newSwitchBank(bus, Addr(ClassLight, room), size, logger)
}

// NewOutletBank builds the controller for a room's outlet bank.
func NewOutletBank(bus Bus, room byte, size int, logger Logger) *SwitchBank {
	return newSwitchBank(bus, Addr(ClassOutlet, room), size, logger)
}

func newSwitchBank(bus Bus, addr Address, size int, logger Logger) *SwitchBank {
	if size < 1 {
		size = 1
	}
	if size > 8 {
		size = 8
	}
	return &SwitchBank{
		controller: newController(bus, addr, logger),
		size:       size,
	}
}

// Size returns the number of wired channels.
func (b *SwitchBank) Size() int {
	return b.size
}

// TurnOn switches channel i on.
func (b *SwitchBank) TurnOn(i int) error {
	return b.setChannel(i, 0xFF)
}

// TurnOff switches channel i off.
func (b *SwitchBank) TurnOff(i int) error {
	return b.setChannel(i, 0x00)
}

// IsOn reports channel i's state, including local toggles not yet flushed
// to the bus.
func (b *SwitchBank) IsOn(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return b.snapshot()[i] == 0xFF
}

func (b *SwitchBank) setChannel(i int, v byte) error {
	if i < 0 || i >= b.size {
		return fmt.Errorf("%s: channel %d out of range [0,%d)", b.addr, i, b.size)
	}

	b.mu.Lock()
	b.state[i] = v
	b.mu.Unlock()

	b.armFlush()
	return nil
}

// armFlush starts the debounce timer unless one is already pending.
func (b *SwitchBank) armFlush() {
	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	if b.pending != nil {
		return
	}
	b.pending = time.AfterFunc(debounceWindow, b.flush)
}

// flush sends the batched vector and clears the timer handle so the next
// toggle arms a fresh window.
func (b *SwitchBank) flush() {
	b.timerMu.Lock()
	b.pending = nil
	b.timerMu.Unlock()

	if err := b.sendSet(); err != nil {
		b.logger.Error("switch bank flush failed", "addr", b.addr.String(), "error", err)
	}
}

// handleFrame applies the authoritative vector from the bus. The pending
// timer handle is dropped without stopping the timer: a locally issued
// toggle racing the bus update still gets flushed, carrying whatever the
// vector holds when the window closes.
func (b *SwitchBank) handleFrame(f Frame) {
	b.setState(f.Value)

	b.timerMu.Lock()
	b.pending = nil
	b.timerMu.Unlock()

	b.logger.Debug("switch bank updated", "addr", b.addr.String())
	b.notify()
}
