package wallpad

import (
	"reflect"
	"sync"
)

// controller is the shared core of every device controller: the bus handle,
// the device address, the 8-byte state vector and the subscriber registry.
//
// State mutation happens on exactly two paths: a locally issued command
// (optimistic update, frame queued immediately or after a debounce) and an
// inbound frame (authoritative update from the bus). Only the latest vector
// is held; there is no history.
type controller struct {
	bus    Bus
	addr   Address
	logger Logger

	mu        sync.Mutex
	state     [8]byte
	callbacks map[uintptr]func()
}

func newController(bus Bus, addr Address, logger Logger) controller {
	if logger == nil {
		logger = nopLogger{}
	}
	return controller{
		bus:       bus,
		addr:      addr,
		logger:    logger,
		callbacks: make(map[uintptr]func()),
	}
}

// Address returns the controller's bus address.
func (c *controller) Address() Address {
	return c.addr
}

// RegisterCallback subscribes fn to state-change notifications. Registering
// the same function twice is a no-op: callbacks are deduplicated by function
// identity.
func (c *controller) RegisterCallback(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks[reflect.ValueOf(fn).Pointer()] = fn
}

// RemoveCallback unsubscribes fn. Removing a callback that was never
// registered is a no-op.
func (c *controller) RemoveCallback(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.callbacks, reflect.ValueOf(fn).Pointer())
}

// Refresh asks the device for its current state by sending a Get command.
// Local state is untouched; it updates only when the reply frame arrives.
func (c *controller) Refresh() error {
	return c.bus.Send(Encode(c.addr, CmdGet, [8]byte{}))
}

// notify invokes every registered callback. The registry is snapshotted
// under the lock and the callbacks run outside it, so a callback may
// re-enter the controller.
func (c *controller) notify() {
	c.mu.Lock()
	snapshot := make([]func(), 0, len(c.callbacks))
	for _, fn := range c.callbacks {
		snapshot = append(snapshot, fn)
	}
	c.mu.Unlock()

	for _, fn := range snapshot {
		fn()
	}
}

// setState replaces the whole vector from an inbound frame.
func (c *controller) setState(value [8]byte) {
	c.mu.Lock()
	c.state = value
	c.mu.Unlock()
}

// snapshot returns a copy of the current vector.
func (c *controller) snapshot() [8]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// sendSet transmits the current vector as a Set command.
func (c *controller) sendSet() error {
	return c.bus.Send(Encode(c.addr, CmdSet, c.snapshot()))
}

// frameHandler is implemented by every controller; the hub invokes it for
// each inbound data frame routed to the controller's address.
type frameHandler interface {
	handleFrame(f Frame)
}
