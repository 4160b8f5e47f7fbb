package wallpad

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// elevatorArrived is the value byte an inbound frame carries when the car
// has reached the home floor.
const elevatorArrived = 0x03

// Elevator calls the building elevator to the home floor and reports its
// arrival. Singleton: one per home.
//
// The elevator is special-cased on the bus in both directions. The call
// frame carries the wallpad as destination and the elevator as source,
// inverted from every other command, so it is built with EncodeRaw. Arrival
// notifications likewise travel back addressed to the wallpad; the hub
// routes them here by that signature.
type Elevator struct {
	controller

	called atomic.Bool

	arrivalMu sync.Mutex
	arrival   map[uintptr]func()
}

// NewElevator builds the elevator controller.
func NewElevator(bus Bus, logger Logger) *Elevator {
	return &Elevator{
		controller: newController(bus, SingletonAddr(ClassElevator), logger),
		arrival:    make(map[uintptr]func()),
	}
}

// Call requests the elevator to the home floor.
func (e *Elevator) Call() error {
	frame := EncodeRaw(
		[2]byte{typeHigh, typeData},
		SingletonAddr(ClassWallpad),
		SingletonAddr(ClassElevator),
		CmdElevatorCall,
		[8]byte{},
	)
	if err := e.bus.Send(frame); err != nil {
		return err
	}
	e.called.Store(true)
	return nil
}

// Called reports whether a call is outstanding. It resets when the car
// arrives.
func (e *Elevator) Called() bool {
	return e.called.Load()
}

// RegisterArrivalHandler subscribes fn to arrival notifications. Handlers
// are deduplicated by function identity, like state callbacks.
func (e *Elevator) RegisterArrivalHandler(fn func()) {
	e.arrivalMu.Lock()
	defer e.arrivalMu.Unlock()
	e.arrival[reflect.ValueOf(fn).Pointer()] = fn
}

// RemoveArrivalHandler unsubscribes fn.
func (e *Elevator) RemoveArrivalHandler(fn func()) {
	e.arrivalMu.Lock()
	defer e.arrivalMu.Unlock()
	delete(e.arrival, reflect.ValueOf(fn).Pointer())
}

func (e *Elevator) handleFrame(f Frame) {
	e.setState(f.Value)
	e.notify()

	if f.Value[0] != elevatorArrived {
		return
	}
	e.called.Store(false)
	e.logger.Info("elevator arrived")

	e.arrivalMu.Lock()
	snapshot := make([]func(), 0, len(e.arrival))
	for _, fn := range e.arrival {
		snapshot = append(snapshot, fn)
	}
	e.arrivalMu.Unlock()

	for _, fn := range snapshot {
		fn()
	}
}
