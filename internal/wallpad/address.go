package wallpad

import "fmt"

// DeviceClass identifies a category of device on the Kocom bus.
type DeviceClass byte

// Device class codes as they appear in frame destination/source fields.
const (
	// ClassWallpad is the bridge's own identity on the bus. Outgoing frames
	// carry it as source; elevator arrival frames carry it as source too.
	ClassWallpad DeviceClass = 0x01

	ClassLight          DeviceClass = 0x0E
	ClassThermostat     DeviceClass = 0x36
	ClassGasValve       DeviceClass = 0x2C
	ClassFan            DeviceClass = 0x48
	ClassElevator       DeviceClass = 0x44
	ClassOutlet         DeviceClass = 0x3B
	ClassAirConditioner DeviceClass = 0x39
	ClassAirQuality     DeviceClass = 0x98
)

// Valid reports whether the byte is a known device class code.
func (c DeviceClass) Valid() bool {
	switch c {
	case ClassWallpad, ClassLight, ClassThermostat, ClassGasValve,
		ClassFan, ClassElevator, ClassOutlet, ClassAirConditioner,
		ClassAirQuality:
		return true
	}
	return false
}

// Singleton reports whether the class has exactly one instance per home,
// addressed without a meaningful room index.
func (c DeviceClass) Singleton() bool {
	switch c {
	case ClassFan, ClassGasValve, ClassElevator, ClassAirQuality:
		return true
	}
	return false
}

// String returns a lowercase name for logging and topic construction.
func (c DeviceClass) String() string {
	switch c {
	case ClassWallpad:
		return "wallpad"
	case ClassLight:
		return "light"
	case ClassThermostat:
		return "thermostat"
	case ClassGasValve:
		return "gas_valve"
	case ClassFan:
		return "fan"
	case ClassElevator:
		return "elevator"
	case ClassOutlet:
		return "outlet"
	case ClassAirConditioner:
		return "air_conditioner"
	case ClassAirQuality:
		return "air_quality"
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(c))
}

// Command is the frame command byte.
type Command byte

// Command codes. CmdUnlock and CmdElevatorCall share a value; which one is
// meant depends on the destination device class.
const (
	CmdSet          Command = 0x00
	CmdUnlock       Command = 0x01 // gas valve only
	CmdElevatorCall Command = 0x01
	CmdLock         Command = 0x02 // gas valve only
	CmdGet          Command = 0x3A
)

// Valid reports whether the byte is a known command code.
func (c Command) Valid() bool {
	switch c {
	case CmdSet, CmdUnlock, CmdLock, CmdGet:
		return true
	}
	return false
}

// String returns a name for logging. The 0x01 code is reported as "unlock";
// callers that know the destination is the elevator should not rely on it.
func (c Command) String() string {
	switch c {
	case CmdSet:
		return "set"
	case CmdUnlock:
		return "unlock"
	case CmdLock:
		return "lock"
	case CmdGet:
		return "get"
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(c))
}

// Address is a (device class, room index) pair. It appears twice in every
// frame, as destination and as source, and doubles as the controller routing
// key. Singleton devices always use Room 0.
type Address struct {
	Class DeviceClass
	Room  byte
}

// Addr builds an address for a per-room device.
func Addr(class DeviceClass, room byte) Address {
	return Address{Class: class, Room: room}
}

// SingletonAddr builds an address for a singleton device (room 0).
func SingletonAddr(class DeviceClass) Address {
	return Address{Class: class}
}

// Key normalises the address into a controller lookup key: singleton classes
// collapse to room 0 regardless of the room byte seen on the wire.
func (a Address) Key() Address {
	if a.Class.Singleton() {
		return Address{Class: a.Class}
	}
	return a
}

// String renders "light/3" for per-room devices and "fan" for singletons.
func (a Address) String() string {
	if a.Class.Singleton() {
		return a.Class.String()
	}
	return fmt.Sprintf("%s/%d", a.Class, a.Room)
}
