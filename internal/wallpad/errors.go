package wallpad

import "errors"

// Frame decode errors. All are structural rejections: a frame failing any of
// these checks is never delivered to a controller.
var (
	// ErrBadLength is returned when the byte slice is not exactly 21 bytes.
	ErrBadLength = errors.New("wallpad: bad frame length")

	// ErrBadHeader is returned when bytes 0-1 are not AA 55.
	ErrBadHeader = errors.New("wallpad: bad frame header")

	// ErrBadFooter is returned when bytes 19-20 are not 0D 0D.
	ErrBadFooter = errors.New("wallpad: bad frame footer")

	// ErrUnknownType is returned when the type byte falls outside the
	// data/ack bands observed on the bus.
	ErrUnknownType = errors.New("wallpad: unknown frame type")

	// ErrUnknownDeviceClass is returned when the destination or source
	// device class byte is not a known code.
	ErrUnknownDeviceClass = errors.New("wallpad: unknown device class")

	// ErrUnknownCommand is returned when the command byte is not a known code.
	ErrUnknownCommand = errors.New("wallpad: unknown command")
)

// Transport and lifecycle errors.
var (
	// ErrNotConnected is returned when an operation requires an open
	// connection to the gateway.
	ErrNotConnected = errors.New("wallpad: not connected")

	// ErrConnectionFailed is returned when the initial connection to the
	// gateway cannot be established. There is no retry context at that
	// point, so it is fatal to startup.
	ErrConnectionFailed = errors.New("wallpad: connection failed")

	// ErrReconnectExhausted is reported after the maximum number of
	// consecutive automatic reconnection attempts has failed. Automatic
	// reconnection stops; operator intervention is required.
	ErrReconnectExhausted = errors.New("wallpad: reconnect attempts exhausted")

	// ErrInvalidTransport is returned for a connection URL the bridge
	// cannot parse.
	ErrInvalidTransport = errors.New("wallpad: invalid transport url")
)
