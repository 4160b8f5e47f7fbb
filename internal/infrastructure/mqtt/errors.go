package mqtt

import "errors"

// Sentinel errors, checkable with errors.Is.
var (
	// ErrNotConnected is returned for operations attempted without a broker
	// connection.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed is returned when the initial connection does not
	// come up within the timeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed   = errors.New("mqtt: publish failed")
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1, or 2")
)
