package influxdb

import "errors"

// Sentinel errors, checkable with errors.Is.
var (
	// ErrDisabled means the influxdb config section is turned off. Callers
	// treat it as "no metrics", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed means the server did not answer the initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected means an operation ran after Close or before a
	// successful Connect.
	ErrNotConnected = errors.New("influxdb: not connected")
)
