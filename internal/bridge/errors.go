package bridge

import "errors"

// Sentinel errors for command handling. Check with errors.Is().
var (
	// ErrUnknownTopic indicates a command arrived on an unroutable topic.
	ErrUnknownTopic = errors.New("bridge: unknown command topic")

	// ErrUnknownDevice indicates a command addressed a device that is not
	// configured in this installation.
	ErrUnknownDevice = errors.New("bridge: device not configured")

	// ErrBadPayload indicates a command payload could not be parsed or
	// carried an unsupported value.
	ErrBadPayload = errors.New("bridge: invalid command payload")
)
