package mqtt

import "fmt"

// Topic prefixes for the Kocom bridge MQTT surface.
//
// All topics use the flat scheme: kocom/{category}/{device...}
// State topics are retained so new subscribers see the current state;
// command and event topics are not.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "kocom"

	// TopicPrefixState is the base for retained device state topics.
	TopicPrefixState = "kocom/state"

	// TopicPrefixCommand is the base for inbound command topics.
	TopicPrefixCommand = "kocom/command"

	// TopicPrefixEvent is the base for momentary event topics.
	TopicPrefixEvent = "kocom/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "kocom/system"
)

// Topics provides builders for Kocom bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.RoomState("light", 0)
//	// Returns: "kocom/state/light/0"
type Topics struct{}

// RoomState returns the retained state topic for a per-room device.
//
// Example: kocom/state/thermostat/1
func (Topics) RoomState(device string, room byte) string {
	return fmt.Sprintf("%s/%s/%d", TopicPrefixState, device, room)
}

// DeviceState returns the retained state topic for a singleton device.
//
// Example: kocom/state/gas_valve
func (Topics) DeviceState(device string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixState, device)
}

// RoomCommand returns the command topic for a per-room device.
//
// Example: kocom/command/thermostat/1
func (Topics) RoomCommand(device string, room byte) string {
	return fmt.Sprintf("%s/%s/%d", TopicPrefixCommand, device, room)
}

// ChannelCommand returns the command topic for one channel of a bank.
//
// Example: kocom/command/light/0/2
func (Topics) ChannelCommand(device string, room byte, channel int) string {
	return fmt.Sprintf("%s/%s/%d/%d", TopicPrefixCommand, device, room, channel)
}

// DeviceCommand returns the command topic for a singleton device.
//
// Example: kocom/command/elevator
func (Topics) DeviceCommand(device string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCommand, device)
}

// Event returns the event topic for a singleton device.
//
// Example: kocom/event/elevator
func (Topics) Event(device string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, device)
}

// SystemStatus returns the bridge status topic, also used for the LWT.
//
// Example: kocom/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: kocom/command/#
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/#", TopicPrefixCommand)
}

// AllStates returns a pattern matching every state topic.
//
// Pattern: kocom/state/#
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/#", TopicPrefixState)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: kocom/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
