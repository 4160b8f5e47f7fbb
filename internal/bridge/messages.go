package bridge

import "time"

// JSON message types for the MQTT surface. State messages are published
// retained so new subscribers immediately see the current state; command
// messages arrive on kocom/command/... topics and events on kocom/event/...

// SwitchState reports a light or outlet bank.
// Topic: kocom/state/light/{room} or kocom/state/outlet/{room}
type SwitchState struct {
	// Channels holds one entry per wired channel, true when on.
	Channels []bool `json:"channels"`

	// Timestamp is when the state was observed (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// ThermostatState reports one room's heating.
// Topic: kocom/state/thermostat/{room}
type ThermostatState struct {
	On        bool      `json:"on"`
	Away      bool      `json:"away"`
	Target    int       `json:"target"`
	Current   int       `json:"current"`
	Timestamp time.Time `json:"timestamp"`
}

// ThermostatCommand sets a room's heating.
// Topic: kocom/command/thermostat/{room}
//
// Fields are pointers so a command can change one aspect without touching
// the others: {"target": 24} adjusts the setpoint and leaves power alone.
type ThermostatCommand struct {
	// Power is "on", "off" or "away".
	Power *string `json:"power,omitempty"`

	// Target is the setpoint in whole degrees Celsius.
	Target *int `json:"target,omitempty"`
}

// FanState reports the ventilation fan.
// Topic: kocom/state/fan
type FanState struct {
	On        bool      `json:"on"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// FanCommand sets the ventilation fan speed. Step 0 turns the fan off.
// Topic: kocom/command/fan
// The payload may also be a bare number ("0".."3").
type FanCommand struct {
	Step *int `json:"step"`
}

// GasValveState reports the gas shutoff valve.
// Topic: kocom/state/gas_valve
type GasValveState struct {
	Locked    bool      `json:"locked"`
	Timestamp time.Time `json:"timestamp"`
}

// AirConditionerState reports one room's air conditioner.
// Topic: kocom/state/air_conditioner/{room}
type AirConditionerState struct {
	On        bool      `json:"on"`
	Mode      string    `json:"mode"`
	FanSpeed  int       `json:"fan_speed"`
	Target    int       `json:"target"`
	Current   int       `json:"current"`
	Timestamp time.Time `json:"timestamp"`
}

// AirConditionerCommand sets a room's air conditioner. As with
// ThermostatCommand, absent fields are left unchanged.
// Topic: kocom/command/air_conditioner/{room}
type AirConditionerCommand struct {
	// Power is "on" or "off".
	Power *string `json:"power,omitempty"`

	// Mode is "cool", "fan_only", "dry" or "auto". Setting a mode also
	// powers the unit on.
	Mode *string `json:"mode,omitempty"`

	// FanSpeed is 1 (low) to 3 (high).
	FanSpeed *int `json:"fan_speed,omitempty"`

	// Target is the setpoint in whole degrees Celsius.
	Target *int `json:"target,omitempty"`
}

// AirQualityState reports the air quality sensor.
// Topic: kocom/state/air_quality
type AirQualityState struct {
	PM10        int       `json:"pm10"`
	PM25        int       `json:"pm25"`
	CO2         int       `json:"co2"`
	VOC         int       `json:"voc"`
	Temperature int       `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// ElevatorEvent announces an elevator arrival at the home floor.
// Topic: kocom/event/elevator (not retained)
type ElevatorEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// elevatorArrivedEvent is the Event value for an arrival notification.
const elevatorArrivedEvent = "arrived"
