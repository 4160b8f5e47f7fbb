// Package wallpad implements the Kocom wallpad bus protocol and the device
// controllers built on it.
//
// This package manages:
//   - Encoding and decoding of the fixed 21-byte bus frame
//   - The stream connection (EW11 TCP gateway or direct RS485) with
//     bounded auto-reconnect
//   - Outbound frame serialisation with mandatory inter-frame spacing
//   - Frame reassembly and routing from the inbound byte stream
//   - Per-device-class state controllers with change notification
//
// # Architecture
//
// The Hub is the composition root. It owns one controller per configured
// device and a single bus connection shared by all of them:
//
//	inbound:  stream → Conn receive loop → Decode → Hub.dispatch → controller → callbacks
//	outbound: controller command → Encode → send queue → Conn send loop → stream
//
// The bus is half-duplex and collision-prone, so the send loop enforces a
// quiescence delay after every frame, and controllers that take bursts of
// user input (the light and outlet banks) batch them into a single frame.
//
// # Usage
//
//	conn, err := wallpad.Connect(ctx, wallpad.Config{
//	    Connection: "tcp://192.168.0.10:8899",
//	    Logger:     logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	hub := wallpad.NewHub(conn, wallpad.HubConfig{
//	    LightRooms:      map[byte]int{0: 3, 1: 2},
//	    ThermostatRooms: []byte{0, 1},
//	    GasValve:        true,
//	}, logger)
//	hub.Start()
//	defer hub.Close()
//
//	hub.Light(0).TurnOn(2)
//	hub.Thermostat(1).SetTemp(22)
package wallpad
