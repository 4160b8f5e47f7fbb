// Package bridge translates between the wallpad device hub and MQTT.
//
// It is the presentation edge of the Kocom bridge: every configured device
// controller is wired to a retained state topic, and the command topic tree
// is routed back to the hub's typed accessors.
//
// # Topic scheme
//
//	kocom/state/{device}[/{room}]        retained JSON state
//	kocom/command/{device}[/{room}[/{channel}]]  inbound commands
//	kocom/event/elevator                 arrival notifications (not retained)
//
// # Flow
//
//	Wallpad Bus -> Hub callbacks -> Bridge -> retained state topics
//	Command topics -> Bridge -> Hub accessors -> Wallpad Bus
//
// When a metrics backend is configured, climate and air quality readings
// are also written to InfluxDB alongside periodic bus statistics.
//
// # Usage
//
//	br, err := bridge.New(bridge.Options{
//	    Hub:  hub,
//	    Bus:  conn,
//	    MQTT: mqttAdapter{client},
//	    Site: cfg.Site.ID,
//	    QoS:  byte(cfg.MQTT.QoS),
//	})
//	if err != nil {
//	    return err
//	}
//	if err := br.Start(); err != nil {
//	    return err
//	}
//	defer br.Stop()
package bridge
