// Package mqtt is the bridge's broker connection: a thin wrapper around
// paho.mqtt.golang plus the topic scheme.
//
// Device state flows out on retained kocom/state/... topics and commands
// flow in on kocom/command/... topics, so any MQTT-speaking home automation
// platform can drive the wallpad without knowing the bus protocol:
//
//	Wallpad Bus <-> Kocom Bridge <-> MQTT Broker <-> Automation Platform
//
// The wrapper adds what the bridge needs on top of paho: a retained status
// message on kocom/system/status with an LWT counterpart for crash
// detection, subscription replay after clean-session reconnects, and panic
// containment around message handlers.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return route(topic, payload)
//	    })
package mqtt
