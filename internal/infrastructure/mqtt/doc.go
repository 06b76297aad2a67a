// Package mqtt provides MQTT client connectivity for netwatch-core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is the outward surface of netwatch-core. Device status is published
// as retained messages, status transitions as events, and operators trigger
// import, sync, poll and uptime through command topics:
//
//	netwatch-core ──status/events──► Broker ◄──commands── dashboards, scripts
//
// See Topics for the full hierarchy.
//
// # Security Considerations
//
//   - TLS should be enabled outside a trusted LAN (cfg.Broker.TLS=true)
//   - Command topics should be restricted by broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        action, _ := mqtt.CommandAction(topic)
//	        return handle(action, payload)
//	    })
//
//	client.PublishJSON(mqtt.Topics{}.DeviceStatus("10.0.0.2"), status, true)
package mqtt
