// Package mqtt provides the broker connection used by rfbridge's MQTT
// front end and retained state store.
//
// The client reconnects automatically, restores tracked subscriptions,
// and maintains a retained status document on the configured status topic
// (online on connect, offline on graceful close, offline via Last Will on
// a crash).
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	for _, filter := range topics.CommandFilters() {
//	    err = client.Subscribe(filter, client.QoS(), handle)
//	}
//	err = client.Publish(topics.State("fan/bedroom"), []byte("ON"), client.QoS(), true)
package mqtt
