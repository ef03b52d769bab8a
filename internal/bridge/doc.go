// Package bridge exposes the device registry over MQTT.
//
// Commands arrive on <command_prefix>/<class>/<name>[/<subdevice>] with the
// requested state as payload. When Home Assistant discovery is enabled the
// bridge also announces every device under the discovery prefix, mirrors
// state changes to the advertised state topics and accepts commands on the
// advertised /set topics. A HealthReporter publishes a retained health
// document alongside the client's online/offline status.
package bridge
