// Package state persists canonical device states.
//
// Every backend implements device.Store, keyed by device path
// ("fan/bedroom", "fan/bedroom/speed"):
//
//   - FileStore: one file per path in a directory
//   - SQLiteStore: the device_states table
//   - MQTTStore: retained messages under the state prefix, read back from a
//     local cache fed by a subscription
//
// Chain fans writes out to several backends and reads from the first one
// that knows the path. HistoryRecorder consumes device events and appends
// them to state_history and, optionally, InfluxDB.
package state
