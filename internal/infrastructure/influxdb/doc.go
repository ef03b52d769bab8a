// Package influxdb writes rfbridge time-series data to InfluxDB v2.
//
// Three measurements are produced:
//   - rf_state_change: one point per device state change (tags path, class, source)
//   - rf_eavesdrop: recognizer counters (polls, windows, presses, ...)
//   - rf_radio: arbiter counters (transmissions, timeouts, resets, ...)
//
// InfluxDB is optional. Connect returns ErrDisabled when it is switched
// off, and callers treat that as "no metrics".
package influxdb
