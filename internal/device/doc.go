// Package device is the logical device model for rfbridge.
//
// A Device is one controllable fixture (a fan or a light) identified by a
// class and a name, e.g. "fan/bedroom". It owns an ordered list of state
// handlers: either its own state, or named subdevices such as "power",
// "speed" and "command" for a three-speed fan. Every handler has
// canonical states, an alias table and a strategy that transmits the
// command and persists the resulting states.
//
// # Paths
//
// Persisted state is keyed by path:
//
//	fan/bedroom          parent state (mirrors power)
//	fan/bedroom/power    ON | OFF
//	fan/bedroom/speed    1 | 2 | 3
//	fan/bedroom/command  0 | 1 | 2 | 3 (the last speed sent over the air)
//	light/porch/color    RED | GREEN | BLUE | WHITE
//
// # Commands and observations
//
// SetState resolves the input through the alias table, transmits, then
// persists and publishes each changed path. Observe runs the same
// strategy without transmitting; it is used when the original remote was
// overheard, so the state model follows the physical fixture without
// echoing the packet back.
//
// # Thread Safety
//
// Handlers of one device are serialised by a per-device lock, so
// composite updates (power, speed, command, parent) are never interleaved.
// The Registry is safe for concurrent use.
package device
