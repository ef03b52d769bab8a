// Package subgrfspy drives a CC1110/CC1111 radio running subg_rfspy-style
// firmware over a serial port.
//
// The firmware exposes a handful of commands (get state, get packet, send
// packet, update register, reset). Everything else the arbiter needs,
// such as modulation, frequency, data rate and channel, is done by writing
// the radio's configuration registers directly.
//
// Frames on the wire are length-prefixed: a request is
// [length][command][params...] and a response is [length][payload...].
// A one-byte response payload of 0xaa, 0xbb or 0xcc is a firmware error.
package subgrfspy
