// Package lirc reads LIRC remote-control definitions and renders their
// button presses as on-off keyed symbol strings.
//
// A definition file is a tree of begin/end sections holding "key value"
// lines. Parse reads the tree without interpreting values; NewRemote then
// applies the typed interpretation (integers, hexadecimal numbers,
// duration pairs, flag lists and code tables) to a remote section. Unknown
// keys are kept verbatim.
//
// Encoding follows lircd's transmit order: header, lead pulse, pre-data,
// data, post-data, trailing pulse, foot and gap. Durations are quantised
// to the unit returned by symbol.InferUnit, so the radio can play the
// result at 1e6/unit baud.
package lirc
