// Package radio arbitrates access to the single half-duplex transceiver
// shared by every device driver and the eavesdropper.
//
// The Arbiter owns the hardware through a Transceiver driver. A caller
// identifies itself with a Profile (frequency, baud rate, channel); any
// change of profile or of direction (send/receive) re-runs the full mode
// switch sequence, including the settling delays the CC111x radios need.
//
// Send blocks until the radio is free. Receive never waits: if a
// transmission is in progress it backs off briefly and reports no data, so
// the eavesdrop loop cannot delay device commands.
package radio
