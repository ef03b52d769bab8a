// Package symbol converts logical bit strings into on-off keyed waveform
// symbols and back.
//
// A symbol (or chip) is one baud period of carrier presence ('1') or
// absence ('0'). Two codec families are provided:
//
//   - Three-chip PWM, used by Hunter and Hampton Bay remotes: each bit is a
//     fixed three-chip pattern, 0 → "001" and 1 → "011".
//   - Two-length PWM, used by LIRC-described remotes: each bit is a
//     (pulse, space) pair of configured durations, expressed as multiples of
//     an inferred base time unit.
//
// All values are plain strings of '0' and '1' so they can be logged,
// compared and stored without further framing. Pack helpers turn symbol
// strings into the byte buffers handed to the radio driver.
package symbol
