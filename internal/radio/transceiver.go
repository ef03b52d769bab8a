package radio

import "time"

// Modulation selects the carrier modulation.
type Modulation int

const (
	// ModulationOOK is on-off keying (amplitude shift keying with two levels).
	ModulationOOK Modulation = iota
)

// String returns the modulation name.
func (m Modulation) String() string {
	switch m {
	case ModulationOOK:
		return "OOK"
	default:
		return "unknown"
	}
}

// Capture is one raw buffer read from the receiver.
type Capture struct {
	Data      []byte
	Timestamp time.Time
}

// Transceiver is the hardware driver beneath the Arbiter.
//
// Every method is synchronous. Drivers report an unresponsive device by
// returning an error that wraps ErrTransportTimeout.
type Transceiver interface {
	SetModulation(m Modulation) error
	SetFrequency(hz uint32) error
	SetBaudRate(baud uint32) error
	SetChannelSpacing(hz uint32) error
	SetChannel(channel uint8) error
	SetPower(level uint8) error

	// SetPacketLength fixes the length of transmitted and received packets.
	SetPacketLength(n int) error

	// Transmit sends data count times back to back.
	Transmit(data []byte, count int) error

	// SetReceiveMode enters raw capture: no sync word, no CRC.
	SetReceiveMode() error

	// SetIdleMode leaves receive or transmit mode.
	SetIdleMode() error

	// Receive blocks until one buffer is captured or the driver times out.
	Receive() (Capture, error)

	// Reset reinitialises the radio after a fault.
	Reset() error

	Close() error
}

// Profile identifies a claimant of the radio and the settings it needs.
// Two claimants with equal profiles share the hardware configuration.
type Profile struct {
	// Name identifies the vendor protocol (e.g. "hunter").
	Name string

	// Frequency is the carrier frequency in Hz.
	Frequency uint32

	// BaudRate is the symbol rate.
	BaudRate uint32

	// Channel is added to the base frequency in channel-spacing steps.
	Channel uint8
}
