package radio

import "errors"

var (
	// ErrTransportTimeout is returned when the transceiver does not answer
	// in time. Drivers wrap it; the arbiter resets the hardware before
	// surfacing it from Send.
	ErrTransportTimeout = errors.New("radio: transport timeout")

	// ErrNoDriver is returned when an Arbiter is built without a driver.
	ErrNoDriver = errors.New("radio: no transceiver driver")

	// ErrEmptyPayload is returned when Send is called with no data.
	ErrEmptyPayload = errors.New("radio: empty payload")

	// ErrInvalidRepeat is returned for a repeat count below one.
	ErrInvalidRepeat = errors.New("radio: invalid repeat count")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("radio: arbiter closed")
)
