package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidState) {
//	    // reply 400
//	}
var (
	// ErrDeviceNotFound is returned when no device is registered at a path.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering a path twice.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device construction fails validation.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidKind is returned for an unknown device kind.
	ErrInvalidKind = errors.New("device: invalid kind")

	// ErrInvalidState is returned when an input resolves to no canonical state.
	ErrInvalidState = errors.New("device: invalid state")
)
