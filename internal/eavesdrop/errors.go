package eavesdrop

import "errors"

var (
	// ErrNoProtocols is returned when a Recognizer is built without protocols.
	ErrNoProtocols = errors.New("eavesdrop: no protocols")

	// ErrNoReceiver is returned when a Recognizer is built without a radio.
	ErrNoReceiver = errors.New("eavesdrop: no receiver")

	// ErrNoDirectory is returned when a Recognizer is built without devices.
	ErrNoDirectory = errors.New("eavesdrop: no device directory")
)
