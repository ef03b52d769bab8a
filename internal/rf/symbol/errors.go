package symbol

import "errors"

var (
	// ErrInvalidSymbols is returned when a symbol string cannot be decoded
	// into bits (wrong run lengths, too short, or foreign characters).
	ErrInvalidSymbols = errors.New("symbol: invalid symbol sequence")

	// ErrInvalidBits is returned when an input bit string contains
	// characters other than '0' and '1'.
	ErrInvalidBits = errors.New("symbol: invalid bit string")

	// ErrInvalidTiming is returned when a two-length codec is configured
	// with a non-positive unit or an empty timing pair.
	ErrInvalidTiming = errors.New("symbol: invalid timing")
)
