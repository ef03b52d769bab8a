package symbol

import (
	"fmt"
	"strings"
)

// Three-chip PWM patterns.
const (
	chipZero = "001"
	chipOne  = "011"

	// minPWMSymbols is the shortest symbol string worth decoding (two bits).
	minPWMSymbols = 6
)

// Two-chip PWM patterns used by later Feit remotes.
const (
	twoChipZero = "00"
	twoChipOne  = "10"
)

// IsBits reports whether s is a non-empty string of '0' and '1'.
func IsBits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}

// EncodePWM expands each bit into its three-chip pattern.
//
//	EncodePWM("00110011") == "001001011011001001011011"
func EncodePWM(bits string) (string, error) {
	return expand(bits, chipZero, chipOne)
}

// EncodeTwoChip expands each bit into the two-chip pattern used by
// newer Feit remotes: 0 → "00", 1 → "10".
func EncodeTwoChip(bits string) (string, error) {
	return expand(bits, twoChipZero, twoChipOne)
}

func expand(bits, zero, one string) (string, error) {
	if !IsBits(bits) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBits, bits)
	}
	var b strings.Builder
	b.Grow(len(bits) * len(zero))
	for i := 0; i < len(bits); i++ {
		if bits[i] == '1' {
			b.WriteString(one)
		} else {
			b.WriteString(zero)
		}
	}
	return b.String(), nil
}

// DecodePWM reverses EncodePWM.
//
// The symbol string is read as a sequence of runs matching 0+(1+): every
// run of low chips followed by high chips is one bit. A high run of length
// one is a 0, length two is a 1; anything longer (or any leftover chips
// after the last high run) makes the whole string invalid. Because only
// the high run carries the value, a leading clock chip that has already
// been stripped, or one extra low chip of hold-over jitter, still decodes.
//
// Returns ErrInvalidSymbols for strings shorter than six symbols.
func DecodePWM(symbols string) (string, error) {
	if len(symbols) < minPWMSymbols {
		return "", fmt.Errorf("%w: %d symbols is too short", ErrInvalidSymbols, len(symbols))
	}

	bits := make([]byte, 0, len(symbols)/3)
	i := 0
	for i < len(symbols) {
		lows := 0
		for i < len(symbols) && symbols[i] == '0' {
			lows++
			i++
		}
		highs := 0
		for i < len(symbols) && symbols[i] == '1' {
			highs++
			i++
		}
		if i < len(symbols) && symbols[i] != '0' {
			return "", fmt.Errorf("%w: unexpected %q at %d", ErrInvalidSymbols, symbols[i], i)
		}
		if lows == 0 || highs == 0 {
			return "", fmt.Errorf("%w: unterminated run at %d", ErrInvalidSymbols, i)
		}
		switch highs {
		case 1:
			bits = append(bits, '0')
		case 2:
			bits = append(bits, '1')
		default:
			return "", fmt.Errorf("%w: high run of %d", ErrInvalidSymbols, highs)
		}
	}
	return string(bits), nil
}

// StripClock removes a single leading high chip left over from a sync
// pulse, if present.
func StripClock(symbols string) string {
	if strings.HasPrefix(symbols, "1") {
		return symbols[1:]
	}
	return symbols
}
