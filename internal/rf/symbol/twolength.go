package symbol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Timing is a (pulse, space) duration pair in microseconds.
type Timing struct {
	Pulse int
	Space int
}

// IsZero reports whether both durations are unset.
func (t Timing) IsZero() bool { return t.Pulse == 0 && t.Space == 0 }

// TwoLength is a two-length PWM codec: each bit is the Zero or One timing
// pair, quantised to whole multiples of Unit.
type TwoLength struct {
	// Unit is the symbol period in microseconds.
	Unit int

	Zero Timing
	One  Timing

	// Reverse sends the least significant bit first.
	Reverse bool

	// SpaceFirst emits each bit's space before its pulse.
	SpaceFirst bool
}

// Validate checks that the codec can produce distinguishable bits.
func (c TwoLength) Validate() error {
	if c.Unit <= 0 {
		return fmt.Errorf("%w: unit %d", ErrInvalidTiming, c.Unit)
	}
	if c.Zero.IsZero() || c.One.IsZero() {
		return fmt.Errorf("%w: zero and one timings are required", ErrInvalidTiming)
	}
	if c.Run('1', c.Zero.Pulse) == c.Run('1', c.One.Pulse) &&
		c.Run('0', c.Zero.Space) == c.Run('0', c.One.Space) {
		return fmt.Errorf("%w: zero and one are identical at unit %d", ErrInvalidTiming, c.Unit)
	}
	return nil
}

// Run returns level repeated for round(duration/Unit) symbols.
func (c TwoLength) Run(level byte, duration int) string {
	if duration <= 0 || c.Unit <= 0 {
		return ""
	}
	n := int(math.Round(float64(duration) / float64(c.Unit)))
	return strings.Repeat(string(level), n)
}

// Pair returns the pulse run followed by the space run. Header, foot and
// pre/post pairs are always pulse first regardless of SpaceFirst.
func (c TwoLength) Pair(t Timing) string {
	return c.Run('1', t.Pulse) + c.Run('0', t.Space)
}

// Bit returns the symbols for a single bit ('0' or '1').
func (c TwoLength) Bit(bit byte) string {
	t := c.Zero
	if bit == '1' {
		t = c.One
	}
	if c.SpaceFirst {
		return c.Run('0', t.Space) + c.Run('1', t.Pulse)
	}
	return c.Pair(t)
}

// Bits returns value as a width-bit binary string, most significant bit
// first, reversed when Reverse is set. Values wider than width keep their
// full binary form.
func (c TwoLength) Bits(value uint64, width int) string {
	bits := strconv.FormatUint(value, 2)
	if len(bits) < width {
		bits = strings.Repeat("0", width-len(bits)) + bits
	}
	if c.Reverse {
		bits = Reverse(bits)
	}
	return bits
}

// Encode returns the symbols for value at the given bit width.
func (c TwoLength) Encode(value uint64, width int) string {
	bits := c.Bits(value, width)
	var b strings.Builder
	for i := 0; i < len(bits); i++ {
		b.WriteString(c.Bit(bits[i]))
	}
	return b.String()
}

// Decode reverses Encode for a symbol string holding exactly width bits.
// Each bit is read as one pulse run and one space run (in the configured
// order) and matched against the quantised Zero and One timings.
func (c TwoLength) Decode(symbols string, width int) (uint64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	zero, one := c.Bit('0'), c.Bit('1')
	first, second := byte('1'), byte('0')
	if c.SpaceFirst {
		first, second = '0', '1'
	}

	bits := make([]byte, 0, width)
	i := 0
	for i < len(symbols) {
		start := i
		for i < len(symbols) && symbols[i] == first {
			i++
		}
		for i < len(symbols) && symbols[i] == second {
			i++
		}
		switch symbols[start:i] {
		case zero:
			bits = append(bits, '0')
		case one:
			bits = append(bits, '1')
		default:
			return 0, fmt.Errorf("%w: unmatched bit %q at %d", ErrInvalidSymbols, symbols[start:i], start)
		}
	}
	if len(bits) != width {
		return 0, fmt.Errorf("%w: decoded %d bits, want %d", ErrInvalidSymbols, len(bits), width)
	}

	s := string(bits)
	if c.Reverse {
		s = Reverse(s)
	}
	v, err := strconv.ParseUint(s, 2, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSymbols, err)
	}
	return v, nil
}

// Reverse returns s with its characters in reverse order.
func Reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
