package symbol

import (
	"fmt"
	"strings"
)

const wordBits = 64

// PackBytes packs symbols into bytes eight at a time, most significant
// first, padding the final byte with low chips.
//
//	PackBytes("000111000110100001110011") == []byte{0x1c, 0x68, 0x73}
func PackBytes(symbols string) ([]byte, error) {
	if symbols == "" {
		return nil, nil
	}
	if !IsBits(symbols) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBits, symbols)
	}
	if r := len(symbols) % 8; r != 0 {
		symbols += strings.Repeat("0", 8-r)
	}
	out := make([]byte, len(symbols)/8)
	for i := range out {
		var b byte
		for _, c := range symbols[i*8 : i*8+8] {
			b <<= 1
			if c == '1' {
				b |= 1
			}
		}
		out[i] = b
	}
	return out, nil
}

// PackWords treats symbols as one binary number and emits it as
// big-endian 64-bit words, adding words until the whole value fits.
// Leading low chips therefore only survive as zero padding inside the
// most significant word. An all-zero input packs to nothing.
//
//	PackWords("001001011011001001011011") == []byte{0, 0, 0, 0, 0, 0x25, 0xb2, 0x5b}
func PackWords(symbols string) ([]byte, error) {
	if symbols != "" && !IsBits(symbols) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBits, symbols)
	}
	significant := strings.TrimLeft(symbols, "0")
	if significant == "" {
		return nil, nil
	}
	if r := len(significant) % wordBits; r != 0 {
		significant = strings.Repeat("0", wordBits-r) + significant
	}
	return PackBytes(significant)
}

// TrimZeroBytes strips zero bytes from both ends of b.
func TrimZeroBytes(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && b[start] == 0 {
		start++
	}
	for end > start && b[end-1] == 0 {
		end--
	}
	return b[start:end]
}

// UnpackBits renders b as a symbol string, eight symbols per byte.
func UnpackBits(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 8)
	for _, v := range b {
		for i := 7; i >= 0; i-- {
			if v&(1<<uint(i)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String()
}

// SplitWindows splits a received symbol stream into candidate packets
// wherever at least gap consecutive low chips occur. Leading low chips are
// discarded and empty windows are never returned.
func SplitWindows(symbols string, gap int) []string {
	if gap <= 0 {
		gap = 1
	}
	var windows []string
	start := -1
	zeros := 0
	for i := 0; i < len(symbols); i++ {
		if symbols[i] == '0' {
			zeros++
			if start >= 0 && zeros == gap {
				windows = append(windows, symbols[start:i-gap+1])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
		zeros = 0
	}
	if start >= 0 {
		windows = append(windows, symbols[start:])
	}
	return windows
}
