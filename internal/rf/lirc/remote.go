package lirc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nerrad567/rfbridge/internal/rf/symbol"
)

// Remote flags understood by the encoder.
const (
	FlagSpaceFirst = "SPACE_FIRST"
	FlagReverse    = "REVERSE"
	FlagNoHeadRep  = "NO_HEAD_REP"
	FlagNoFootRep  = "NO_FOOT_REP"
)

// Remote is the typed form of a "begin remote" section.
type Remote struct {
	Name  string
	Bits  int
	Flags []string

	EPS  int
	AEPS int

	Header symbol.Timing
	Three  symbol.Timing
	Two    symbol.Timing
	One    symbol.Timing
	Zero   symbol.Timing
	Foot   symbol.Timing
	Repeat symbol.Timing
	Pre    symbol.Timing
	Post   symbol.Timing

	PTrail int
	PLead  int

	PreDataBits  int
	PreData      uint64
	PostDataBits int
	PostData     uint64

	Gap       int
	RepeatGap int
	MinRepeat int
	ToggleBit int
	Frequency int
	DutyCycle int

	Codes    map[string]uint64
	RawCodes map[string]uint64

	// Extra keeps keys without a typed interpretation.
	Extra map[string]string

	set map[string]bool
}

// fieldKind is the typed interpretation applied to a key.
type fieldKind int

const (
	kindInt fieldKind = iota
	kindHex
	kindPair
	kindFlags
)

var fieldKinds = map[string]fieldKind{
	"bits":           kindInt,
	"eps":            kindInt,
	"aeps":           kindInt,
	"ptrail":         kindInt,
	"plead":          kindInt,
	"pre_data_bits":  kindInt,
	"post_data_bits": kindInt,
	"gap":            kindInt,
	"repeat_gap":     kindInt,
	"min_repeat":     kindInt,
	"toggle_bit":     kindInt,
	"frequency":      kindInt,
	"duty_cycle":     kindInt,
	"pre_data":       kindHex,
	"post_data":      kindHex,
	"header":         kindPair,
	"three":          kindPair,
	"two":            kindPair,
	"one":            kindPair,
	"zero":           kindPair,
	"foot":           kindPair,
	"repeat":         kindPair,
	"pre":            kindPair,
	"post":           kindPair,
	"flags":          kindFlags,
}

// NewRemote interprets the first remote section under root.
func NewRemote(root *Section) (*Remote, error) {
	sec, ok := root.Sections["remote"]
	if !ok {
		return nil, ErrNoRemote
	}
	r := &Remote{
		Codes:    make(map[string]uint64),
		RawCodes: make(map[string]uint64),
		Extra:    make(map[string]string),
		set:      make(map[string]bool),
	}
	for _, key := range sec.Keys {
		if err := r.Set(key, sec.Values[key]); err != nil {
			return nil, err
		}
	}
	for name, table := range map[string]map[string]uint64{"codes": r.Codes, "raw_codes": r.RawCodes} {
		child, ok := sec.Sections[name]
		if !ok {
			continue
		}
		for _, key := range child.Keys {
			v, err := parseHex(child.Values[key])
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrInvalidValue, name, key, err)
			}
			table[key] = v
		}
	}
	return r, nil
}

// Set applies one key/value pair using the key's typed interpretation.
// It is used both while loading a definition and for per-device overrides
// such as a dip-switch specific pre_data.
func (r *Remote) Set(key, value string) error {
	if r.set == nil {
		r.set = make(map[string]bool)
	}
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	value = strings.TrimSpace(value)

	kind, typed := fieldKinds[key]
	if !typed {
		if key == "name" {
			r.Name = value
		} else {
			r.Extra[key] = value
		}
		r.set[key] = true
		return nil
	}

	var err error
	switch kind {
	case kindInt:
		var n int
		n, err = strconv.Atoi(value)
		if err == nil {
			*r.intField(key) = n
		}
	case kindHex:
		var v uint64
		v, err = parseHex(value)
		if err == nil {
			if key == "pre_data" {
				r.PreData = v
			} else {
				r.PostData = v
			}
		}
	case kindPair:
		var t symbol.Timing
		t, err = parsePair(value)
		if err == nil {
			*r.pairField(key) = t
		}
	case kindFlags:
		r.Flags = parseFlags(value)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, key, value, err)
	}
	r.set[key] = true
	return nil
}

// Has reports whether key was configured.
func (r *Remote) Has(key string) bool { return r.set[key] }

// HasFlag reports whether flag is present.
func (r *Remote) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Code returns the configured code for a button.
func (r *Remote) Code(button string) (uint64, bool) {
	v, ok := r.Codes[button]
	return v, ok
}

// Buttons returns the button names, sorted.
func (r *Remote) Buttons() []string {
	names := make([]string, 0, len(r.Codes))
	for name := range r.Codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Remote) intField(key string) *int {
	switch key {
	case "bits":
		return &r.Bits
	case "eps":
		return &r.EPS
	case "aeps":
		return &r.AEPS
	case "ptrail":
		return &r.PTrail
	case "plead":
		return &r.PLead
	case "pre_data_bits":
		return &r.PreDataBits
	case "post_data_bits":
		return &r.PostDataBits
	case "gap":
		return &r.Gap
	case "repeat_gap":
		return &r.RepeatGap
	case "min_repeat":
		return &r.MinRepeat
	case "toggle_bit":
		return &r.ToggleBit
	case "frequency":
		return &r.Frequency
	default:
		return &r.DutyCycle
	}
}

func (r *Remote) pairField(key string) *symbol.Timing {
	switch key {
	case "header":
		return &r.Header
	case "three":
		return &r.Three
	case "two":
		return &r.Two
	case "one":
		return &r.One
	case "zero":
		return &r.Zero
	case "foot":
		return &r.Foot
	case "repeat":
		return &r.Repeat
	case "pre":
		return &r.Pre
	default:
		return &r.Post
	}
}

// parseHex accepts values with or without a 0x prefix.
func parseHex(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 64)
}

// parsePair accepts "pulse space" as written by lircd as well as the
// "(pulse,space)" form.
func parsePair(s string) (symbol.Timing, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.ReplaceAll(s[1:len(s)-1], ",", " ")
	}
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return symbol.Timing{}, fmt.Errorf("want two durations, got %d", len(fields))
	}
	pulse, err := strconv.Atoi(fields[0])
	if err != nil {
		return symbol.Timing{}, err
	}
	space, err := strconv.Atoi(fields[1])
	if err != nil {
		return symbol.Timing{}, err
	}
	return symbol.Timing{Pulse: pulse, Space: space}, nil
}

func parseFlags(s string) []string {
	parts := strings.Split(s, "|")
	flags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			flags = append(flags, p)
		}
	}
	return flags
}
