package lirc

import (
	"fmt"
	"strings"

	"github.com/nerrad567/rfbridge/internal/rf/symbol"
)

// segment renders one part of a frame. An empty result omits the segment.
type segment struct {
	name   string
	render func(r *Remote, c symbol.TwoLength, code uint64) string
}

// frameSegments lists the parts of a frame in transmit order.
var frameSegments = []segment{
	{"header", func(r *Remote, c symbol.TwoLength, _ uint64) string {
		if !r.Has("header") {
			return ""
		}
		return c.Pair(r.Header)
	}},
	{"lead", func(r *Remote, c symbol.TwoLength, _ uint64) string {
		return c.Run('1', r.PLead)
	}},
	{"pre", func(r *Remote, c symbol.TwoLength, _ uint64) string {
		if !r.Has("pre_data") {
			return ""
		}
		s := c.Encode(r.PreData, r.PreDataBits)
		if !r.Pre.IsZero() {
			s += c.Pair(r.Pre)
		}
		return s
	}},
	{"data", func(r *Remote, c symbol.TwoLength, code uint64) string {
		return c.Encode(code, r.Bits)
	}},
	{"post", func(r *Remote, c symbol.TwoLength, _ uint64) string {
		if !r.Has("post_data") {
			return ""
		}
		s := c.Encode(r.PostData, r.PostDataBits)
		if !r.Post.IsZero() {
			s = c.Pair(r.Post) + s
		}
		return s
	}},
	{"trail", func(r *Remote, c symbol.TwoLength, _ uint64) string {
		return c.Run('1', r.PTrail)
	}},
	{"foot", func(r *Remote, c symbol.TwoLength, _ uint64) string {
		if !r.Has("foot") {
			return ""
		}
		return c.Pair(r.Foot)
	}},
	{"gap", func(r *Remote, c symbol.TwoLength, _ uint64) string {
		return c.Run('0', r.gapLength())
	}},
}

func (r *Remote) gapLength() int {
	if r.Has("repeat_gap") {
		return r.RepeatGap
	}
	return r.Gap
}

// Timings returns every configured duration, for unit inference.
func (r *Remote) Timings() []int {
	var times []int
	for _, key := range []string{"header", "three", "two", "one", "zero", "foot", "repeat", "pre", "post"} {
		if r.Has(key) {
			t := *r.pairField(key)
			times = append(times, t.Pulse, t.Space)
		}
	}
	for _, key := range []string{"ptrail", "plead", "gap", "repeat_gap"} {
		if r.Has(key) {
			times = append(times, *r.intField(key))
		}
	}
	return times
}

// Unit returns the inferred symbol period in microseconds.
func (r *Remote) Unit() int {
	return symbol.InferUnit(r.Timings())
}

// BaudRate returns the symbol rate needed to play encoded frames.
func (r *Remote) BaudRate() int {
	return symbol.MaxUnit / r.Unit()
}

// Codec returns the two-length PWM codec described by the remote.
func (r *Remote) Codec() symbol.TwoLength {
	return symbol.TwoLength{
		Unit:       r.Unit(),
		Zero:       r.Zero,
		One:        r.One,
		Reverse:    r.HasFlag(FlagReverse),
		SpaceFirst: r.HasFlag(FlagSpaceFirst),
	}
}

// Encode returns the symbols for the first frame of a button press.
func (r *Remote) Encode(button string) (string, error) {
	return r.encode(button, false)
}

// EncodeRepeat returns the symbols for the frames that follow the first
// one while a button is held. NO_HEAD_REP and NO_FOOT_REP drop the header
// and foot here.
func (r *Remote) EncodeRepeat(button string) (string, error) {
	return r.encode(button, true)
}

func (r *Remote) encode(button string, repeat bool) (string, error) {
	code, ok := r.Code(button)
	if !ok {
		return "", fmt.Errorf("%w: %s has no %q", ErrUnknownCode, r.Name, button)
	}
	codec := r.Codec()
	if err := codec.Validate(); err != nil {
		return "", fmt.Errorf("remote %s: %w", r.Name, err)
	}

	var b strings.Builder
	for _, seg := range frameSegments {
		if repeat && seg.name == "header" && r.HasFlag(FlagNoHeadRep) {
			continue
		}
		if repeat && seg.name == "foot" && r.HasFlag(FlagNoFootRep) {
			continue
		}
		b.WriteString(seg.render(r, codec, code))
	}
	return b.String(), nil
}
