package eavesdrop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rfbridge/internal/device"
	"github.com/nerrad567/rfbridge/internal/radio"
	"github.com/nerrad567/rfbridge/internal/rf/vendor"
)

const (
	// DefaultGap is the run of low chips that separates two frames.
	DefaultGap = 20

	// DefaultHoldThreshold is the frame count above which a light toggle
	// is read as press-and-hold and forces the light ON.
	DefaultHoldThreshold = 40

	// DefaultResetTimeout bounds the radio reset when Run exits.
	DefaultResetTimeout = 2 * time.Second
)

// Receiver is the radio in receive mode. *radio.Arbiter satisfies it.
type Receiver interface {
	Receive(ctx context.Context, profile radio.Profile, gap int) ([]string, error)
	Reset(ctx context.Context) error
}

// Protocol decodes one vendor's frames.
type Protocol interface {
	Name() string
	Profile() radio.Profile
	Decode(window string) (string, error)
	Interpret(bits string) (vendor.Observation, error)
}

// Directory finds the node an observation updates. *device.Registry
// satisfies it.
type Directory interface {
	Find(vendor, identity, class string) (device.Node, bool)
}

// Recorder stores decoded windows for offline analysis.
type Recorder interface {
	Record(c Capture)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Recognizer.
type Options struct {
	Receiver  Receiver
	Protocols []Protocol
	Devices   Directory

	// Gap in symbols. Default: DefaultGap.
	Gap int

	// HoldThreshold, default DefaultHoldThreshold. Negative disables the
	// press-and-hold rule.
	HoldThreshold int

	// PollInterval is slept between polls. Zero polls back to back; the
	// radio's own receive timeout paces the loop.
	PollInterval time.Duration

	// Recorder is optional.
	Recorder Recorder

	// Logger is optional.
	Logger Logger
}

// Stats are cumulative recognizer counters.
type Stats struct {
	Polls   uint64
	Windows uint64
	Valid   uint64
	Presses uint64
	Applied uint64
	Unknown uint64
	Skipped uint64
}

// Recognizer turns overheard frames into device state.
type Recognizer struct {
	receiver  Receiver
	protocols []Protocol
	devices   Directory
	gap       int
	hold      int
	interval  time.Duration
	recorder  Recorder
	logger    Logger

	// tallies is indexed like protocols and only touched by the poll loop.
	tallies []*tally

	polls, windows, valid, presses, applied, unknown, skipped atomic.Uint64
}

// New validates opts and builds a Recognizer.
func New(opts Options) (*Recognizer, error) {
	if opts.Receiver == nil {
		return nil, ErrNoReceiver
	}
	if len(opts.Protocols) == 0 {
		return nil, ErrNoProtocols
	}
	if opts.Devices == nil {
		return nil, ErrNoDirectory
	}
	r := &Recognizer{
		receiver:  opts.Receiver,
		protocols: opts.Protocols,
		devices:   opts.Devices,
		gap:       opts.Gap,
		hold:      opts.HoldThreshold,
		interval:  opts.PollInterval,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
	}
	if r.gap <= 0 {
		r.gap = DefaultGap
	}
	if r.hold == 0 {
		r.hold = DefaultHoldThreshold
	}
	for range r.protocols {
		r.tallies = append(r.tallies, newTally())
	}
	return r, nil
}

// Run polls until ctx is cancelled, then resets the radio. An in-flight
// receive is left to finish or time out.
func (r *Recognizer) Run(ctx context.Context) error {
	r.logInfo("eavesdropper started", "protocols", len(r.protocols), "gap", r.gap)
	defer r.resetRadio()

	for {
		if err := ctx.Err(); err != nil {
			r.logInfo("eavesdropper stopping")
			return nil
		}
		if err := r.Poll(ctx); err != nil {
			if errors.Is(err, radio.ErrClosed) {
				return err
			}
			if ctx.Err() == nil {
				r.logError("eavesdrop poll failed", err)
			}
		}
		if r.interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.interval):
			}
		}
	}
}

func (r *Recognizer) resetRadio() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultResetTimeout)
	defer cancel()
	if err := r.receiver.Reset(ctx); err != nil && !errors.Is(err, radio.ErrClosed) {
		r.logError("radio reset after eavesdropping failed", err)
	}
}

// Poll runs one receive per protocol. A poll without any valid frame
// ends the current press: its most counted frame is applied and the
// count is cleared.
func (r *Recognizer) Poll(ctx context.Context) error {
	r.polls.Add(1)
	var firstErr error
	for i, p := range r.protocols {
		windows, err := r.receiver.Receive(ctx, p.Profile(), r.gap)
		if err != nil && firstErr == nil {
			firstErr = err
		}

		t := r.tallies[i]
		seen := false
		for _, w := range windows {
			r.windows.Add(1)
			bits, err := p.Decode(w)
			ok := err == nil
			r.record(p, w, bits, ok)
			if !ok {
				continue
			}
			r.valid.Add(1)
			t.add(bits)
			seen = true
		}

		if !seen && !t.empty() {
			bits, count := t.winner()
			t.reset()
			r.presses.Add(1)
			r.apply(ctx, p, bits, count)
		}
	}
	return firstErr
}

func (r *Recognizer) record(p Protocol, window, bits string, valid bool) {
	if r.recorder == nil {
		return
	}
	r.recorder.Record(Capture{
		Time:   time.Now().UTC(),
		Vendor: p.Name(),
		Window: window,
		Bits:   bits,
		Valid:  valid,
	})
}

func (r *Recognizer) apply(ctx context.Context, p Protocol, bits string, count int) {
	obs, err := p.Interpret(bits)
	if err != nil {
		r.skipped.Add(1)
		return
	}
	node, ok := r.devices.Find(p.Name(), obs.Identity, obs.Class)
	if !ok {
		r.unknown.Add(1)
		r.logDebug("overheard unregistered device",
			"vendor", p.Name(), "identity", obs.Identity, "class", obs.Class)
		return
	}

	state := obs.State
	if obs.Toggle {
		state, ok = r.toggle(ctx, node, count)
		if !ok {
			r.skipped.Add(1)
			r.logDebug("toggle skipped, current state unknown", "path", node.Path())
			return
		}
	}

	got, err := node.Observe(ctx, state)
	if err != nil {
		r.skipped.Add(1)
		r.logWarn("applying overheard state failed", "path", node.Path(), "state", state, "error", err)
		return
	}
	r.applied.Add(1)
	r.logInfo("overheard command", "vendor", p.Name(), "path", node.Path(), "state", got, "count", count)
}

// toggle picks the state opposite the persisted one. A long press forces
// ON regardless.
func (r *Recognizer) toggle(ctx context.Context, node device.Node, count int) (string, bool) {
	available := node.AvailableStates()
	if len(available) == 0 {
		return "", false
	}
	if r.hold > 0 && count > r.hold {
		for _, s := range available {
			if s == "ON" {
				return s, true
			}
		}
		return available[len(available)-1], true
	}
	current, ok := node.State(ctx)
	if !ok {
		return "", false
	}
	for i, s := range available {
		if s == current {
			return available[len(available)-1-i], true
		}
	}
	return "", false
}

// Stats returns a snapshot of the counters.
func (r *Recognizer) Stats() Stats {
	return Stats{
		Polls:   r.polls.Load(),
		Windows: r.windows.Load(),
		Valid:   r.valid.Load(),
		Presses: r.presses.Load(),
		Applied: r.applied.Load(),
		Unknown: r.unknown.Load(),
		Skipped: r.skipped.Load(),
	}
}

func (r *Recognizer) logDebug(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, keysAndValues...)
	}
}

func (r *Recognizer) logInfo(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}

func (r *Recognizer) logWarn(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, keysAndValues...)
	}
}

func (r *Recognizer) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "error", err)
	}
}
