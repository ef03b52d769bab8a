package radio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rfbridge/internal/rf/symbol"
)

// Defaults for the CC111x family.
const (
	// DefaultPower is the PA setting applied on every profile change.
	DefaultPower uint8 = 50

	// DefaultChannelSpacing is the channel step in Hz.
	DefaultChannelSpacing uint32 = 100000

	// DefaultGuardDelay lets the synthesiser settle around mode changes.
	DefaultGuardDelay = 50 * time.Millisecond

	// DefaultReceiveBackoff is how long Receive sleeps when the radio is busy.
	DefaultReceiveBackoff = 100 * time.Millisecond

	// DefaultBurstLimit is the largest hardware repeat count per transmit
	// call (a one-byte field in the firmware protocol).
	DefaultBurstLimit = 255

	// DefaultMaxBlock is the largest single transmit block in bytes.
	DefaultMaxBlock = 255

	// ReceivePacketLength is the capture buffer length used while listening.
	ReceivePacketLength = 50
)

// Mode is the direction the radio is currently claimed for.
type Mode int

// Radio modes.
const (
	ModeIdle Mode = iota
	ModeSend
	ModeReceive
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSend:
		return "send"
	case ModeReceive:
		return "receive"
	default:
		return "idle"
	}
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures an Arbiter.
type Options struct {
	// Driver is the transceiver. Required.
	Driver Transceiver

	// Power is the PA level. Default: DefaultPower.
	Power uint8

	// ChannelSpacing in Hz. Default: DefaultChannelSpacing.
	ChannelSpacing uint32

	// GuardDelay is slept before and after direction changes.
	// Default: DefaultGuardDelay. Negative disables the delay.
	GuardDelay time.Duration

	// ReceiveBackoff is slept by Receive when the radio is busy.
	// Default: DefaultReceiveBackoff.
	ReceiveBackoff time.Duration

	// BurstLimit caps the hardware repeat count. Default: DefaultBurstLimit.
	BurstLimit int

	// MaxBlock caps the size of a concatenated transmit block.
	// Default: DefaultMaxBlock.
	MaxBlock int

	// Sleep replaces time.Sleep, for tests.
	Sleep func(time.Duration)

	Logger Logger
}

// Stats holds operational statistics.
type Stats struct {
	Transmissions uint64
	Captures      uint64
	Timeouts      uint64
	Resets        uint64
	BusySkips     uint64
	ModeSwitches  uint64
}

// claim is the current owner and direction of the radio.
type claim struct {
	owner     *Profile
	mode      Mode
	packetLen int
}

// Arbiter serialises all access to one transceiver.
type Arbiter struct {
	driver Transceiver

	power          uint8
	channelSpacing uint32
	guardDelay     time.Duration
	receiveBackoff time.Duration
	burstLimit     int
	maxBlock       int
	sleep          func(time.Duration)

	// sem is the radio lock: a one-slot channel so Send can honour
	// context cancellation and Receive can try without blocking.
	sem    chan struct{}
	claim  claim // guarded by sem
	closed atomic.Bool

	transmissions atomic.Uint64
	captures      atomic.Uint64
	timeouts      atomic.Uint64
	resets        atomic.Uint64
	busySkips     atomic.Uint64
	modeSwitches  atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an Arbiter for the given driver.
func New(opts Options) (*Arbiter, error) {
	if opts.Driver == nil {
		return nil, ErrNoDriver
	}
	if opts.Power == 0 {
		opts.Power = DefaultPower
	}
	if opts.ChannelSpacing == 0 {
		opts.ChannelSpacing = DefaultChannelSpacing
	}
	if opts.GuardDelay == 0 {
		opts.GuardDelay = DefaultGuardDelay
	}
	if opts.GuardDelay < 0 {
		opts.GuardDelay = 0
	}
	if opts.ReceiveBackoff <= 0 {
		opts.ReceiveBackoff = DefaultReceiveBackoff
	}
	if opts.BurstLimit <= 0 {
		opts.BurstLimit = DefaultBurstLimit
	}
	if opts.MaxBlock <= 0 {
		opts.MaxBlock = DefaultMaxBlock
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	return &Arbiter{
		driver:         opts.Driver,
		power:          opts.Power,
		channelSpacing: opts.ChannelSpacing,
		guardDelay:     opts.GuardDelay,
		receiveBackoff: opts.ReceiveBackoff,
		burstLimit:     opts.BurstLimit,
		maxBlock:       opts.MaxBlock,
		sleep:          opts.Sleep,
		sem:            make(chan struct{}, 1),
		logger:         opts.Logger,
	}, nil
}

// SetLogger sets the logger for the arbiter.
func (a *Arbiter) SetLogger(logger Logger) {
	a.loggerMu.Lock()
	defer a.loggerMu.Unlock()
	a.logger = logger
}

// Send transmits payload repeat times using profile's radio settings.
//
// It blocks until the radio is free or ctx is done. A repeat count above
// the burst limit is met by concatenating copies of payload into one block
// so the total number of transmissions is exactly repeat.
//
// On a driver timeout the claim is dropped, the hardware is reset and an
// error wrapping ErrTransportTimeout is returned. Nothing is retried.
func (a *Arbiter) Send(ctx context.Context, profile Profile, payload []byte, repeat int) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if repeat < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRepeat, repeat)
	}
	if a.closed.Load() {
		return ErrClosed
	}

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-a.sem }()

	for _, b := range PlanBursts(len(payload), repeat, a.burstLimit, a.maxBlock) {
		block := payload
		if b.Copies > 1 {
			block = bytes.Repeat(payload, b.Copies)
		}
		if err := a.changeMode(profile, ModeSend, len(block)); err != nil {
			return a.fail("send", err)
		}
		if err := a.driver.Transmit(block, b.Count); err != nil {
			return a.fail("send", err)
		}
		a.transmissions.Add(uint64(b.Copies * b.Count))
	}

	a.logDebug("radio transmit complete",
		"profile", profile.Name,
		"bytes", len(payload),
		"repeat", repeat,
	)
	return nil
}

// Receive captures one buffer with profile's settings and splits it into
// candidate packets at runs of at least gap low symbols.
//
// Receive never waits for the radio: when a transmission holds it, Receive
// sleeps for the backoff interval and returns no windows. Driver timeouts
// reset the hardware and are reported as no windows, not as errors.
func (a *Arbiter) Receive(ctx context.Context, profile Profile, gap int) ([]string, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case a.sem <- struct{}{}:
	default:
		a.busySkips.Add(1)
		a.sleep(a.receiveBackoff)
		return nil, nil
	}
	defer func() { <-a.sem }()

	if err := a.changeMode(profile, ModeReceive, ReceivePacketLength); err != nil {
		return nil, a.swallow(err)
	}
	capture, err := a.driver.Receive()
	if err != nil {
		return nil, a.swallow(err)
	}
	a.captures.Add(1)

	return symbol.SplitWindows(symbol.UnpackBits(capture.Data), gap), nil
}

// Reset drops the current claim and reinitialises the hardware. The next
// Send or Receive starts with a full mode switch.
func (a *Arbiter) Reset(ctx context.Context) error {
	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-a.sem }()
	return a.resetLocked()
}

// Close resets the radio and closes the driver. The arbiter cannot be
// used afterwards.
func (a *Arbiter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.sem <- struct{}{}
	defer func() { <-a.sem }()

	if a.claim.mode != ModeIdle {
		if err := a.driver.SetIdleMode(); err != nil {
			a.logError("radio idle on close failed", err)
		}
	}
	a.claim = claim{}
	return a.driver.Close()
}

// Owner returns the profile currently holding the radio and its mode.
// It reports false when nothing is claimed or the radio is in use.
func (a *Arbiter) Owner() (Profile, Mode, bool) {
	select {
	case a.sem <- struct{}{}:
	default:
		return Profile{}, ModeIdle, false
	}
	defer func() { <-a.sem }()

	if a.claim.owner == nil {
		return Profile{}, ModeIdle, false
	}
	return *a.claim.owner, a.claim.mode, true
}

// Stats returns current operational statistics.
func (a *Arbiter) Stats() Stats {
	return Stats{
		Transmissions: a.transmissions.Load(),
		Captures:      a.captures.Load(),
		Timeouts:      a.timeouts.Load(),
		Resets:        a.resets.Load(),
		BusySkips:     a.busySkips.Load(),
		ModeSwitches:  a.modeSwitches.Load(),
	}
}

// changeMode moves the claim to profile and mode. Must hold sem.
//
// The previous direction is always released before the new owner is
// configured, and the new direction is always prepared afterwards, so
// the guard delays run on every owner or direction change.
func (a *Arbiter) changeMode(profile Profile, mode Mode, packetLen int) error {
	sameOwner := a.claim.owner != nil && *a.claim.owner == profile
	if sameOwner && a.claim.mode == mode {
		if a.claim.packetLen != packetLen {
			if err := a.driver.SetPacketLength(packetLen); err != nil {
				return err
			}
			a.claim.packetLen = packetLen
		}
		return nil
	}
	a.modeSwitches.Add(1)

	if err := a.releaseMode(); err != nil {
		return err
	}

	if !sameOwner {
		if err := a.configure(profile); err != nil {
			return err
		}
		p := profile
		a.claim.owner = &p
		a.claim.packetLen = 0
	}

	if a.claim.packetLen != packetLen {
		if err := a.driver.SetPacketLength(packetLen); err != nil {
			return err
		}
		a.claim.packetLen = packetLen
	}

	switch mode {
	case ModeSend:
		a.guard()
	case ModeReceive:
		a.guard()
		if err := a.driver.SetReceiveMode(); err != nil {
			return err
		}
	}
	a.claim.mode = mode

	a.logDebug("radio mode changed", "profile", profile.Name, "mode", mode.String())
	return nil
}

// releaseMode leaves the current direction. Must hold sem.
func (a *Arbiter) releaseMode() error {
	switch a.claim.mode {
	case ModeSend:
		a.guard()
	case ModeReceive:
		a.guard()
		if err := a.driver.SetIdleMode(); err != nil {
			return err
		}
	}
	a.claim.mode = ModeIdle
	return nil
}

// configure applies a profile's settings. Must hold sem.
func (a *Arbiter) configure(p Profile) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"modulation", func() error { return a.driver.SetModulation(ModulationOOK) }},
		{"frequency", func() error { return a.driver.SetFrequency(p.Frequency) }},
		{"baud rate", func() error { return a.driver.SetBaudRate(p.BaudRate) }},
		{"channel spacing", func() error { return a.driver.SetChannelSpacing(a.channelSpacing) }},
		{"channel", func() error { return a.driver.SetChannel(p.Channel) }},
		{"power", func() error { return a.driver.SetPower(a.power) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("setting %s: %w", s.name, err)
		}
	}
	return nil
}

func (a *Arbiter) guard() {
	if a.guardDelay > 0 {
		a.sleep(a.guardDelay)
	}
}

// fail handles a send-path error. Must hold sem.
func (a *Arbiter) fail(op string, err error) error {
	if errors.Is(err, ErrTransportTimeout) {
		a.timeouts.Add(1)
		a.logWarn("radio timeout", "op", op, "error", err)
		if rerr := a.resetLocked(); rerr != nil {
			a.logError("radio reset failed", rerr)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// Unknown hardware state: start from scratch next time.
	a.claim = claim{}
	return fmt.Errorf("%s: %w", op, err)
}

// swallow handles a receive-path error. Must hold sem.
func (a *Arbiter) swallow(err error) error {
	if errors.Is(err, ErrTransportTimeout) {
		a.timeouts.Add(1)
		a.logWarn("radio receive timeout", "error", err)
		if rerr := a.resetLocked(); rerr != nil {
			a.logError("radio reset failed", rerr)
		}
		return nil
	}
	a.claim = claim{}
	return fmt.Errorf("receive: %w", err)
}

// resetLocked clears the claim and resets the hardware. Must hold sem.
func (a *Arbiter) resetLocked() error {
	a.claim = claim{}
	a.resets.Add(1)
	return a.driver.Reset()
}

func (a *Arbiter) getLogger() Logger {
	a.loggerMu.RLock()
	defer a.loggerMu.RUnlock()
	return a.logger
}

func (a *Arbiter) logDebug(msg string, keysAndValues ...any) {
	if l := a.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (a *Arbiter) logWarn(msg string, keysAndValues ...any) {
	if l := a.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (a *Arbiter) logError(msg string, err error) {
	if l := a.getLogger(); l != nil {
		l.Error(msg, "error", err)
	}
}
