package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists canonical states by path.
type Store interface {
	// Get returns the stored state; ok is false when it was never set.
	Get(ctx context.Context, path string) (state string, ok bool, err error)

	// Set stores state at path.
	Set(ctx context.Context, path, state string) error
}

// Transmitter sends a canonical command over the air.
type Transmitter interface {
	Transmit(ctx context.Context, command string) error
}

// Notifier receives an Event for every persisted state change.
// Publish must not block.
type Notifier interface {
	Publish(ctx context.Context, e Event)
}

// Source says what caused a state change.
type Source string

// Event sources.
const (
	SourceCommand   Source = "command"
	SourceEavesdrop Source = "eavesdrop"
)

// Event is a state change notification.
type Event struct {
	// ID is assigned by the notification bus.
	ID        string    `json:"id,omitempty"`
	Path      string    `json:"path"`
	Class     string    `json:"class"`
	Device    string    `json:"device"`
	SubDevice string    `json:"subdevice,omitempty"`
	State     string    `json:"state"`
	Source    Source    `json:"source"`
	Time      time.Time `json:"time"`
}

// Node is anything with a state path: a Device or one of its subdevices.
type Node interface {
	Path() string
	AvailableStates() []string
	AcceptableStates() []string
	State(ctx context.Context) (string, bool)
	SetState(ctx context.Context, input string) (string, error)
	Observe(ctx context.Context, input string) (string, error)
}

// Config describes a device to build.
type Config struct {
	Kind  Kind
	Name  string
	Label string

	// Vendor and Identity locate the device for the eavesdropper, e.g.
	// "hunter" and the dip switch bits.
	Vendor   string
	Identity string

	Transmitter Transmitter
	Store       Store

	// Notifier is optional.
	Notifier Notifier

	// Logger is optional.
	Logger Logger
}

// Device is one logical fixture.
type Device struct {
	kind     Kind
	class    string
	name     string
	label    string
	vendor   string
	identity string

	states   []string
	handlers []*SubDevice

	tx       Transmitter
	store    Store
	notifier Notifier
	logger   Logger

	// mu serialises strategies so composite writes never interleave.
	mu sync.Mutex
}

// New validates cfg and builds the device's handlers.
func New(cfg Config) (*Device, error) {
	if cfg.Name == "" || strings.Contains(cfg.Name, "/") {
		return nil, fmt.Errorf("%w: name %q", ErrInvalidDevice, cfg.Name)
	}
	if cfg.Transmitter == nil {
		return nil, fmt.Errorf("%w: %s has no transmitter", ErrInvalidDevice, cfg.Name)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: %s has no store", ErrInvalidDevice, cfg.Name)
	}
	specs, states, err := cfg.Kind.layout()
	if err != nil {
		return nil, err
	}

	d := &Device{
		kind:     cfg.Kind,
		class:    cfg.Kind.Class(),
		name:     cfg.Name,
		label:    cfg.Label,
		vendor:   cfg.Vendor,
		identity: cfg.Identity,
		states:   states,
		tx:       cfg.Transmitter,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
	if d.label == "" {
		d.label = d.name
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	for _, s := range specs {
		d.handlers = append(d.handlers, &SubDevice{
			parent:  d,
			name:    s.name,
			states:  s.states,
			aliases: s.aliases,
			apply:   s.apply,
		})
	}
	return d, nil
}

// Kind returns the device kind.
func (d *Device) Kind() Kind { return d.kind }

// Class returns "fan" or "light".
func (d *Device) Class() string { return d.class }

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Label returns the display name.
func (d *Device) Label() string { return d.label }

// Vendor returns the protocol family.
func (d *Device) Vendor() string { return d.vendor }

// Identity returns the dip switch, address or remote name.
func (d *Device) Identity() string { return d.identity }

// Path returns "class/name".
func (d *Device) Path() string { return d.class + "/" + d.name }

func (d *Device) path(sub string) string {
	if sub == "" {
		return d.Path()
	}
	return d.Path() + "/" + sub
}

// AvailableStates returns the parent's canonical states.
func (d *Device) AvailableStates() []string {
	return append([]string(nil), d.states...)
}

// AcceptableStates returns every input any handler accepts, in dispatch
// order without duplicates.
func (d *Device) AcceptableStates() []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range d.handlers {
		for _, s := range h.AcceptableStates() {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// SubDevices returns the named subdevices in declared order.
func (d *Device) SubDevices() []*SubDevice {
	var out []*SubDevice
	for _, h := range d.handlers {
		if h.name != "" {
			out = append(out, h)
		}
	}
	return out
}

// SubDevice returns the named subdevice.
func (d *Device) SubDevice(name string) (*SubDevice, bool) {
	for _, h := range d.handlers {
		if h.name != "" && h.name == name {
			return h, true
		}
	}
	return nil, false
}

// own returns the handler for the parent's own state, if any.
func (d *Device) own() (*SubDevice, bool) {
	for _, h := range d.handlers {
		if h.name == "" {
			return h, true
		}
	}
	return nil, false
}

// State returns the parent's persisted state.
func (d *Device) State(ctx context.Context) (string, bool) {
	return d.read(ctx, d.Path())
}

func (d *Device) read(ctx context.Context, path string) (string, bool) {
	s, ok, err := d.store.Get(ctx, path)
	if err != nil {
		d.logger.Warn("reading state failed", "path", path, "error", err)
		return "", false
	}
	return s, ok
}

// SetState dispatches input to the first handler that accepts it and
// returns the canonical state. Unknown input fails with ErrInvalidState
// and has no side effects.
func (d *Device) SetState(ctx context.Context, input string) (string, error) {
	return d.dispatch(ctx, input, true)
}

// Observe is SetState without transmitting.
func (d *Device) Observe(ctx context.Context, input string) (string, error) {
	return d.dispatch(ctx, input, false)
}

func (d *Device) dispatch(ctx context.Context, input string, transmit bool) (string, error) {
	for _, h := range d.handlers {
		if state, ok := h.resolve(input); ok {
			return state, h.run(ctx, state, transmit)
		}
	}
	return "", fmt.Errorf("%w: %q for %s", ErrInvalidState, input, d.Path())
}

// SubDevice is one state handler of a Device. The handler named "" holds
// the parent's own state.
type SubDevice struct {
	parent  *Device
	name    string
	states  []string
	aliases map[string]string
	apply   Strategy
}

// Name returns the subdevice name.
func (s *SubDevice) Name() string { return s.name }

// Parent returns the owning device.
func (s *SubDevice) Parent() *Device { return s.parent }

// Path returns the parent path plus the subdevice name.
func (s *SubDevice) Path() string { return s.parent.path(s.name) }

// AvailableStates returns the canonical states.
func (s *SubDevice) AvailableStates() []string {
	return append([]string(nil), s.states...)
}

// AcceptableStates returns the canonical states followed by the sorted
// aliases.
func (s *SubDevice) AcceptableStates() []string {
	out := s.AvailableStates()
	aliases := make([]string, 0, len(s.aliases))
	for a := range s.aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return append(out, aliases...)
}

// State returns the persisted state.
func (s *SubDevice) State(ctx context.Context) (string, bool) {
	return s.parent.read(ctx, s.Path())
}

// SetState resolves input, transmits and persists.
func (s *SubDevice) SetState(ctx context.Context, input string) (string, error) {
	return s.set(ctx, input, true)
}

// Observe resolves input and persists without transmitting.
func (s *SubDevice) Observe(ctx context.Context, input string) (string, error) {
	return s.set(ctx, input, false)
}

func (s *SubDevice) set(ctx context.Context, input string, transmit bool) (string, error) {
	state, ok := s.resolve(input)
	if !ok {
		return "", fmt.Errorf("%w: %q for %s", ErrInvalidState, input, s.Path())
	}
	return state, s.run(ctx, state, transmit)
}

func (s *SubDevice) resolve(input string) (string, bool) {
	in := strings.ToUpper(strings.TrimSpace(input))
	if contains(s.states, in) {
		return in, true
	}
	if state, ok := s.aliases[in]; ok {
		return state, true
	}
	return "", false
}

func (s *SubDevice) run(ctx context.Context, state string, transmit bool) error {
	d := s.parent
	d.mu.Lock()
	defer d.mu.Unlock()

	source := SourceCommand
	if !transmit {
		source = SourceEavesdrop
	}
	u := &update{ctx: ctx, d: d, transmit: transmit, source: source}
	if err := s.apply(u, s, state); err != nil {
		return fmt.Errorf("%s %s: %w", s.Path(), state, err)
	}
	d.logger.Debug("state applied", "path", s.Path(), "state", state, "source", source)
	return nil
}

var (
	_ Node = (*Device)(nil)
	_ Node = (*SubDevice)(nil)
)
