package device

import (
	"fmt"
	"strings"
	"sync"
)

// Logger defines the logging interface used by devices and the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type identityKey struct {
	vendor   string
	identity string
	class    string
}

// Registry holds every configured device, by path and by radio identity.
//
// All public methods are thread-safe.
type Registry struct {
	mu         sync.RWMutex
	byPath     map[string]*Device
	byIdentity map[identityKey]*Device
	order      []*Device
	logger     Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byPath:     make(map[string]*Device),
		byIdentity: make(map[identityKey]*Device),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds d. Paths must be unique; a second device with the same
// vendor identity and class is registered by path only, and the first one
// keeps receiving eavesdropped updates.
func (r *Registry) Register(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPath[d.Path()]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.Path())
	}
	r.byPath[d.Path()] = d
	r.order = append(r.order, d)

	if d.vendor != "" && d.identity != "" {
		key := identityKey{vendor: d.vendor, identity: d.identity, class: d.class}
		if prev, ok := r.byIdentity[key]; ok {
			r.logger.Warn("duplicate radio identity",
				"vendor", d.vendor, "identity", d.identity, "kept", prev.Path(), "ignored", d.Path())
		} else {
			r.byIdentity[key] = d
		}
	}

	r.logger.Info("device registered", "path", d.Path(), "kind", d.kind.String(), "vendor", d.vendor)
	return nil
}

// Get returns the device at class/name.
func (r *Registry) Get(class, name string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byPath[class+"/"+name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrDeviceNotFound, class, name)
	}
	return d, nil
}

// Resolve returns the node at "class/name" or "class/name/subdevice".
func (r *Registry) Resolve(path string) (Node, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, path)
	}
	d, err := r.Get(parts[0], parts[1])
	if err != nil {
		return nil, err
	}
	if len(parts) == 2 {
		return d, nil
	}
	sub, ok := d.SubDevice(parts[2])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, path)
	}
	return sub, nil
}

// List returns the devices in registration order.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Device(nil), r.order...)
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Sibling returns the device of the other class sharing vendor and identity,
// e.g. the light in the same Hampton Bay fixture as a fan.
func (r *Registry) Sibling(d *Device, class string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byIdentity[identityKey{vendor: d.vendor, identity: d.identity, class: class}]
	return s, ok
}

// Find returns the node an overheard packet updates: a fan's "command"
// subdevice, or a light's own state.
func (r *Registry) Find(vendor, identity, class string) (Node, bool) {
	r.mu.RLock()
	d, ok := r.byIdentity[identityKey{vendor: vendor, identity: identity, class: class}]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if sub, ok := d.SubDevice(SubCommand); ok {
		return sub, true
	}
	if own, ok := d.own(); ok {
		return own, true
	}
	return nil, false
}
