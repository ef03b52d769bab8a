// Package fleet turns the configured device list into a device.Registry,
// binding each device to its vendor transmitter.
package fleet

import (
	"context"
	"fmt"
	"sort"

	"github.com/nerrad567/rfbridge/internal/device"
	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/rf/lirc"
	"github.com/nerrad567/rfbridge/internal/rf/vendor"
)

// Logger satisfies both device.Logger and vendor.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options are shared by every device in the fleet.
type Options struct {
	// Sender is the radio arbiter. Required.
	Sender vendor.Sender

	// Store persists states. Required.
	Store device.Store

	Notifier device.Notifier
	Logger   Logger
}

// KindFor maps vendor and class to a device kind.
func KindFor(d config.DeviceConfig) (device.Kind, error) {
	switch {
	case d.Vendor == config.VendorFeit && d.Class == device.ClassLight:
		return device.KindColorLight, nil
	case d.Vendor == config.VendorLIRC && d.Class == device.ClassFan:
		return device.KindGenericLircFan, nil
	case d.Vendor == config.VendorLIRC && d.Class == device.ClassLight:
		return device.KindGenericLircLight, nil
	case d.Class == device.ClassFan:
		return device.KindThreeSpeedFan, nil
	case d.Class == device.ClassLight:
		return device.KindLight, nil
	}
	return 0, fmt.Errorf("%w: %s %s", device.ErrInvalidKind, d.Vendor, d.Class)
}

// Build creates and registers every device. It fails on the first device
// that cannot be built, naming it.
func Build(devices []config.DeviceConfig, opts Options) (*device.Registry, error) {
	if opts.Sender == nil || opts.Store == nil {
		return nil, fmt.Errorf("fleet: sender and store are required")
	}

	reg := device.NewRegistry()
	if opts.Logger != nil {
		reg.SetLogger(opts.Logger)
	}

	for _, dc := range devices {
		d, err := build(reg, dc, opts)
		if err != nil {
			return nil, fmt.Errorf("device %s/%s: %w", dc.Class, dc.Name, err)
		}
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func build(reg *device.Registry, dc config.DeviceConfig, opts Options) (*device.Device, error) {
	kind, err := KindFor(dc)
	if err != nil {
		return nil, err
	}

	cfg := device.Config{
		Kind:     kind,
		Name:     dc.Name,
		Label:    dc.Label,
		Vendor:   dc.Vendor,
		Identity: dc.Identity(),
		Store:    opts.Store,
		Notifier: opts.Notifier,
	}
	if opts.Logger != nil {
		cfg.Logger = opts.Logger
	}

	vopts := vendor.Options{Sender: opts.Sender, Repeat: dc.Repeat}
	if opts.Logger != nil {
		vopts.Logger = opts.Logger
	}

	// self is filled in after device.New; the Hampton Bay closures only run
	// at transmit time.
	var self *device.Device
	binding, err := newBinding(dc, vopts, func(class string) vendor.StateFunc {
		return siblingState(reg, &self, class)
	})
	if err != nil {
		return nil, err
	}
	cfg.Transmitter = binding

	self, err = device.New(cfg)
	if err != nil {
		return nil, err
	}
	return self, nil
}

func newBinding(dc config.DeviceConfig, opts vendor.Options, sibling func(class string) vendor.StateFunc) (*vendor.Binding, error) {
	switch dc.Vendor {
	case config.VendorHunter:
		if dc.Class == device.ClassFan {
			return vendor.NewHunterFan(dc.Dip, opts)
		}
		return vendor.NewHunterLight(dc.Dip, opts)

	case config.VendorHamptonBay:
		if dc.Class == device.ClassFan {
			return vendor.NewHamptonBayFan(dc.Dip, sibling(device.ClassLight), opts)
		}
		return vendor.NewHamptonBayLight(dc.Dip, sibling(device.ClassFan), opts)

	case config.VendorFeit:
		enc := vendor.FeitEncoding{
			Symbols: dc.Feit.Symbols,
			Packing: dc.Feit.Packing,
			Gap:     dc.Feit.Gap,
		}
		return vendor.NewFeitLight(dc.Address, enc, opts)

	case config.VendorLIRC:
		remote, err := LoadRemote(dc.LIRC)
		if err != nil {
			return nil, err
		}
		profile := vendor.LircRadio(remote, dc.LIRC.Frequency, dc.LIRC.Channel)
		if dc.Class == device.ClassFan {
			return vendor.NewLircFan(remote, profile, opts)
		}
		return vendor.NewLircLight(remote, profile, opts)
	}
	return nil, fmt.Errorf("%w: vendor %q", device.ErrInvalidDevice, dc.Vendor)
}

// LoadRemote loads a LIRC definition and applies config overrides in key
// order, with the same typed interpretation as the file parser.
func LoadRemote(cfg config.LIRCConfig) (*lirc.Remote, error) {
	remote, err := lirc.Load(cfg.Profile)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(cfg.Overrides))
	for k := range cfg.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := remote.Set(k, cfg.Overrides[k]); err != nil {
			return nil, fmt.Errorf("lirc override %s: %w", k, err)
		}
	}
	return remote, nil
}

// siblingState reads the state the other half of a combined fixture last
// had: the light's own state, or the fan's last transmitted command.
func siblingState(reg *device.Registry, self **device.Device, class string) vendor.StateFunc {
	return func() (string, bool) {
		if *self == nil {
			return "", false
		}
		sib, ok := reg.Sibling(*self, class)
		if !ok {
			return "", false
		}
		ctx := context.Background()
		if class == device.ClassFan {
			if cmd, ok := sib.SubDevice(device.SubCommand); ok {
				return cmd.State(ctx)
			}
		}
		return sib.State(ctx)
	}
}
