package device

import (
	"fmt"
	"strings"
)

// Kind selects a device's handler layout and strategies.
type Kind int

// Supported kinds.
const (
	KindLight Kind = iota + 1
	KindThreeSpeedFan
	KindColorLight
	KindGenericLircLight
	KindGenericLircFan
)

// Device classes, used as the first path segment.
const (
	ClassFan   = "fan"
	ClassLight = "light"
)

var kindNames = map[Kind]string{
	KindLight:            "light",
	KindThreeSpeedFan:    "three_speed_fan",
	KindColorLight:       "color_light",
	KindGenericLircLight: "lirc_light",
	KindGenericLircFan:   "lirc_fan",
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Class returns "fan" or "light".
func (k Kind) Class() string {
	switch k {
	case KindThreeSpeedFan, KindGenericLircFan:
		return ClassFan
	default:
		return ClassLight
	}
}

// ParseKind returns the kind with the given configuration name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Canonical states and alias tables.
var (
	onOffStates = []string{"OFF", "ON"}
	speedStates = []string{"1", "2", "3"}

	// commandStates are the literals sent over the air; 0 is off.
	commandStates = []string{"0", "1", "2", "3"}

	// ColorStates are the fixed colours of a colour light.
	ColorStates = []string{"RED", "GREEN", "BLUE", "WHITE"}

	// BrightnessStates are the dimming buttons of a colour light.
	BrightnessStates = []string{"DOWN", "MINUS", "PLUS", "UP"}

	onOffAliases = map[string]string{
		"1":     "ON",
		"0":     "OFF",
		"TRUE":  "ON",
		"FALSE": "OFF",
	}

	speedAliases = map[string]string{
		"LO":   "1",
		"LOW":  "1",
		"L":    "1",
		"MED":  "2",
		"MID":  "2",
		"M":    "2",
		"HI":   "3",
		"HIGH": "3",
		"H":    "3",
	}
)

// Subdevice names.
const (
	SubPower      = "power"
	SubSpeed      = "speed"
	SubCommand    = "command"
	SubColor      = "color"
	SubBrightness = "brightness"
)

// layout returns the ordered handlers and the parent's available states.
func (k Kind) layout() ([]handlerSpec, []string, error) {
	switch k {
	case KindLight, KindGenericLircLight:
		return []handlerSpec{
			{states: onOffStates, aliases: onOffAliases, apply: applyDirect},
		}, onOffStates, nil
	case KindThreeSpeedFan, KindGenericLircFan:
		return []handlerSpec{
			{name: SubPower, states: onOffStates, aliases: onOffAliases, apply: applyFanPower},
			{name: SubSpeed, states: speedStates, aliases: speedAliases, apply: applyFanSpeed},
			{name: SubCommand, states: commandStates, apply: applyFanCommand},
		}, onOffStates, nil
	case KindColorLight:
		return []handlerSpec{
			{states: onOffStates, aliases: onOffAliases, apply: applyDirect},
			{name: SubColor, states: ColorStates, apply: applyDirect},
			{name: SubBrightness, states: BrightnessStates, apply: applyDirect},
		}, append(append([]string{}, onOffStates...), ColorStates...), nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(k))
	}
}
