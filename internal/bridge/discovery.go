package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nerrad567/rfbridge/internal/device"
)

// objectIDPrefix keeps rfbridge entities apart from other integrations.
const objectIDPrefix = "rfbridge_"

// ObjectID turns a device path into a Home Assistant object ID.
func ObjectID(path string) string {
	return objectIDPrefix + strings.ReplaceAll(path, "/", "_")
}

// DiscoveryDevice groups entities in the Home Assistant device registry.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// DiscoveryConfig is the retained payload on <prefix>/<class>/<id>/config.
type DiscoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	CommandTopic      string          `json:"command_topic"`
	AvailabilityTopic string          `json:"availability_topic,omitempty"`
	PayloadAvailable  string          `json:"payload_available,omitempty"`
	PayloadNotAvail   string          `json:"payload_not_available,omitempty"`
	AvailabilityTmpl  string          `json:"availability_template,omitempty"`
	PayloadOn         string          `json:"payload_on"`
	PayloadOff        string          `json:"payload_off"`
	Optimistic        bool            `json:"optimistic"`
	Device            DiscoveryDevice `json:"device"`

	// Fans: speed subdevice as preset modes.
	PresetModeStateTopic   string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeCommandTopic string   `json:"preset_mode_command_topic,omitempty"`
	PresetModes            []string `json:"preset_modes,omitempty"`

	// Colour lights: colour subdevice as effects.
	EffectStateTopic   string   `json:"effect_state_topic,omitempty"`
	EffectCommandTopic string   `json:"effect_command_topic,omitempty"`
	EffectList         []string `json:"effect_list,omitempty"`
}

// Discovery builds the config for d and registers its object IDs.
func (b *Bridge) Discovery(d *device.Device) DiscoveryConfig {
	class := d.Class()
	id := ObjectID(d.Path())
	states := d.AvailableStates()

	name := d.Label()
	if name == "" {
		name = d.Name()
	}

	cfg := DiscoveryConfig{
		Name:              name,
		UniqueID:          id,
		StateTopic:        b.topics.DiscoveryState(class, id),
		CommandTopic:      b.topics.DiscoverySet(class, id),
		AvailabilityTopic: b.topics.Status(),
		AvailabilityTmpl:  "{{ value_json.status }}",
		PayloadAvailable:  "online",
		PayloadNotAvail:   "offline",
		PayloadOff:        states[0],
		PayloadOn:         states[1],
		Device: DiscoveryDevice{
			Identifiers:  []string{id},
			Name:         name,
			Manufacturer: d.Vendor(),
			Model:        d.Kind().String(),
		},
	}

	if speed, ok := d.SubDevice(device.SubSpeed); ok {
		sid := ObjectID(speed.Path())
		cfg.PresetModeStateTopic = b.topics.DiscoveryState(class, sid)
		cfg.PresetModeCommandTopic = b.topics.DiscoverySet(class, sid)
		cfg.PresetModes = speed.AvailableStates()
	}
	if color, ok := d.SubDevice(device.SubColor); ok {
		cid := ObjectID(color.Path())
		cfg.EffectStateTopic = b.topics.DiscoveryState(class, cid)
		cfg.EffectCommandTopic = b.topics.DiscoverySet(class, cid)
		cfg.EffectList = color.AvailableStates()
	}
	return cfg
}

// announce publishes every device's discovery config and current states.
func (b *Bridge) announce() {
	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for _, d := range b.devices.List() {
		b.objectsMu.Lock()
		b.objects[ObjectID(d.Path())] = d.Path()
		for _, sub := range d.SubDevices() {
			b.objects[ObjectID(sub.Path())] = sub.Path()
		}
		b.objectsMu.Unlock()

		cfg := b.Discovery(d)
		payload, err := json.Marshal(cfg)
		if err != nil {
			b.logger.Error("failed to marshal discovery config", "path", d.Path(), "error", err)
			continue
		}
		if err := b.mqtt.Publish(b.topics.Discovery(d.Class(), cfg.UniqueID), payload, b.qos, true); err != nil {
			b.logger.Warn("failed to publish discovery config", "path", d.Path(), "error", err)
			continue
		}

		if state, ok := d.State(ctx); ok {
			b.publishDiscoveryState(d.Class(), d.Path(), state)
		}
		for _, sub := range d.SubDevices() {
			if state, ok := sub.State(ctx); ok {
				b.publishDiscoveryState(d.Class(), sub.Path(), state)
			}
		}
	}
	b.logger.Info("announced devices to home assistant", "devices", len(b.devices.List()))
}
