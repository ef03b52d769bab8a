package mqtt

import (
	"strings"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
)

// Topics builds and parses rfbridge topics.
//
// Device paths are "<class>/<name>" or "<class>/<name>/<subdevice>":
//
//	rfbridge/state/fan/bedroom          retained state
//	rfbridge/set/fan/bedroom/speed      command, payload = state
//	rfbridge/status                     retained online/offline (LWT)
//	homeassistant/fan/<object_id>/config
type Topics struct {
	StatePrefix     string
	CommandPrefix   string
	StatusTopic     string
	DiscoveryPrefix string
}

// NewTopics reads the prefixes from config.
func NewTopics(cfg config.MQTTConfig) Topics {
	return Topics{
		StatePrefix:     strings.TrimSuffix(cfg.StatePrefix, "/"),
		CommandPrefix:   strings.TrimSuffix(cfg.CommandPrefix, "/"),
		StatusTopic:     cfg.StatusTopic,
		DiscoveryPrefix: strings.TrimSuffix(cfg.HomeAssistant.DiscoveryPrefix, "/"),
	}
}

// State returns the retained state topic for a device path.
func (t Topics) State(path string) string {
	return t.StatePrefix + "/" + path
}

// Command returns the command topic for a device path.
func (t Topics) Command(path string) string {
	return t.CommandPrefix + "/" + path
}

// Status is the bridge availability topic.
func (t Topics) Status() string {
	return t.StatusTopic
}

// Health carries the periodic health document.
func (t Topics) Health() string {
	return t.StatusTopic + "/health"
}

// StateFilters matches every parent and subdevice state topic.
func (t Topics) StateFilters() []string {
	return pathFilters(t.StatePrefix)
}

// CommandFilters matches every parent and subdevice command topic.
func (t Topics) CommandFilters() []string {
	return pathFilters(t.CommandPrefix)
}

// PathFromState extracts the device path from a state topic.
func (t Topics) PathFromState(topic string) (string, bool) {
	return pathUnder(t.StatePrefix, topic)
}

// PathFromCommand extracts the device path from a command topic.
func (t Topics) PathFromCommand(topic string) (string, bool) {
	return pathUnder(t.CommandPrefix, topic)
}

// Discovery returns the Home Assistant config topic for an entity.
func (t Topics) Discovery(component, objectID string) string {
	return t.discoveryBase(component, objectID) + "/config"
}

// DiscoveryState returns the state topic advertised to Home Assistant.
func (t Topics) DiscoveryState(component, objectID string) string {
	return t.discoveryBase(component, objectID) + "/state"
}

// DiscoverySet returns the command topic advertised to Home Assistant.
func (t Topics) DiscoverySet(component, objectID string) string {
	return t.discoveryBase(component, objectID) + "/set"
}

// DiscoverySetFilter matches every Home Assistant command topic.
func (t Topics) DiscoverySetFilter() string {
	return t.DiscoveryPrefix + "/+/+/set"
}

// ParseDiscoverySet splits "<prefix>/<component>/<object_id>/set".
func (t Topics) ParseDiscoverySet(topic string) (component, objectID string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.DiscoveryPrefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (t Topics) discoveryBase(component, objectID string) string {
	return t.DiscoveryPrefix + "/" + component + "/" + objectID
}

func pathFilters(prefix string) []string {
	return []string{prefix + "/+/+", prefix + "/+/+/+"}
}

func pathUnder(prefix, topic string) (string, bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return "", false
	}
	for _, p := range parts {
		if p == "" {
			return "", false
		}
	}
	return rest, true
}
