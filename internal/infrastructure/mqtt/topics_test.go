package mqtt

import (
	"reflect"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := NewTopics(testConfig())

	if got := topics.State("fan/bedroom/speed"); got != "rfbridge/state/fan/bedroom/speed" {
		t.Errorf("State() = %q", got)
	}
	if got := topics.Command("light/porch"); got != "rfbridge/set/light/porch" {
		t.Errorf("Command() = %q", got)
	}
	if got := topics.Health(); got != "rfbridge/status/health" {
		t.Errorf("Health() = %q", got)
	}
	want := []string{"rfbridge/set/+/+", "rfbridge/set/+/+/+"}
	if got := topics.CommandFilters(); !reflect.DeepEqual(got, want) {
		t.Errorf("CommandFilters() = %v", got)
	}
	if got := topics.Discovery("fan", "rfbridge_fan_bedroom"); got != "homeassistant/fan/rfbridge_fan_bedroom/config" {
		t.Errorf("Discovery() = %q", got)
	}
	if got := topics.DiscoverySetFilter(); got != "homeassistant/+/+/set" {
		t.Errorf("DiscoverySetFilter() = %q", got)
	}
}

func TestPathFromCommand(t *testing.T) {
	topics := NewTopics(testConfig())

	tests := []struct {
		topic string
		path  string
		ok    bool
	}{
		{"rfbridge/set/fan/bedroom", "fan/bedroom", true},
		{"rfbridge/set/fan/bedroom/speed", "fan/bedroom/speed", true},
		{"rfbridge/set/fan", "", false},
		{"rfbridge/set/fan//speed", "", false},
		{"rfbridge/set/a/b/c/d", "", false},
		{"rfbridge/state/fan/bedroom", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			path, ok := topics.PathFromCommand(tt.topic)
			if path != tt.path || ok != tt.ok {
				t.Errorf("PathFromCommand(%q) = (%q, %v), want (%q, %v)", tt.topic, path, ok, tt.path, tt.ok)
			}
		})
	}
}

func TestParseDiscoverySet(t *testing.T) {
	topics := NewTopics(testConfig())

	component, objectID, ok := topics.ParseDiscoverySet("homeassistant/light/rfbridge_light_porch/set")
	if !ok || component != "light" || objectID != "rfbridge_light_porch" {
		t.Errorf("got (%q, %q, %v)", component, objectID, ok)
	}
	for _, bad := range []string{
		"homeassistant/light/x/config",
		"homeassistant/light/set",
		"other/light/x/set",
	} {
		if _, _, ok := topics.ParseDiscoverySet(bad); ok {
			t.Errorf("ParseDiscoverySet(%q) ok", bad)
		}
	}
}
