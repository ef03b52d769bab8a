package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
radio:
  driver: serial
  serial:
    port: /dev/ttyUSB1
eavesdrop:
  enabled: true
  hold_threshold: 25
devices:
  - vendor: hunter
    class: fan
    name: bedroom
    dip: "1011"
  - vendor: hunter
    class: light
    name: bedroom
    dip: "1011"
  - vendor: feit
    class: light
    name: kitchen
    address: "0110110111110101011110101111"
    feit:
      symbols: two
  - vendor: lirc
    class: fan
    name: office
    lirc:
      profile: hampton_bay_UC7078T
      frequency: 303000000
      overrides:
        pre_data: "0x0a"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Radio.Serial.Port != "/dev/ttyUSB1" {
		t.Errorf("Radio.Serial.Port = %q, want %q", cfg.Radio.Serial.Port, "/dev/ttyUSB1")
	}
	if cfg.Radio.Serial.BaudRate != 115200 {
		t.Errorf("Radio.Serial.BaudRate = %d, want default 115200", cfg.Radio.Serial.BaudRate)
	}
	if cfg.Eavesdrop.HoldThreshold != 25 {
		t.Errorf("Eavesdrop.HoldThreshold = %d, want 25", cfg.Eavesdrop.HoldThreshold)
	}
	if len(cfg.Devices) != 4 {
		t.Fatalf("len(Devices) = %d, want 4", len(cfg.Devices))
	}
	if got := cfg.Devices[3].LIRC.Overrides["pre_data"]; got != "0x0a" {
		t.Errorf("lirc override = %q, want 0x0a", got)
	}
	if got := cfg.Devices[2].Identity(); got != "0110110111110101011110101111" {
		t.Errorf("feit Identity() = %q", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "site:\n  id: x\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Radio.Driver != RadioDriverSimulated {
		t.Errorf("Radio.Driver = %q, want %q", cfg.Radio.Driver, RadioDriverSimulated)
	}
	if cfg.Eavesdrop.GapSymbols != 20 || cfg.Eavesdrop.HoldThreshold != 40 {
		t.Errorf("eavesdrop defaults = %+v", cfg.Eavesdrop)
	}
	if len(cfg.Persistence.Backends) != 1 || cfg.Persistence.Backends[0] != BackendSQLite {
		t.Errorf("Persistence.Backends = %v", cfg.Persistence.Backends)
	}
	if cfg.MQTT.CommandPrefix != "rfbridge/set" {
		t.Errorf("MQTT.CommandPrefix = %q", cfg.MQTT.CommandPrefix)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RFBRIDGE_DATABASE_PATH", "/env/state.db")
	t.Setenv("RFBRIDGE_API_PORT", "9090")
	t.Setenv("RFBRIDGE_RADIO_PORT", "/dev/ttyACM9")
	t.Setenv("RFBRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "database:\n  path: /file/state.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/env/state.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Radio.Serial.Port != "/dev/ttyACM9" {
		t.Errorf("Radio.Serial.Port = %q", cfg.Radio.Serial.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Devices = []DeviceConfig{{Vendor: VendorHunter, Class: "fan", Name: "bedroom", Dip: "1011"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "invalid port", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port"},
		{name: "port ignored when api disabled", mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }},
		{name: "unknown radio driver", mutate: func(c *Config) { c.Radio.Driver = "sdr" }, wantErr: "radio.driver"},
		{name: "serial without port", mutate: func(c *Config) {
			c.Radio.Driver = RadioDriverSerial
			c.Radio.Serial.Port = ""
		}, wantErr: "radio.serial.port"},
		{name: "undecodable eavesdrop vendor", mutate: func(c *Config) { c.Eavesdrop.Vendors = []string{"feit"} }, wantErr: "eavesdrop.vendors"},
		{name: "mqtt store without mqtt", mutate: func(c *Config) { c.Persistence.Backends = []string{BackendMQTT} }, wantErr: "requires mqtt"},
		{name: "unknown backend", mutate: func(c *Config) { c.Persistence.Backends = []string{"redis"} }, wantErr: "unknown backend"},
		{name: "bad dip", mutate: func(c *Config) { c.Devices[0].Dip = "12" }, wantErr: "dip must be 4 bits"},
		{name: "bad class", mutate: func(c *Config) { c.Devices[0].Class = "heater" }, wantErr: "class"},
		{name: "feit fan", mutate: func(c *Config) {
			c.Devices = []DeviceConfig{{Vendor: VendorFeit, Class: "fan", Name: "x", Address: strings.Repeat("1", 28)}}
		}, wantErr: "feit devices are lights"},
		{name: "lirc without frequency", mutate: func(c *Config) {
			c.Devices = []DeviceConfig{{Vendor: VendorLIRC, Class: "fan", Name: "x", LIRC: LIRCConfig{Profile: "p"}}}
		}, wantErr: "lirc.frequency"},
		{name: "duplicate device", mutate: func(c *Config) { c.Devices = append(c.Devices, c.Devices[0]) }, wantErr: "duplicate device fan/bedroom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %vs, want 30s", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %vs, want 60s", got)
	}
	if got := Millis(cfg.Radio.GuardDelay).Milliseconds(); got != 50 {
		t.Errorf("Millis(GuardDelay) = %dms, want 50ms", got)
	}
}
