package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for rfbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Radio       RadioConfig       `yaml:"radio"`
	Eavesdrop   EavesdropConfig   `yaml:"eavesdrop"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Devices     []DeviceConfig    `yaml:"devices"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled       bool                `yaml:"enabled"`
	Broker        MQTTBrokerConfig    `yaml:"broker"`
	Auth          MQTTAuthConfig      `yaml:"auth"`
	QoS           int                 `yaml:"qos"`
	Reconnect     MQTTReconnectConfig `yaml:"reconnect"`
	StatePrefix   string              `yaml:"state_prefix"`
	CommandPrefix string              `yaml:"command_prefix"`
	StatusTopic   string              `yaml:"status_topic"`
	Retain        bool                `yaml:"retain"`
	HealthPeriod  int                 `yaml:"health_period"` // seconds
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// HomeAssistantConfig controls MQTT discovery.
type HomeAssistantConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Radio drivers.
const (
	RadioDriverSerial    = "serial"
	RadioDriverSimulated = "simulated"
)

// RadioConfig selects and tunes the transceiver. Durations are milliseconds.
type RadioConfig struct {
	Driver         string            `yaml:"driver"`
	Serial         SerialRadioConfig `yaml:"serial"`
	Power          int               `yaml:"power"`
	GuardDelay     int               `yaml:"guard_delay"`
	ReceiveBackoff int               `yaml:"receive_backoff"`
	ReceiveTimeout int               `yaml:"receive_timeout"`
	BurstLimit     int               `yaml:"burst_limit"`
	MaxBlock       int               `yaml:"max_block"`
}

// SerialRadioConfig describes a CC111x stick on a serial port.
type SerialRadioConfig struct {
	Port      string `yaml:"port"`
	BaudRate  int    `yaml:"baud_rate"`
	CrystalHz int    `yaml:"crystal_hz"`
}

// EavesdropConfig controls the background recognizer. Durations are milliseconds.
type EavesdropConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Vendors       []string `yaml:"vendors"`
	PollInterval  int      `yaml:"poll_interval"`
	GapSymbols    int      `yaml:"gap_symbols"`
	HoldThreshold int      `yaml:"hold_threshold"`
	JoinTimeout   int      `yaml:"join_timeout"`
	CaptureFile   string   `yaml:"capture_file"`
}

// Persistence backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMQTT   = "mqtt"
)

// PersistenceConfig lists the state stores, in read priority order.
type PersistenceConfig struct {
	Backends []string        `yaml:"backends"`
	File     FileStoreConfig `yaml:"file"`
}

// FileStoreConfig is the directory of the file store.
type FileStoreConfig struct {
	Path string `yaml:"path"`
}

// Device vendors.
const (
	VendorHunter     = "hunter"
	VendorHamptonBay = "hamptonbay"
	VendorFeit       = "feit"
	VendorLIRC       = "lirc"
)

// DeviceConfig declares one fan or light.
type DeviceConfig struct {
	Vendor string `yaml:"vendor"`
	Class  string `yaml:"class"`
	Name   string `yaml:"name"`
	Label  string `yaml:"label"`

	// Dip is the 4-bit dip switch (Hunter, Hampton Bay).
	Dip string `yaml:"dip"`

	// Address is the 28-bit remote address (Feit).
	Address string `yaml:"address"`

	// Repeat overrides the vendor's transmissions per command.
	Repeat int `yaml:"repeat"`

	Feit FeitConfig `yaml:"feit"`
	LIRC LIRCConfig `yaml:"lirc"`
}

// FeitConfig selects the Feit waveform generation.
type FeitConfig struct {
	Symbols string `yaml:"symbols"`
	Packing string `yaml:"packing"`
	Gap     int    `yaml:"gap"`
}

// LIRCConfig points at a remote definition.
type LIRCConfig struct {
	// Profile is a bundled definition name or a file path.
	Profile   string            `yaml:"profile"`
	Frequency uint32            `yaml:"frequency"`
	Channel   uint8             `yaml:"channel"`
	Overrides map[string]string `yaml:"overrides"`
}

// Identity returns the radio identity of the device.
func (d DeviceConfig) Identity() string {
	switch d.Vendor {
	case VendorFeit:
		return d.Address
	case VendorLIRC:
		// Overrides such as pre_data carry the dip switch.
		keys := make([]string, 0, len(d.LIRC.Overrides))
		for k := range d.LIRC.Overrides {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		id := d.LIRC.Profile
		for _, k := range keys {
			id += " " + k + "=" + d.LIRC.Overrides[k]
		}
		return id
	default:
		return d.Dip
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RFBRIDGE_SECTION_KEY
// For example: RFBRIDGE_DATABASE_PATH, RFBRIDGE_RADIO_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "rfbridge",
			Name: "RF Bridge",
		},
		Database: DatabaseConfig{
			Path:        "./data/rfbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rfbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			StatePrefix:   "rfbridge/state",
			CommandPrefix: "rfbridge/set",
			StatusTopic:   "rfbridge/status",
			Retain:        true,
			HealthPeriod:  30,
			HomeAssistant: HomeAssistantConfig{
				DiscoveryPrefix: "homeassistant",
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/stream",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Radio: RadioConfig{
			Driver: RadioDriverSimulated,
			Serial: SerialRadioConfig{
				Port:      "/dev/ttyACM0",
				BaudRate:  115200,
				CrystalHz: 24000000,
			},
			Power:          50,
			GuardDelay:     50,
			ReceiveBackoff: 100,
			ReceiveTimeout: 1000,
			BurstLimit:     255,
			MaxBlock:       255,
		},
		Eavesdrop: EavesdropConfig{
			Vendors:       []string{VendorHunter},
			GapSymbols:    20,
			HoldThreshold: 40,
			JoinTimeout:   2000,
		},
		Persistence: PersistenceConfig{
			Backends: []string{BackendSQLite},
			File:     FileStoreConfig{Path: "./data/state"},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RFBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("RFBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("RFBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RFBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RFBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("RFBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RFBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("RFBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Radio
	if v := os.Getenv("RFBRIDGE_RADIO_DRIVER"); v != "" {
		cfg.Radio.Driver = v
	}
	if v := os.Getenv("RFBRIDGE_RADIO_PORT"); v != "" {
		cfg.Radio.Serial.Port = v
	}

	// Logging
	if v := os.Getenv("RFBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Radio.Driver {
	case RadioDriverSimulated:
	case RadioDriverSerial:
		if c.Radio.Serial.Port == "" {
			errs = append(errs, "radio.serial.port is required for the serial driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("radio.driver %q must be %s or %s", c.Radio.Driver, RadioDriverSerial, RadioDriverSimulated))
	}
	if c.Radio.Power < 0 || c.Radio.Power > 255 {
		errs = append(errs, "radio.power must be between 0 and 255")
	}

	for _, v := range c.Eavesdrop.Vendors {
		if v != VendorHunter {
			errs = append(errs, fmt.Sprintf("eavesdrop.vendors: %q cannot be decoded", v))
		}
	}

	for _, b := range c.Persistence.Backends {
		switch b {
		case BackendFile, BackendSQLite:
		case BackendMQTT:
			if !c.MQTT.Enabled {
				errs = append(errs, "persistence backend mqtt requires mqtt.enabled")
			}
		default:
			errs = append(errs, fmt.Sprintf("persistence.backends: unknown backend %q", b))
		}
	}
	if len(c.Persistence.Backends) == 0 {
		errs = append(errs, "persistence.backends must list at least one backend")
	}

	seen := make(map[string]bool)
	for i, d := range c.Devices {
		for _, e := range d.validate() {
			errs = append(errs, fmt.Sprintf("devices[%d] (%s): %s", i, d.Name, e))
		}
		key := d.Class + "/" + d.Name
		if seen[key] {
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate device %s", i, key))
		}
		seen[key] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (d DeviceConfig) validate() []string {
	var errs []string
	if d.Name == "" || strings.Contains(d.Name, "/") {
		errs = append(errs, "name is required and may not contain '/'")
	}
	if d.Class != "fan" && d.Class != "light" {
		errs = append(errs, fmt.Sprintf("class %q must be fan or light", d.Class))
	}
	switch d.Vendor {
	case VendorHunter, VendorHamptonBay:
		if !isBits(d.Dip, 4) {
			errs = append(errs, "dip must be 4 bits")
		}
	case VendorFeit:
		if d.Class != "light" {
			errs = append(errs, "feit devices are lights")
		}
		if !isBits(d.Address, 28) {
			errs = append(errs, "address must be 28 bits")
		}
	case VendorLIRC:
		if d.LIRC.Profile == "" {
			errs = append(errs, "lirc.profile is required")
		}
		if d.LIRC.Frequency == 0 {
			errs = append(errs, "lirc.frequency is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown vendor %q", d.Vendor))
	}
	return errs
}

func isBits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if c != '0' && c != '1' {
			return false
		}
	}
	return true
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Millis converts a millisecond setting to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
