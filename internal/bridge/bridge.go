package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/rfbridge/internal/device"
	"github.com/nerrad567/rfbridge/internal/infrastructure/mqtt"
)

// commandTimeout bounds one transmission triggered over MQTT.
const commandTimeout = 15 * time.Second

// MQTTClient is the part of mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Devices is satisfied by *device.Registry.
type Devices interface {
	Resolve(path string) (device.Node, error)
	List() []*device.Device
}

// Logger is the subset of logging.Logger used here.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Bridge.
type Options struct {
	MQTT    MQTTClient
	Topics  mqtt.Topics
	Devices Devices

	// Events feeds Home Assistant state topics. Optional.
	Events <-chan device.Event

	QoS    byte
	Retain bool

	// HomeAssistant enables discovery, state mirroring and /set commands.
	HomeAssistant bool

	// Health is optional.
	Health *HealthReporter

	Logger Logger
}

// Bridge routes MQTT commands to devices.
type Bridge struct {
	mqtt    MQTTClient
	topics  mqtt.Topics
	devices Devices
	events  <-chan device.Event
	qos     byte
	retain  bool
	hass    bool
	health  *HealthReporter
	logger  Logger

	// objects maps Home Assistant object IDs to device paths.
	objects   map[string]string
	objectsMu sync.RWMutex

	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// New validates opts.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: mqtt client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("bridge: devices are required")
	}
	b := &Bridge{
		mqtt:    opts.MQTT,
		topics:  opts.Topics,
		devices: opts.Devices,
		events:  opts.Events,
		qos:     opts.QoS,
		retain:  opts.Retain,
		hass:    opts.HomeAssistant,
		health:  opts.Health,
		logger:  opts.Logger,
		objects: make(map[string]string),
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	return b, nil
}

// Start subscribes to command topics, announces devices and starts the
// event and health loops. Call Stop to shut down.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.ctxCancel = context.WithCancel(ctx)

	for _, filter := range b.topics.CommandFilters() {
		if err := b.mqtt.Subscribe(filter, b.qos, b.handleCommand); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logger.Info("subscribed to commands", "topic", filter)
	}

	if b.hass {
		b.announce()
		if err := b.mqtt.Subscribe(b.topics.DiscoverySetFilter(), b.qos, b.handleDiscoverySet); err != nil {
			return fmt.Errorf("subscribe to discovery commands: %w", err)
		}
	}

	if b.events != nil {
		b.wg.Add(1)
		go b.eventLoop()
	}

	if b.health != nil {
		b.health.SetDeviceCount(len(b.devices.List()))
		b.health.Start(b.ctx)
	}

	b.logger.Info("bridge started", "devices", len(b.devices.List()), "homeassistant", b.hass)
	return nil
}

// Stop cancels in-flight commands and waits for the loops to exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.ctxCancel != nil {
			b.ctxCancel()
		}
		if b.health != nil {
			b.health.Stop()
		}
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// Announce republishes discovery configs, e.g. after a reconnect.
func (b *Bridge) Announce() {
	if b.hass {
		b.announce()
	}
}

func (b *Bridge) handleCommand(topic string, payload []byte) error {
	path, ok := b.topics.PathFromCommand(topic)
	if !ok {
		b.logger.Warn("ignoring malformed command topic", "topic", topic)
		return nil
	}
	b.setState(path, string(payload))
	return nil
}

func (b *Bridge) handleDiscoverySet(topic string, payload []byte) error {
	_, objectID, ok := b.topics.ParseDiscoverySet(topic)
	if !ok {
		return nil
	}
	b.objectsMu.RLock()
	path, ok := b.objects[objectID]
	b.objectsMu.RUnlock()
	if !ok {
		b.logger.Warn("command for unknown discovery object", "object_id", objectID)
		return nil
	}
	b.setState(path, string(payload))
	return nil
}

// setState applies a command. Bad input is logged, never fatal.
func (b *Bridge) setState(path, input string) {
	node, err := b.devices.Resolve(path)
	if err != nil {
		b.logger.Warn("command for unknown device", "path", path)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	b.logger.Info("setting state", "path", path, "state", input)
	state, err := node.SetState(ctx, input)
	switch {
	case errors.Is(err, device.ErrInvalidState):
		b.logger.Warn("invalid state", "path", path, "state", input)
	case err != nil:
		b.logger.Error("command failed", "path", path, "state", input, "error", err)
	default:
		b.logger.Debug("state set", "path", path, "state", state)
	}
}

func (b *Bridge) eventLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case e, ok := <-b.events:
			if !ok {
				return
			}
			if b.hass {
				b.publishDiscoveryState(e.Class, e.Path, e.State)
			}
		}
	}
}

func (b *Bridge) publishDiscoveryState(class, path, state string) {
	topic := b.topics.DiscoveryState(class, ObjectID(path))
	if err := b.mqtt.Publish(topic, []byte(state), b.qos, b.retain); err != nil {
		b.logger.Warn("failed to publish discovery state", "path", path, "error", err)
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
