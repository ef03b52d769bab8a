package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus is the bridge's self-reported condition.
type HealthStatus string

// Health states.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// DefaultHealthInterval is used when HealthConfig.Interval is zero.
const DefaultHealthInterval = 30 * time.Second

const reasonDisconnected = "MQTT disconnected"

// HealthMessage is published retained on the health topic.
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version,omitempty"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	DevicesManaged int               `json:"devices_managed"`
	Statistics     map[string]uint64 `json:"statistics,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// HealthPublisher is typically an mqtt.Client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthConfig configures a HealthReporter.
type HealthConfig struct {
	BridgeID  string
	Version   string
	Topic     string
	Interval  time.Duration
	Publisher HealthPublisher
	Logger    Logger

	// Stats returns counters merged into each message.
	Stats func() map[string]uint64
	// Probe reports a local dependency failure (the state database, say);
	// a non-nil error marks the bridge degraded with the error as reason.
	Probe func(ctx context.Context) error
}

// HealthReporter publishes a HealthMessage on a fixed interval and on
// lifecycle transitions.
type HealthReporter struct {
	cfg     HealthConfig
	started time.Time
	devices atomic.Int64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter; call Start to begin.
func NewHealthReporter(cfg HealthConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &HealthReporter{cfg: cfg, started: time.Now(), done: make(chan struct{})}
}

// SetDeviceCount records how many devices the bridge exposes.
func (h *HealthReporter) SetDeviceCount(n int) {
	h.devices.Store(int64(n))
}

// Start publishes immediately and then every interval until ctx ends or
// Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.cfg.Interval)
		defer ticker.Stop()
		for {
			if err := h.publishCurrent(ctx); err != nil {
				h.cfg.Logger.Warn("publishing health failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends reporting with a final "stopping" message. Repeated calls do
// nothing.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		if err := h.publish(h.message(HealthStopping, "")); err != nil {
			h.cfg.Logger.Debug("publishing final health failed", "error", err)
		}
	})
}

// PublishStarting announces that the bridge is coming up.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(h.message(HealthStarting, "bridge starting"))
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	return h.publishCurrent(context.Background())
}

// Message builds the current health document without publishing it.
func (h *HealthReporter) Message() HealthMessage {
	return h.current(context.Background())
}

func (h *HealthReporter) publishCurrent(ctx context.Context) error {
	return h.publish(h.current(ctx))
}

func (h *HealthReporter) current(ctx context.Context) HealthMessage {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return h.message(HealthDegraded, reasonDisconnected)
	}
	if h.cfg.Probe != nil {
		if err := h.cfg.Probe(ctx); err != nil {
			return h.message(HealthDegraded, err.Error())
		}
	}
	return h.message(HealthHealthy, "")
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:         h.cfg.BridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.cfg.Version,
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
		DevicesManaged: int(h.devices.Load()),
		Reason:         reason,
	}
	if h.cfg.Stats != nil {
		msg.Statistics = h.cfg.Stats()
	}
	return msg
}

// publish sends msg retained at QoS 1. Without a publisher or topic it
// does nothing.
func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.cfg.Publisher == nil || h.cfg.Topic == "" {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}
