// rfbridge drives RF-remote ceiling fans and lights through a sub-GHz
// transceiver, mirrors what their original remotes do, and exposes every
// device over HTTP and MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rfbridge/internal/api"
	"github.com/nerrad567/rfbridge/internal/bridge"
	"github.com/nerrad567/rfbridge/internal/device"
	"github.com/nerrad567/rfbridge/internal/eavesdrop"
	"github.com/nerrad567/rfbridge/internal/fleet"
	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/infrastructure/database"
	"github.com/nerrad567/rfbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/rfbridge/internal/infrastructure/logging"
	"github.com/nerrad567/rfbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfbridge/internal/pubsub"
	"github.com/nerrad567/rfbridge/internal/radio"
	"github.com/nerrad567/rfbridge/internal/radio/subgrfspy"
	"github.com/nerrad567/rfbridge/internal/rf/vendor"
	"github.com/nerrad567/rfbridge/internal/state"
	"github.com/nerrad567/rfbridge/migrations"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context, args []string) error {
	log := logging.Default()

	flags := flag.NewFlagSet("rfbridge", flag.ContinueOnError)
	configFlag := flags.String("config", "", "path to the YAML configuration")
	if err := flags.Parse(args); err != nil {
		return err
	}

	configPath := getConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting rfbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var mqttClient *mqtt.Client
	topics := mqtt.NewTopics(cfg.MQTT)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	store, err := buildStore(ctx, cfg, db, mqttClient, topics, log)
	if err != nil {
		return err
	}

	driver, err := openRadio(cfg.Radio)
	if err != nil {
		return fmt.Errorf("opening radio: %w", err)
	}
	arbiter, err := radio.New(radio.Options{
		Driver:         driver,
		Power:          uint8(cfg.Radio.Power),
		GuardDelay:     config.Millis(cfg.Radio.GuardDelay),
		ReceiveBackoff: config.Millis(cfg.Radio.ReceiveBackoff),
		BurstLimit:     cfg.Radio.BurstLimit,
		MaxBlock:       cfg.Radio.MaxBlock,
		Logger:         log.Component("radio"),
	})
	if err != nil {
		driver.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("creating radio arbiter: %w", err)
	}
	defer func() {
		log.Info("closing radio")
		if closeErr := arbiter.Close(); closeErr != nil {
			log.Error("error closing radio", "error", closeErr)
		}
	}()
	log.Info("radio ready", "driver", cfg.Radio.Driver)

	bus := pubsub.New(log.Component("pubsub"))
	defer bus.Close()

	registry, err := fleet.Build(cfg.Devices, fleet.Options{
		Sender:   arbiter,
		Store:    store,
		Notifier: bus,
		Logger:   log.Component("device"),
	})
	if err != nil {
		return fmt.Errorf("building devices: %w", err)
	}
	log.Info("devices registered", "devices", registry.Len())

	var recognizer *eavesdrop.Recognizer
	if cfg.Eavesdrop.Enabled {
		var capture *eavesdrop.CaptureFile
		recognizer, capture, err = buildRecognizer(cfg.Eavesdrop, arbiter, registry, log)
		if err != nil {
			return err
		}
		if capture != nil {
			defer capture.Close() //nolint:errcheck // captures are best-effort
		}
	}

	stats := statsFunc(arbiter, recognizer, bus)
	g, gctx := errgroup.WithContext(ctx)

	var metrics state.MetricsWriter
	if influxClient != nil {
		metrics = influxClient
		g.Go(func() error {
			reportCounters(gctx, influxClient, cfg, arbiter, recognizer)
			return nil
		})
	}
	history := state.NewHistoryRecorder(db.DB, metrics, log.Component("history"))
	historySub := bus.Subscribe(pubsub.DefaultBuffer)
	g.Go(func() error {
		defer historySub.Close()
		history.Run(gctx, historySub.Events())
		return nil
	})

	if recognizer != nil {
		g.Go(func() error {
			if err := recognizer.Run(gctx); err != nil && !errors.Is(err, radio.ErrClosed) {
				return fmt.Errorf("eavesdropper: %w", err)
			}
			return nil
		})
	}

	if mqttClient != nil {
		b, err := startBridge(gctx, cfg, mqttClient, topics, registry, bus, stats, db.HealthCheck, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			b.Stop()
		}()
	}

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Devices: registry,
			History: history,
			Events:  bus,
			Stats:   stats,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	err = join(g, config.Millis(cfg.Eavesdrop.JoinTimeout))
	switch {
	case errors.Is(err, errJoinTimeout):
		log.Warn("background workers did not stop in time")
	case err != nil:
		return err
	}

	log.Info("rfbridge stopped")
	return nil
}

// getConfigPath prefers the flag, then RFBRIDGE_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("RFBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// errJoinTimeout is returned when workers outlive the join timeout.
var errJoinTimeout = errors.New("timed out waiting for workers")

// join waits for g, giving up after timeout. A non-positive timeout uses
// eavesdrop.DefaultResetTimeout.
func join(g *errgroup.Group, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = eavesdrop.DefaultResetTimeout
	}
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errJoinTimeout
	}
}

func openRadio(cfg config.RadioConfig) (radio.Transceiver, error) {
	switch cfg.Driver {
	case config.RadioDriverSerial:
		return subgrfspy.Open(subgrfspy.Config{
			Port:           cfg.Serial.Port,
			BaudRate:       uint(cfg.Serial.BaudRate),
			Crystal:        uint32(cfg.Serial.CrystalHz),
			ReceiveTimeout: config.Millis(cfg.ReceiveTimeout),
		})
	default:
		return radio.NewSimulator(config.Millis(cfg.ReceiveTimeout)), nil
	}
}

// buildStore chains the configured persistence backends in order.
func buildStore(ctx context.Context, cfg *config.Config, db *database.DB, mqttClient *mqtt.Client,
	topics mqtt.Topics, log *logging.Logger,
) (device.Store, error) {
	stores := make([]device.Store, 0, len(cfg.Persistence.Backends))
	for _, backend := range cfg.Persistence.Backends {
		switch backend {
		case config.BackendFile:
			fileStore, err := state.NewFileStore(cfg.Persistence.File.Path)
			if err != nil {
				return nil, fmt.Errorf("opening file store: %w", err)
			}
			stores = append(stores, fileStore)
		case config.BackendSQLite:
			stores = append(stores, state.NewSQLiteStore(db.DB))
		case config.BackendMQTT:
			if mqttClient == nil {
				return nil, fmt.Errorf("mqtt persistence requires mqtt.enabled")
			}
			ms := state.NewMQTTStore(mqttClient, topics, mqttClient.QoS(), cfg.MQTT.Retain, log.Component("state"))
			if err := ms.Start(ctx); err != nil {
				return nil, fmt.Errorf("starting mqtt store: %w", err)
			}
			stores = append(stores, ms)
		}
	}
	log.Info("state persistence ready", "backends", cfg.Persistence.Backends)
	return state.NewChain(log.Component("state"), stores...), nil
}

func buildRecognizer(cfg config.EavesdropConfig, arbiter *radio.Arbiter, registry *device.Registry,
	log *logging.Logger,
) (*eavesdrop.Recognizer, *eavesdrop.CaptureFile, error) {
	var protocols []eavesdrop.Protocol
	for _, v := range cfg.Vendors {
		if v == config.VendorHunter {
			protocols = append(protocols, vendor.HunterProtocol{})
		}
	}

	opts := eavesdrop.Options{
		Receiver:      arbiter,
		Protocols:     protocols,
		Devices:       registry,
		Gap:           cfg.GapSymbols,
		HoldThreshold: cfg.HoldThreshold,
		PollInterval:  config.Millis(cfg.PollInterval),
		Logger:        log.Component("eavesdrop"),
	}
	var capture *eavesdrop.CaptureFile
	if cfg.CaptureFile != "" {
		var err error
		capture, err = eavesdrop.OpenCaptureFile(cfg.CaptureFile)
		if err != nil {
			return nil, nil, err
		}
		opts.Recorder = capture
		log.Info("recording eavesdrop captures", "path", cfg.CaptureFile)
	}

	r, err := eavesdrop.New(opts)
	if err != nil {
		if capture != nil {
			capture.Close() //nolint:errcheck // Best effort cleanup on error path
		}
		return nil, nil, fmt.Errorf("creating eavesdropper: %w", err)
	}
	return r, capture, nil
}

func startBridge(ctx context.Context, cfg *config.Config, client *mqtt.Client, topics mqtt.Topics,
	registry *device.Registry, bus *pubsub.Bus, stats func() map[string]uint64,
	probe func(context.Context) error, log *logging.Logger,
) (*bridge.Bridge, error) {
	health := bridge.NewHealthReporter(bridge.HealthConfig{
		BridgeID:  cfg.Site.ID,
		Version:   version,
		Topic:     topics.Health(),
		Interval:  time.Duration(cfg.MQTT.HealthPeriod) * time.Second,
		Publisher: client,
		Logger:    log.Component("health"),
		Stats:     stats,
		Probe:     probe,
	})
	if err := health.PublishStarting(); err != nil {
		log.Warn("failed to publish starting status", "error", err)
	}

	sub := bus.Subscribe(pubsub.DefaultBuffer)
	b, err := bridge.New(bridge.Options{
		MQTT:          client,
		Topics:        topics,
		Devices:       registry,
		Events:        sub.Events(),
		QoS:           client.QoS(),
		Retain:        cfg.MQTT.Retain,
		HomeAssistant: cfg.MQTT.HomeAssistant.Enabled,
		Health:        health,
		Logger:        log.Component("bridge"),
	})
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	if err := b.Start(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		b.Announce()
	})
	return b, nil
}

// statsFunc merges radio, eavesdrop and bus counters for health reports.
func statsFunc(arbiter *radio.Arbiter, recognizer *eavesdrop.Recognizer, bus *pubsub.Bus) func() map[string]uint64 {
	return func() map[string]uint64 {
		out := radioCounters(arbiter.Stats())
		if recognizer != nil {
			for k, v := range eavesdropCounters(recognizer.Stats()) {
				out["eavesdrop_"+k] = v
			}
		}
		out["events_dropped"] = bus.Dropped()
		return out
	}
}

func radioCounters(s radio.Stats) map[string]uint64 {
	return map[string]uint64{
		"transmissions": s.Transmissions,
		"captures":      s.Captures,
		"timeouts":      s.Timeouts,
		"resets":        s.Resets,
		"busy_skips":    s.BusySkips,
		"mode_switches": s.ModeSwitches,
	}
}

func eavesdropCounters(s eavesdrop.Stats) map[string]uint64 {
	return map[string]uint64{
		"polls":   s.Polls,
		"windows": s.Windows,
		"valid":   s.Valid,
		"presses": s.Presses,
		"applied": s.Applied,
		"unknown": s.Unknown,
		"skipped": s.Skipped,
	}
}

// reportCounters writes radio and eavesdrop counters to InfluxDB every
// flush interval.
func reportCounters(ctx context.Context, client *influxdb.Client, cfg *config.Config,
	arbiter *radio.Arbiter, recognizer *eavesdrop.Recognizer,
) {
	interval := time.Duration(cfg.InfluxDB.FlushInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tags := map[string]string{"site": cfg.Site.ID}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.WriteCounters(influxdb.MeasurementRadio, tags, radioCounters(arbiter.Stats()))
			if recognizer != nil {
				client.WriteCounters(influxdb.MeasurementEavesdrop, tags, eavesdropCounters(recognizer.Stats()))
			}
		}
	}
}

// healthCheck verifies the infrastructure connections that are enabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
