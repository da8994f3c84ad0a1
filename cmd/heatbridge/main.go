// Heatbridge - Heatmiser neoHub integration bridge
//
// This is the main entry point for the heat bridge. It polls a Heatmiser
// neoHub for zone state, republishes it over MQTT and a REST API, and
// dispatches commands back to the hub. Designed for:
//   - Offline-first operation on the local network
//   - Retained MQTT state topics for instant subscriber catch-up
//   - Optional local temperature history and InfluxDB telemetry
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-heatbridge/migrations"

	"github.com/nerrad567/gray-logic-heatbridge/internal/api"
	"github.com/nerrad567/gray-logic-heatbridge/internal/bridge"
	"github.com/nerrad567/gray-logic-heatbridge/internal/command"
	"github.com/nerrad567/gray-logic-heatbridge/internal/history"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
	"github.com/nerrad567/gray-logic-heatbridge/internal/state"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// prunerInterval is how often expired history samples are removed.
const prunerInterval = time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting heatbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to the neoHub
	hub := neohub.New(neohub.Config{
		Host:           cfg.Hub.Host,
		Port:           cfg.Hub.Port,
		UseWebSocket:   cfg.Hub.WebSocket,
		Token:          cfg.Hub.Token,
		ConnectTimeout: cfg.GetConnectTimeout(),
		RequestTimeout: cfg.GetRequestTimeout(),
	})
	hub.SetLogger(log)
	defer func() {
		log.Info("closing hub connection")
		if closeErr := hub.Close(); closeErr != nil {
			log.Error("error closing hub connection", "error", closeErr)
		}
	}()

	// State coordinator polls the hub and owns the published snapshot
	coordinator := state.NewCoordinator(hub, cfg.GetPollInterval())
	coordinator.SetLogger(log)

	// First poll up front so every surface starts with real data. A cold
	// hub is not fatal: the coordinator retries on its poll loop.
	if refreshErr := coordinator.Refresh(ctx); refreshErr != nil {
		log.Warn("initial hub poll failed, will retry", "error", refreshErr)
	} else {
		log.Info("initial hub poll complete",
			"host", cfg.Hub.Host,
			"devices", len(coordinator.Snapshot().Devices),
		)
	}

	// Command handler shared by the MQTT and HTTP surfaces
	commands := command.NewHandler(hub, coordinator)
	commands.SetLogger(log)

	// Local temperature history (optional)
	var recorder *history.Recorder
	if cfg.History.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     true,
			BusyTimeout: 5,
		})
		if dbErr != nil {
			return fmt.Errorf("opening history database: %w", dbErr)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running history migrations: %w", migrateErr)
		}
		log.Info("history database ready",
			"path", cfg.History.Path,
			"retention_days", cfg.History.RetentionDays,
		)

		recorder = history.NewRecorder(db, cfg.History.RetentionDays)
		recorder.SetLogger(log)
		go recorder.RunPruner(ctx, prunerInterval)
	} else {
		log.Info("history recording disabled")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT surface (optional - the REST API still serves without a broker)
	var mqttClient *mqtt.Client
	var heatBridge *bridge.Bridge
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		heatBridge, err = startBridge(ctx, cfg, coordinator, commands, mqttClient, recorder, influxClient, log)
		if err != nil {
			return fmt.Errorf("starting bridge: %w", err)
		}
		defer func() {
			log.Info("stopping bridge")
			heatBridge.Stop()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// REST API
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log,
		Coordinator: coordinator,
		Commands:    commands,
		History:     historyStore(recorder),
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Background poll loop. Runs until the context is cancelled.
	go coordinator.Run(ctx)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Bridge, then MQTT (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. History database (if enabled)
	// 5. Hub connection

	log.Info("heatbridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEATBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEATBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startBridge wires the MQTT bridge over the shared coordinator and
// command handler.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	coordinator *state.Coordinator,
	commands *command.Handler,
	mqttClient *mqtt.Client,
	recorder *history.Recorder,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	opts := bridge.Options{
		Coordinator: coordinator,
		Dispatcher:  commands,
		MQTT:        mqttClient,
		Logger:      log,
		ClientID:    cfg.MQTT.Broker.ClientID,
		Version:     version,
		QoS:         byte(cfg.MQTT.QoS),
	}
	// Interface-typed fields need explicit nil checks: assigning a nil
	// *history.Recorder directly would produce a non-nil interface.
	if recorder != nil {
		opts.Recorder = recorder
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	b, err := bridge.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started", "client_id", cfg.MQTT.Broker.ClientID)
	return b, nil
}

// historyStore converts a possibly-nil recorder to the API's optional
// history interface without producing a non-nil interface around a nil
// pointer.
func historyStore(recorder *history.Recorder) api.HistoryStore {
	if recorder == nil {
		return nil
	}
	return recorder
}
