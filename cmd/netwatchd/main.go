// Netwatch Core - router reachability monitor
//
// netwatchd keeps a local device registry in step with the netwatch rules
// on a MikroTik router, polls the router for up/down status on a fixed
// interval and records every transition. Status events and on-demand
// commands travel over MQTT; transitions are optionally mirrored into
// InfluxDB for dashboards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/netwatch-core/migrations"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/config"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/database"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/netwatch-core/internal/netwatch"
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

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting netwatch core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	deviceRepo := device.NewSQLiteRepository(db.DB)
	historyRepo := device.NewSQLiteHistoryRepository(db.DB)
	settingsRepo := device.NewSQLiteSettingsRepository(db.DB)

	if seedErr := seedSystemConfig(ctx, cfg, settingsRepo, log); seedErr != nil {
		return seedErr
	}

	interval, err := pollingInterval(ctx, cfg, settingsRepo)
	if err != nil {
		return err
	}

	timeout := cfg.GetRemoteTimeout()
	dialer := mikrotik.NewAPIDialer()
	dialer.SetLogger(log)

	syncer := netwatch.NewSyncer(dialer, settingsRepo, deviceRepo, netwatch.SyncerOptions{Timeout: timeout})
	syncer.SetLogger(log)

	deviceRegistry := device.NewRegistry(deviceRepo, settingsRepo)
	deviceRegistry.SetLogger(log)
	deviceRegistry.AddHook(syncer)

	stats, err := deviceRegistry.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry initialised",
		"devices", stats.TotalDevices,
		"up", stats.ByStatus[device.StatusUp],
		"down", stats.ByStatus[device.StatusDown],
	)

	importer := netwatch.NewImporter(deviceRepo, dialer, settingsRepo, netwatch.ImporterOptions{Timeout: timeout})
	importer.SetLogger(log)

	poller := netwatch.NewPoller(dialer, deviceRepo, settingsRepo, netwatch.PollerOptions{
		Interval: interval,
		Timeout:  timeout,
	})
	poller.SetLogger(log)

	uptime := netwatch.NewUptimeReporter(historyRepo, nil)

	// MQTT carries status events and the command surface. It is optional:
	// without it the poller still runs and records history locally.
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	switch {
	case errors.Is(err, mqtt.ErrDisabled):
		log.Info("MQTT disabled, remote commands unavailable")
	case err != nil:
		return fmt.Errorf("connecting to MQTT: %w", err)
	default:
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

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publisher := netwatch.NewStatusPublisher(mqttClient)
		publisher.SetLogger(log)
		poller.AddObserver(publisher)
	}

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		poller.AddObserver(netwatch.NewInfluxRecorder(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})

	if mqttClient != nil {
		commands := netwatch.NewCommandHandler(netwatch.CommandHandlerDeps{
			Transport: mqttClient,
			Importer:  importer,
			Syncer:    syncer,
			Poller:    poller,
			Uptime:    uptime,
			Devices:   deviceRepo,
		})
		commands.SetLogger(log)
		g.Go(func() error {
			return commands.Run(gctx)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait returns after the in-flight poll cycle has finished, so the
	// deferred closes below never race a status write.
	if err := g.Wait(); err != nil {
		return fmt.Errorf("running services: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. InfluxDB (if enabled)
	// 2. MQTT (if enabled)
	// 3. Database
	log.Info("netwatch core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NETWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NETWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seedSystemConfig writes the router section of the file config as the
// stored system configuration when no row exists yet. A stored row always
// wins over the file.
func seedSystemConfig(ctx context.Context, cfg *config.Config, settings *device.SQLiteSettingsRepository, log *logging.Logger) error {
	if cfg.Router.Host == "" {
		log.Warn("router.host not set, polling will fail until a system config is stored")
		return nil
	}

	created, err := settings.EnsureDefaults(ctx, systemConfigFrom(cfg.Router))
	if err != nil {
		return fmt.Errorf("seeding system config: %w", err)
	}
	if created {
		log.Info("system config seeded from file", "router", cfg.Router.Host)
	}
	return nil
}

func systemConfigFrom(r config.RouterConfig) *device.SystemConfig {
	return &device.SystemConfig{
		RemoteHost:             r.Host,
		RemoteUser:             r.Username,
		RemoteSecret:           r.Password,
		RemotePort:             r.Port,
		PollingIntervalSeconds: r.PollingIntervalSeconds,
		DefaultTimeoutMs:       r.DefaultTimeoutMs,
		DefaultIntervalSeconds: r.DefaultIntervalSeconds,
	}
}

// pollingInterval reads the polling period once at startup. The stored
// setting wins; the file value is used until one exists.
func pollingInterval(ctx context.Context, cfg *config.Config, settings *device.SQLiteSettingsRepository) (time.Duration, error) {
	stored, err := settings.Get(ctx)
	switch {
	case errors.Is(err, device.ErrSystemConfigNotFound):
		return time.Duration(cfg.Router.PollingIntervalSeconds) * time.Second, nil
	case err != nil:
		return 0, fmt.Errorf("reading system config: %w", err)
	}
	return stored.PollingInterval(), nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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

	// The router is not checked here: an unreachable router is a per-cycle
	// failure the poller reports, not a startup error.
	return nil
}
