// devman - Device Manager Daemon
//
// This is the main entry point for the devman service. It owns the
// device registry, arbitrates IRQ/DMA/MMIO resources, runs the
// boot-time bus scan, and reconciles hot-plug changes at runtime.
// External consumers reach it over the REST/WebSocket API and, when
// configured, an MQTT event feed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/samajesteduroyaume/devman/migrations"

	"github.com/samajesteduroyaume/devman/internal/api"
	"github.com/samajesteduroyaume/devman/internal/bus"
	"github.com/samajesteduroyaume/devman/internal/bus/bluetooth"
	"github.com/samajesteduroyaume/devman/internal/bus/pci"
	"github.com/samajesteduroyaume/devman/internal/bus/platform"
	"github.com/samajesteduroyaume/devman/internal/bus/usb"
	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/drivers"
	"github.com/samajesteduroyaume/devman/internal/events"
	"github.com/samajesteduroyaume/devman/internal/infrastructure/config"
	"github.com/samajesteduroyaume/devman/internal/infrastructure/database"
	"github.com/samajesteduroyaume/devman/internal/infrastructure/influxdb"
	"github.com/samajesteduroyaume/devman/internal/infrastructure/logging"
	"github.com/samajesteduroyaume/devman/internal/infrastructure/mqtt"
	"github.com/samajesteduroyaume/devman/internal/inventory"
	"github.com/samajesteduroyaume/devman/internal/manager"
	"github.com/samajesteduroyaume/devman/internal/metrics"
	"github.com/samajesteduroyaume/devman/internal/resource"
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

// shutdownTimeout bounds the final registry teardown.
const shutdownTimeout = 30 * time.Second

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // linear component wiring
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting devman",
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

	// Open database
	db, err := database.Open(database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Resource arbiter over the configured pools
	arbiter := resource.NewArbiter(resource.Config{
		IRQLines:    cfg.Resources.IRQLines,
		DMAChannels: cfg.Resources.DMAChannels,
		MMIOBase:    cfg.Resources.MMIOBase,
		MMIOSize:    cfg.Resources.MMIOSize,
	})
	log.Info("resource arbiter initialised",
		"irq_lines", cfg.Resources.IRQLines,
		"dma_channels", cfg.Resources.DMAChannels,
		"mmio_size", cfg.Resources.MMIOSize,
	)

	// Driver factory table
	table := drivers.NewTable()
	table.SetLogger(log)

	// Device manager with persistent inventory mirror
	mgr := manager.New(arbiter, table)
	mgr.SetLogger(log)
	store := inventory.NewSQLiteStore(db.DB)
	mgr.SetRecorder(store)

	// Bus enumerators from the configured topology
	enumerators, err := buildEnumerators(cfg.Buses)
	if err != nil {
		return fmt.Errorf("building bus enumerators: %w", err)
	}
	for _, e := range enumerators {
		if regErr := mgr.RegisterEnumerator(e); regErr != nil {
			return fmt.Errorf("registering %s enumerator: %w", e.Family(), regErr)
		}
	}
	log.Info("bus enumerators registered", "families", mgr.Families())

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
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

		publisher := events.NewPublisher(mqttClient, mgr, byte(cfg.MQTT.QoS))
		mgr.RegisterListener(publisher)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var reporter *metrics.Reporter
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

		reporter = metrics.NewReporter(mgr, influxClient,
			time.Duration(cfg.InfluxDB.FlushInterval)*time.Second)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Boot-time full scan: every configured bus is walked once and the
	// registry settles before the API or hot-plug worker observe it.
	start := time.Now()
	if detectErr := mgr.DetectAll(ctx); detectErr != nil {
		return fmt.Errorf("initial device detection: %w", detectErr)
	}
	stats := mgr.GetStats()
	log.Info("initial device detection complete",
		"devices", stats.Total,
		"ready", stats.ByState[device.StateReady],
		"failed", stats.ByState[device.StateFailed],
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if influxClient != nil {
		influxClient.WriteEnumerationDuration("all", time.Since(start).Seconds(), stats.Total)
	}

	// API server; its WebSocket hub relays hot-plug events to clients
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Devices:   mgr,
		Inventory: store,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	mgr.RegisterListener(server.Hub())

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Background workers: hot-plug reconciliation, periodic bus
	// re-scan, metrics sampling.
	g, workerCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mgr.RunHotplug(workerCtx)
		return nil
	})
	if cfg.Hotplug.PollInterval > 0 {
		g.Go(func() error {
			pollBuses(workerCtx, mgr, cfg.Hotplug.PollInterval)
			return nil
		})
		log.Info("bus polling enabled", "interval", cfg.Hotplug.PollInterval)
	} else {
		log.Info("bus polling disabled, hot-plug via notifications only")
	}
	if reporter != nil {
		g.Go(func() error {
			reporter.Run(workerCtx)
			return nil
		})
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Wait for background workers so no pass races the teardown.
	if waitErr := g.Wait(); waitErr != nil {
		log.Error("background worker failed", "error", waitErr)
	}

	// Tear down the registry while the database is still open so the
	// inventory mirror records the evictions.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	mgr.Shutdown(shutdownCtx)
	log.Info("device registry drained")

	log.Info("devman stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DEVMAN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DEVMAN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildEnumerators constructs one enumerator per enabled bus family,
// backed by the static topology declared in configuration.
func buildEnumerators(cfg config.BusesConfig) ([]bus.Enumerator, error) {
	var out []bus.Enumerator

	if cfg.PCI.Enabled {
		funcs := make([]pci.Function, 0, len(cfg.PCI.Functions))
		for _, f := range cfg.PCI.Functions {
			funcs = append(funcs, pci.Function{
				Bus:      f.Bus,
				Slot:     f.Slot,
				Fn:       f.Function,
				VendorID: f.VendorID,
				DeviceID: f.DeviceID,
				Class:    f.Class,
				Subclass: f.Subclass,
				ProgIF:   f.ProgIF,
			})
		}
		out = append(out, pci.New(pci.NewStaticConfigSpace(funcs...)))
	}

	if cfg.USB.Enabled {
		ports := make([]usb.PortSummary, 0, len(cfg.USB.Ports))
		for _, p := range cfg.USB.Ports {
			summary := usb.PortSummary{
				Bus:       uint8(p.Bus),
				Port:      uint8(p.Port),
				VendorID:  p.VendorID,
				ProductID: p.ProductID,
				Class:     p.Class,
				Subclass:  p.Subclass,
				Protocol:  p.Protocol,
			}
			for _, iface := range p.Interfaces {
				summary.Interfaces = append(summary.Interfaces,
					[3]uint8{iface.Class, iface.Subclass, iface.Protocol})
			}
			ports = append(ports, summary)
		}
		out = append(out, usb.New(usb.NewStaticProber(ports...)))
	}

	if cfg.Bluetooth.Enabled {
		responses := make([]bluetooth.InquiryResponse, 0, len(cfg.Bluetooth.Devices))
		for _, d := range cfg.Bluetooth.Devices {
			addr, err := parseBDAddr(d.Address)
			if err != nil {
				return nil, fmt.Errorf("bluetooth device %q: %w", d.Address, err)
			}
			responses = append(responses, bluetooth.InquiryResponse{
				BDAddr:        addr,
				ClassOfDevice: d.ClassOfDevice,
			})
		}
		out = append(out, bluetooth.New(bluetooth.NewStaticHCI(responses...)))
	}

	if cfg.Platform.Enabled {
		units := make([]platform.Unit, 0, len(cfg.Platform.Units))
		for _, u := range cfg.Platform.Units {
			class := device.Class(u.Class)
			if !device.ValidClass(class) {
				return nil, fmt.Errorf("platform unit %q: unknown class %q", u.Name, u.Class)
			}
			units = append(units, platform.Unit{
				Name:      u.Name,
				Class:     class,
				VendorID:  u.VendorID,
				ProductID: u.ProductID,
			})
		}
		out = append(out, platform.New(units))
	}

	return out, nil
}

// parseBDAddr parses a colon-separated Bluetooth device address
// ("aa:bb:cc:dd:ee:ff") into its 48-bit form.
func parseBDAddr(s string) ([6]byte, error) {
	var addr [6]byte

	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return addr, fmt.Errorf("malformed address, want six colon-separated octets")
	}
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("octet %d: %w", i, err)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// pollBuses triggers a periodic re-scan of every registered bus family,
// catching topology changes on buses without interrupt-driven
// notification.
func pollBuses(ctx context.Context, mgr *manager.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, family := range mgr.Families() {
				mgr.Notify(family)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
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
