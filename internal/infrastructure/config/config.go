package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for devman.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Resources ResourcesConfig `yaml:"resources"`
	Buses     BusesConfig     `yaml:"buses"`
	Hotplug   HotplugConfig   `yaml:"hotplug"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServiceConfig contains instance-specific information.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the
// hot-plug event publisher.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// InfluxDBConfig contains InfluxDB connection settings for the
// metrics writer.
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// ResourcesConfig sizes the arbiter's pools. The MMIO window is a
// single contiguous aperture carved out by the platform.
type ResourcesConfig struct {
	IRQLines    int    `yaml:"irq_lines"`
	DMAChannels int    `yaml:"dma_channels"`
	MMIOBase    uint64 `yaml:"mmio_base"`
	MMIOSize    uint64 `yaml:"mmio_size"`
}

// BusesConfig enables bus families and, for the static probe
// backends, describes the simulated hardware topology.
type BusesConfig struct {
	PCI       PCIBusConfig       `yaml:"pci"`
	USB       USBBusConfig       `yaml:"usb"`
	Bluetooth BluetoothBusConfig `yaml:"bluetooth"`
	Platform  PlatformBusConfig  `yaml:"platform"`
}

// PCIBusConfig describes the PCI bus and its static topology.
type PCIBusConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Functions []PCIFunctionConfig `yaml:"functions"`
}

// PCIFunctionConfig is one function in the static PCI topology.
type PCIFunctionConfig struct {
	Bus      uint8  `yaml:"bus"`
	Slot     uint8  `yaml:"slot"`
	Function uint8  `yaml:"function"`
	VendorID uint16 `yaml:"vendor_id"`
	DeviceID uint16 `yaml:"device_id"`
	Class    uint8  `yaml:"class"`
	Subclass uint8  `yaml:"subclass"`
	ProgIF   uint8  `yaml:"prog_if"`
}

// USBBusConfig describes the USB bus and its static topology.
type USBBusConfig struct {
	Enabled bool            `yaml:"enabled"`
	Ports   []USBPortConfig `yaml:"ports"`
}

// USBPortConfig is one attached device in the static USB topology.
type USBPortConfig struct {
	Bus        int                  `yaml:"bus"`
	Port       int                  `yaml:"port"`
	VendorID   uint16               `yaml:"vendor_id"`
	ProductID  uint16               `yaml:"product_id"`
	Class      uint8                `yaml:"class"`
	Subclass   uint8                `yaml:"subclass"`
	Protocol   uint8                `yaml:"protocol"`
	Interfaces []USBInterfaceConfig `yaml:"interfaces"`
}

// USBInterfaceConfig is one interface triad of a composite device.
type USBInterfaceConfig struct {
	Class    uint8 `yaml:"class"`
	Subclass uint8 `yaml:"subclass"`
	Protocol uint8 `yaml:"protocol"`
}

// BluetoothBusConfig describes the Bluetooth adapter and the devices
// its static inquiry backend reports.
type BluetoothBusConfig struct {
	Enabled bool                    `yaml:"enabled"`
	Devices []BluetoothDeviceConfig `yaml:"devices"`
}

// BluetoothDeviceConfig is one device in the static inquiry set.
type BluetoothDeviceConfig struct {
	Address       string `yaml:"address"` // aa:bb:cc:dd:ee:ff
	ClassOfDevice uint32 `yaml:"class_of_device"`
}

// PlatformBusConfig describes the fixed platform device table.
type PlatformBusConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Units   []PlatformUnitConfig `yaml:"units"`
}

// PlatformUnitConfig is one entry in the platform device table.
type PlatformUnitConfig struct {
	Name      string `yaml:"name"`
	Class     string `yaml:"class"`
	VendorID  uint32 `yaml:"vendor_id"`
	ProductID uint32 `yaml:"product_id"`
}

// HotplugConfig controls the reconciliation worker.
type HotplugConfig struct {
	// PollInterval re-scans every enabled bus periodically, catching
	// changes on buses without interrupt-driven notification. 0
	// disables polling; the worker then only reacts to Notify.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains JWT token settings for the API.
type JWTConfig struct {
	// Enabled turns on bearer-token checks for mutating endpoints.
	Enabled        bool   `yaml:"enabled"`
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DEVMAN_SECTION_KEY
// For example: DEVMAN_DATABASE_PATH, DEVMAN_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Pool size defaults. The MMIO aperture matches the platform's
// conventional 64 MiB window below the firmware region.
const (
	defaultIRQLines    = 16
	defaultDMAChannels = 8
	defaultMMIOBase    = 0xF000_0000
	defaultMMIOSize    = 64 << 20
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "devman-001",
			Name: "devman",
		},
		Database: DatabaseConfig{
			Path:        "./data/devman.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "devman",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Resources: ResourcesConfig{
			IRQLines:    defaultIRQLines,
			DMAChannels: defaultDMAChannels,
			MMIOBase:    defaultMMIOBase,
			MMIOSize:    defaultMMIOSize,
		},
		Buses: BusesConfig{
			PCI:      PCIBusConfig{Enabled: true},
			USB:      USBBusConfig{Enabled: true},
			Platform: PlatformBusConfig{Enabled: true},
		},
		Hotplug: HotplugConfig{
			PollInterval: 2 * time.Second,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 100,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DEVMAN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DEVMAN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DEVMAN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DEVMAN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DEVMAN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DEVMAN_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("DEVMAN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// JWT secret (always override in production)
	if v := os.Getenv("DEVMAN_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Service validation
	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Resource pool validation
	if c.Resources.IRQLines <= 0 {
		errs = append(errs, "resources.irq_lines must be positive")
	}
	if c.Resources.DMAChannels <= 0 {
		errs = append(errs, "resources.dma_channels must be positive")
	}
	if c.Resources.MMIOSize == 0 {
		errs = append(errs, "resources.mmio_size must be positive")
	}
	if c.Resources.MMIOBase+c.Resources.MMIOSize < c.Resources.MMIOBase {
		errs = append(errs, "resources.mmio window overflows the address space")
	}

	// Hotplug validation
	if c.Hotplug.PollInterval < 0 {
		errs = append(errs, "hotplug.poll_interval must not be negative")
	}

	// JWT secret is required whenever token checks are enabled. Weak
	// secrets allow forged tokens against an interface that can evict
	// live devices.
	const minJWTSecretLength = 32
	if c.Security.JWT.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set DEVMAN_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
