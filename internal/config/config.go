// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConnectionType selects how the harness reaches the Android device.
type ConnectionType string

const (
	// ConnectionLocal targets a device attached to the local ADB server,
	// addressed by its device identifier (e.g. "emulator-5554").
	ConnectionLocal ConnectionType = "Local"
	// ConnectionRemote targets a device exposed over the network as
	// "host:port", typically an emulator inside a container.
	ConnectionRemote ConnectionType = "Remote"
)

// A11yMethod selects how the device controller retrieves UI state.
type A11yMethod string

const (
	// A11yMethodForwarder uses the accessibility forwarder capability
	// wrapper to stream hierarchical snapshots off the device.
	A11yMethodForwarder A11yMethod = "forwarder"
	// A11yMethodDump falls back to a synchronous `uiautomator dump` XML
	// query through the shell boundary.
	A11yMethodDump A11yMethod = "uiautomator"
	// A11yMethodNone disables UI state retrieval entirely.
	A11yMethodNone A11yMethod = "none"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Device() DeviceConfig
	Engine() EngineConfig
	Snapshot() SnapshotConfig
	Results() ResultsConfig

	SetDeviceConnectionType(ConnectionType)
	SetEngineRPCURL(string)
	SetSnapshotMaxRetries(int)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods; decoding goes
// through the exported configTree shadow, since mapstructure cannot set
// unexported fields.
type Config struct {
	logger   LoggerConfig
	device   DeviceConfig
	engine   EngineConfig
	snapshot SnapshotConfig
	results  ResultsConfig
}

// configTree mirrors Config with exported fields for viper's unmarshaler.
type configTree struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Device   DeviceConfig   `mapstructure:"device" yaml:"device"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Results  ResultsConfig  `mapstructure:"results" yaml:"results"`
}

func (t configTree) config() *Config {
	return &Config{
		logger:   t.Logger,
		device:   t.Device,
		engine:   t.Engine,
		snapshot: t.Snapshot,
		results:  t.Results,
	}
}

var _ Interface = (*Config)(nil)

// -- Interface Method Implementations (Getters) --

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Device() DeviceConfig     { return c.device }
func (c *Config) Engine() EngineConfig     { return c.engine }
func (c *Config) Snapshot() SnapshotConfig { return c.snapshot }
func (c *Config) Results() ResultsConfig   { return c.results }

// -- Interface Method Implementations (Setters) --

func (c *Config) SetDeviceConnectionType(t ConnectionType) { c.device.ConnectionType = t }
func (c *Config) SetEngineRPCURL(u string)                 { c.engine.RPCURL = u }
func (c *Config) SetSnapshotMaxRetries(n int)              { c.snapshot.MaxRetries = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DeviceConfig describes how to reach and control the Android device.
type DeviceConfig struct {
	ConnectionType ConnectionType `mapstructure:"connection_type" yaml:"connection_type"`
	DeviceID       string         `mapstructure:"device_id" yaml:"device_id"`
	RemoteHost     string         `mapstructure:"remote_host" yaml:"remote_host"`
	RemoteADBPort  string         `mapstructure:"remote_adb_port" yaml:"remote_adb_port"`
	ConsolePort    int            `mapstructure:"console_port" yaml:"console_port"`
	GRPCPort       int            `mapstructure:"grpc_port" yaml:"grpc_port"`
	ADBPath        string         `mapstructure:"adb_path" yaml:"adb_path"`
	A11yMethod     A11yMethod     `mapstructure:"a11y_method" yaml:"a11y_method"`
	// InstallForwarder controls whether the accessibility forwarder app is
	// installed when the capability wrapper is built. Installation is skipped
	// when the app is already present on the device.
	InstallForwarder bool `mapstructure:"install_forwarder" yaml:"install_forwarder"`
}

// DeviceName returns the ADB device name for the configured connection mode:
// "host:port" in Remote mode, "emulator-<console port>" in Local mode when no
// explicit device id is set.
func (d DeviceConfig) DeviceName() string {
	if d.ConnectionType == ConnectionRemote {
		return fmt.Sprintf("%s:%s", d.RemoteHost, d.RemoteADBPort)
	}
	if d.DeviceID != "" {
		return d.DeviceID
	}
	return fmt.Sprintf("emulator-%d", d.ConsolePort)
}

// EngineConfig configures the connection to the remote automation engine.
type EngineConfig struct {
	// RPCURL is the HTTP endpoint of the automation engine. The harness
	// cannot start without it.
	RPCURL         string        `mapstructure:"rpc_url" yaml:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// MaxAttempts bounds transport delivery retries per request. There is
	// deliberately no backoff between attempts: delivery failures are assumed
	// to be immediate connection errors, not rate limits.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// SnapshotConfig tunes the accessibility snapshot polling loop.
type SnapshotConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// ResultsConfig configures the optional Postgres-backed task run store.
type ResultsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "droidbench")
	v.SetDefault("logger.log_file", "droidbench.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Device --
	v.SetDefault("device.connection_type", string(ConnectionLocal))
	v.SetDefault("device.remote_host", "localhost")
	v.SetDefault("device.remote_adb_port", "5555")
	v.SetDefault("device.console_port", 5554)
	v.SetDefault("device.grpc_port", 8554)
	v.SetDefault("device.adb_path", "~/Android/Sdk/platform-tools/adb")
	v.SetDefault("device.a11y_method", string(A11yMethodForwarder))
	v.SetDefault("device.install_forwarder", true)

	// -- Engine --
	v.SetDefault("engine.request_timeout", "120s")
	v.SetDefault("engine.max_attempts", 3)

	// -- Snapshot --
	v.SetDefault("snapshot.max_retries", 5)
	v.SetDefault("snapshot.retry_delay", "1s")

	// -- Results --
	v.SetDefault("results.enabled", false)
}

// Load decodes the viper state into a Config without validating it. Used
// directly where only a section is needed before validation can apply (the
// root command's logger bootstrap).
func Load(v *viper.Viper) (*Config, error) {
	var tree configTree
	if err := v.Unmarshal(&tree); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return tree.config(), nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind the environment variables the benchmark runner conventionally
	// sets, so the harness works without a config file.
	v.BindEnv("engine.rpc_url", "DROIDBENCH_RPC_URL")
	v.BindEnv("device.connection_type", "DROIDBENCH_CONNECTION_TYPE")
	v.BindEnv("device.device_id", "DROIDBENCH_DEVICE_ID")
	v.BindEnv("device.remote_host", "DROIDBENCH_REMOTE_HOST")
	v.BindEnv("device.remote_adb_port", "DROIDBENCH_ADB_PORT")
	v.BindEnv("results.url", "DROIDBENCH_RESULTS_URL")

	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	// The RPC URL is the one startup-fatal field: without it there is no
	// channel to the automation engine at all.
	if c.engine.RPCURL == "" {
		return fmt.Errorf("engine.rpc_url is required (set DROIDBENCH_RPC_URL)")
	}
	if c.engine.MaxAttempts <= 0 {
		return fmt.Errorf("engine.max_attempts must be a positive integer")
	}
	if c.snapshot.MaxRetries <= 0 {
		return fmt.Errorf("snapshot.max_retries must be a positive integer")
	}
	if c.snapshot.RetryDelay < 0 {
		return fmt.Errorf("snapshot.retry_delay must not be negative")
	}
	switch c.device.ConnectionType {
	case ConnectionLocal, ConnectionRemote:
	default:
		return fmt.Errorf("device.connection_type must be %q or %q", ConnectionLocal, ConnectionRemote)
	}
	switch c.device.A11yMethod {
	case A11yMethodForwarder, A11yMethodDump, A11yMethodNone:
	default:
		return fmt.Errorf("device.a11y_method must be one of forwarder, uiautomator, none")
	}
	if c.results.Enabled && c.results.URL == "" {
		return fmt.Errorf("results.url is required when results.enabled is true")
	}
	return nil
}
