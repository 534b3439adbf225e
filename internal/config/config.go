// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Components depend on this rather than the concrete struct so tests can hand
// in tailored values.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Timeouts() TimeoutConfig
	Input() InputConfig
	Network() NetworkConfig
	OTP() OTPConfig
	Report() ReportConfig
	Database() DatabaseConfig

	SetBrowserHeadless(bool)
	SetReportJUnitPath(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	TimeoutsCfg TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	InputCfg    InputConfig    `mapstructure:"input" yaml:"input"`
	NetworkCfg  NetworkConfig  `mapstructure:"network" yaml:"network"`
	OTPCfg      OTPConfig      `mapstructure:"otp" yaml:"otp"`
	ReportCfg   ReportConfig   `mapstructure:"report" yaml:"report"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Timeouts() TimeoutConfig  { return c.TimeoutsCfg }
func (c *Config) Input() InputConfig       { return c.InputCfg }
func (c *Config) Network() NetworkConfig   { return c.NetworkCfg }
func (c *Config) OTP() OTPConfig           { return c.OTPCfg }
func (c *Config) Report() ReportConfig     { return c.ReportCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }

func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetReportJUnitPath(p string) { c.ReportCfg.JUnitPath = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how the browser process is located, launched and
// connected to.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	ExecutablePath  string        `mapstructure:"executable_path" yaml:"executable_path"`
	DebugPort       int           `mapstructure:"debug_port" yaml:"debug_port"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	StartupDelay    time.Duration `mapstructure:"startup_delay" yaml:"startup_delay"`
	ConnectAttempts int           `mapstructure:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff" yaml:"connect_backoff"`
	// KeepUserDataDir leaves the temporary profile on disk after the run.
	KeepUserDataDir bool `mapstructure:"keep_user_data_dir" yaml:"keep_user_data_dir"`
}

// TimeoutConfig holds the default budgets and poll cadences for waits.
type TimeoutConfig struct {
	Navigation  time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Element     time.Duration `mapstructure:"element" yaml:"element"`
	Text        time.Duration `mapstructure:"text" yaml:"text"`
	URL         time.Duration `mapstructure:"url" yaml:"url"`
	NetworkIdle time.Duration `mapstructure:"network_idle" yaml:"network_idle"`
	ElementPoll time.Duration `mapstructure:"element_poll" yaml:"element_poll"`
	TextPoll    time.Duration `mapstructure:"text_poll" yaml:"text_poll"`
}

// InputConfig tunes synthetic input pacing.
type InputConfig struct {
	KeyDelay    time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
	ClickSettle time.Duration `mapstructure:"click_settle" yaml:"click_settle"`
}

// Network idle strategies.
const (
	IdleStrategyReadyState = "readystate"
	IdleStrategyRequests   = "requests"
)

// NetworkConfig configures network-idle detection.
type NetworkConfig struct {
	IdleStrategy string        `mapstructure:"idle_strategy" yaml:"idle_strategy"`
	IdleGrace    time.Duration `mapstructure:"idle_grace" yaml:"idle_grace"`
	IdleSettle   time.Duration `mapstructure:"idle_settle" yaml:"idle_settle"`
	QuietPeriod  time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
}

// DefaultOTPSelector is the OTP target when a script names none.
const DefaultOTPSelector = `input[type="text"]`

// OTPConfig configures one-time-password entry.
type OTPConfig struct {
	DefaultSelector string `mapstructure:"default_selector" yaml:"default_selector"`
}

// ReportConfig configures run reports.
type ReportConfig struct {
	JUnitPath string `mapstructure:"junit_path" yaml:"junit_path"`
}

// DatabaseConfig holds the database connection details for run history.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "assure")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.executable_path", "")
	v.SetDefault("browser.debug_port", 9222)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.startup_delay", "2s")
	v.SetDefault("browser.connect_attempts", 10)
	v.SetDefault("browser.connect_backoff", "500ms")
	v.SetDefault("browser.keep_user_data_dir", false)

	// -- Timeouts --
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.element", "10s")
	v.SetDefault("timeouts.text", "10s")
	v.SetDefault("timeouts.url", "10s")
	v.SetDefault("timeouts.network_idle", "5s")
	v.SetDefault("timeouts.element_poll", "100ms")
	v.SetDefault("timeouts.text_poll", "200ms")

	// -- Input --
	v.SetDefault("input.key_delay", "10ms")
	v.SetDefault("input.click_settle", "100ms")

	// -- Network --
	v.SetDefault("network.idle_strategy", IdleStrategyReadyState)
	v.SetDefault("network.idle_grace", "500ms")
	v.SetDefault("network.idle_settle", "500ms")
	v.SetDefault("network.quiet_period", "500ms")

	// -- OTP --
	v.SetDefault("otp.default_selector", DefaultOTPSelector)

	// -- Report --
	v.SetDefault("report.junit_path", "")

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Honour the conventional variable alongside the prefixed one.
	_ = v.BindEnv("database.url", "ASSURE_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.DebugPort <= 0 || c.BrowserCfg.DebugPort > 65535 {
		return fmt.Errorf("browser.debug_port must be between 1 and 65535")
	}
	if c.BrowserCfg.ConnectAttempts <= 0 {
		return fmt.Errorf("browser.connect_attempts must be a positive integer")
	}
	if c.BrowserCfg.ConnectBackoff < 0 || c.BrowserCfg.StartupDelay < 0 {
		return fmt.Errorf("browser.connect_backoff and browser.startup_delay must not be negative")
	}
	if err := c.TimeoutsCfg.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if c.InputCfg.KeyDelay < 0 || c.InputCfg.ClickSettle < 0 {
		return fmt.Errorf("input.key_delay and input.click_settle must not be negative")
	}
	switch c.NetworkCfg.IdleStrategy {
	case IdleStrategyReadyState, IdleStrategyRequests:
	default:
		return fmt.Errorf("network.idle_strategy must be %q or %q, got %q",
			IdleStrategyReadyState, IdleStrategyRequests, c.NetworkCfg.IdleStrategy)
	}
	if c.OTPCfg.DefaultSelector == "" {
		return fmt.Errorf("otp.default_selector must not be empty")
	}
	return nil
}

// Validate checks that every wait budget and poll interval is positive.
func (t *TimeoutConfig) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"navigation", t.Navigation},
		{"element", t.Element},
		{"text", t.Text},
		{"url", t.URL},
		{"network_idle", t.NetworkIdle},
		{"element_poll", t.ElementPoll},
		{"text_poll", t.TextPoll},
	}
	for _, item := range durations {
		if item.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", item.name)
		}
	}
	return nil
}
