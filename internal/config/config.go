// File: internal/config/config.go
package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Computer ComputerConfig `mapstructure:"computer" yaml:"computer"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Safety   SafetyConfig   `mapstructure:"safety" yaml:"safety"`
}

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

// ModelConfig configures the model transport.
type ModelConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	// APIKey should normally come from the environment (PILOT_MODEL_API_KEY
	// or OPENAI_API_KEY), never from a checked-in config file.
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ComputerKind selects the surface variant.
type ComputerKind string

const (
	ComputerBrowser ComputerKind = "browser"
	ComputerSandbox ComputerKind = "sandbox"
)

// ComputerConfig configures the controllable surface. DisplayWidth and
// DisplayHeight define the model-space reference viewport; variants whose
// physical screen differs scale coordinates against these.
type ComputerConfig struct {
	Kind          ComputerKind  `mapstructure:"kind" yaml:"kind"`
	DisplayWidth  int           `mapstructure:"display_width" yaml:"display_width"`
	DisplayHeight int           `mapstructure:"display_height" yaml:"display_height"`
	Browser       BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Sandbox       SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
}

// BrowserConfig configures the local chromedp-driven browser surface.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	StartURL          string        `mapstructure:"start_url" yaml:"start_url"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// SandboxConfig configures the remote sandbox surface.
type SandboxConfig struct {
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`
}

// ServerConfig configures the websocket server variant.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	MaxMessageSize int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PongTimeout    time.Duration `mapstructure:"pong_timeout" yaml:"pong_timeout"`
}

// SafetyConfig configures the URL blocklist applied to browser outputs and
// whether model-flagged safety checks are acknowledged without a human.
type SafetyConfig struct {
	BlockedDomains []string `mapstructure:"blocked_domains" yaml:"blocked_domains"`
	// AutoAcknowledge waves every safety check through. Off by default;
	// only for unattended runs against disposable surfaces.
	AutoAcknowledge bool `mapstructure:"auto_acknowledge" yaml:"auto_acknowledge"`
}

// globalConfig stores the loaded configuration for access from commands.
var globalConfig atomic.Pointer[Config]

// Get returns the process-wide configuration, falling back to defaults if
// Load has not run yet.
func Get() *Config {
	if cfg := globalConfig.Load(); cfg != nil {
		return cfg
	}
	cfg := NewDefaultConfig()
	globalConfig.Store(cfg)
	return cfg
}

// Set replaces the process-wide configuration.
func Set(cfg *Config) {
	globalConfig.Store(cfg)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with static defaults, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Model --
	v.SetDefault("model.name", "computer-use-preview")
	v.SetDefault("model.max_retries", 3)
	v.SetDefault("model.requests_per_minute", 60.0)

	// -- Computer --
	v.SetDefault("computer.kind", string(ComputerBrowser))
	v.SetDefault("computer.display_width", 1024)
	v.SetDefault("computer.display_height", 768)
	v.SetDefault("computer.browser.headless", true)
	v.SetDefault("computer.browser.start_url", "https://bing.com")
	v.SetDefault("computer.browser.navigation_timeout", "90s")
	v.SetDefault("computer.sandbox.request_timeout", "30s")
	v.SetDefault("computer.sandbox.session_timeout", "15m")

	// -- Server --
	v.SetDefault("server.addr", ":3333")
	v.SetDefault("server.max_message_size", 4194304)
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.pong_timeout", "60s")

	// -- Safety --
	v.SetDefault("safety.blocked_domains", []string{})
	v.SetDefault("safety.auto_acknowledge", false)
}
