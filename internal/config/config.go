// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Endpoints EndpointsConfig `mapstructure:"endpoints" yaml:"endpoints"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Poller    PollerConfig    `mapstructure:"poller" yaml:"poller"`
	Watcher   WatcherConfig   `mapstructure:"watcher" yaml:"watcher"`
}

// LoggerConfig controls log output, format and rotation.
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

// ColorConfig maps log levels to terminal colors for the console format.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how to reach the browser tab hosting the admin form.
// When RemoteURL is set, formsync attaches to an already-running Chrome over its
// DevTools websocket; otherwise it launches its own instance.
type BrowserConfig struct {
	RemoteURL     string        `mapstructure:"remote_url" yaml:"remote_url"`
	Headless      bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox     bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// EndpointsConfig carries the two collaborator lookup endpoints plus the
// assignment screen the empty-result feedback links to.
type EndpointsConfig struct {
	AllowedOptions   string        `mapstructure:"allowed_options" yaml:"allowed_options"`
	AssignedRoles    string        `mapstructure:"assigned_roles" yaml:"assigned_roles"`
	AssignmentScreen string        `mapstructure:"assignment_screen" yaml:"assignment_screen"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	IgnoreTLSErrors  bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	RateLimit        float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// SelectorsConfig resolves the logical DOM handles once, at configuration time,
// instead of re-deriving them ad hoc inside every function.
type SelectorsConfig struct {
	// Owner is the single-value control whose selection drives the lookups.
	Owner string `mapstructure:"owner" yaml:"owner"`
	// OptionContainer wraps the statically rendered dependent-option list.
	OptionContainer string `mapstructure:"option_container" yaml:"option_container"`
	// OptionInputs matches the individual dependent-option checkbox controls.
	OptionInputs string `mapstructure:"option_inputs" yaml:"option_inputs"`
	// RoleContainer and RoleInputs locate the separate secondary "assigned" control.
	RoleContainer string `mapstructure:"role_container" yaml:"role_container"`
	RoleInputs    string `mapstructure:"role_inputs" yaml:"role_inputs"`
}

// PollerConfig bounds the DOM readiness retries. The host admin renders widgets
// asynchronously, so every expected element may lag behind the initial load.
type PollerConfig struct {
	AttachAttempts    int           `mapstructure:"attach_attempts" yaml:"attach_attempts"`
	AttachInterval    time.Duration `mapstructure:"attach_interval" yaml:"attach_interval"`
	DiscoveryAttempts int           `mapstructure:"discovery_attempts" yaml:"discovery_attempts"`
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval" yaml:"discovery_interval"`
	FieldAttempts     int           `mapstructure:"field_attempts" yaml:"field_attempts"`
	FieldInterval     time.Duration `mapstructure:"field_interval" yaml:"field_interval"`
}

// WatcherConfig tunes the mutation watcher debounce window.
type WatcherConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formsync")
	v.SetDefault("logger.log_file", "formsync.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.launch_timeout", "60s")

	// -- Endpoints --
	v.SetDefault("endpoints.request_timeout", "10s")
	v.SetDefault("endpoints.ignore_tls_errors", false)
	v.SetDefault("endpoints.rate_limit", 4.0)
	v.SetDefault("endpoints.rate_burst", 4)

	// -- Selectors --
	// Defaults match the Django-admin shaped markup the widget was written for.
	v.SetDefault("selectors.owner", "#id_user")
	v.SetDefault("selectors.option_container", "#id_processus_field .checkbox-list")
	v.SetDefault("selectors.option_inputs", "input[name='processus']")
	v.SetDefault("selectors.role_container", "#id_roles_field .checkbox-list")
	v.SetDefault("selectors.role_inputs", "input[name='roles']")

	// -- Poller --
	v.SetDefault("poller.attach_attempts", 50)
	v.SetDefault("poller.attach_interval", "100ms")
	v.SetDefault("poller.discovery_attempts", 10)
	v.SetDefault("poller.discovery_interval", "200ms")
	// The original behavior polled for the full field every 500ms forever.
	// Bounded here so a field hidden by permissions cannot leave a runaway timer.
	v.SetDefault("poller.field_attempts", 25)
	v.SetDefault("poller.field_interval", "500ms")

	// -- Watcher --
	v.SetDefault("watcher.debounce", "250ms")
}

// Load builds a Config from the given viper instance, applying defaults first.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefault returns a Config populated with defaults only. Endpoint URLs are
// empty and must be supplied before the lookup client can be built.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the parts of the configuration that would otherwise fail
// deep inside a synchronization cycle.
func (c *Config) Validate() error {
	if err := validateEndpoint("endpoints.allowed_options", c.Endpoints.AllowedOptions); err != nil {
		return err
	}
	if err := validateEndpoint("endpoints.assigned_roles", c.Endpoints.AssignedRoles); err != nil {
		return err
	}
	if c.Endpoints.RequestTimeout <= 0 {
		return fmt.Errorf("endpoints.request_timeout must be positive")
	}
	if strings.TrimSpace(c.Selectors.Owner) == "" {
		return fmt.Errorf("selectors.owner must not be empty")
	}
	if strings.TrimSpace(c.Selectors.OptionContainer) == "" {
		return fmt.Errorf("selectors.option_container must not be empty")
	}
	if strings.TrimSpace(c.Selectors.OptionInputs) == "" {
		return fmt.Errorf("selectors.option_inputs must not be empty")
	}
	if c.Poller.DiscoveryAttempts < 1 || c.Poller.FieldAttempts < 1 {
		return fmt.Errorf("poller attempt counts must be at least 1")
	}
	return nil
}

func validateEndpoint(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}
	return nil
}
