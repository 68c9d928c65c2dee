// Package settings loads recwire's tool settings from a config file,
// RECWIRE_* environment variables and command line flags.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openfroyo/recwire/pkg/telemetry"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// RECWIRE_COMPILE_ENABLE_TIMERS=true.
const EnvPrefix = "RECWIRE"

// Settings is the root settings tree.
type Settings struct {
	Log     LogSettings     `mapstructure:"log"`
	Compile CompileSettings `mapstructure:"compile"`
	Policy  PolicySettings  `mapstructure:"policy"`
	History HistorySettings `mapstructure:"history"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Tracing TracingSettings `mapstructure:"tracing"`
	Watch   WatchSettings   `mapstructure:"watch"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// CompileSettings controls compilation.
type CompileSettings struct {
	EnableTimers    bool          `mapstructure:"enable_timers"`
	HaltOnError     bool          `mapstructure:"halt_on_error"`
	StarlarkTimeout time.Duration `mapstructure:"starlark_timeout" validate:"gt=0"`
}

// PolicySettings selects the plan policies.
type PolicySettings struct {
	Paths    []string `mapstructure:"paths"`
	Builtins bool     `mapstructure:"builtins"`
}

// HistorySettings configures the compile history database.
type HistorySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
	Keep    int    `mapstructure:"keep" validate:"gte=0"`
}

// MetricsSettings configures the metrics endpoint served by watch mode.
type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path" validate:"startswith=/"`
}

// TracingSettings configures trace export.
type TracingSettings struct {
	Exporter     string  `mapstructure:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint     string  `mapstructure:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// WatchSettings configures watch mode.
type WatchSettings struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

// flagKeys maps command line flags to settings keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"enable-timers":    "compile.enable_timers",
	"halt-on-error":    "compile.halt_on_error",
	"starlark-timeout": "compile.starlark_timeout",
	"policy":           "policy.paths",
	"builtin-policies": "policy.builtins",
	"record":           "history.path",
	"db":               "history.path",
	"keep":             "history.keep",
	"metrics-addr":     "metrics.addr",
	"trace-exporter":   "tracing.exporter",
	"trace-endpoint":   "tracing.endpoint",
	"debounce":         "watch.debounce",
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("compile.enable_timers", false)
	v.SetDefault("compile.halt_on_error", false)
	v.SetDefault("compile.starlark_timeout", 5*time.Second)
	v.SetDefault("policy.paths", []string{})
	v.SetDefault("policy.builtins", true)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "")
	v.SetDefault("history.keep", 0)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("watch.debounce", 500*time.Millisecond)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// LOG_LEVEL is honoured for compatibility with other tools.
	_ = v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")

	return v
}

// BindFlags binds every known flag that was set on the command line to its
// settings key. Call it after flags are parsed; unset flags leave the file,
// environment and defaults in charge.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("failed to bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// Load reads settings. When configFile is empty, recwire.yaml is searched
// in the working directory and $HOME/.config/recwire; a missing file is
// not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("recwire")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/recwire")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	// A history path given anywhere turns recording on.
	if s.History.Path != "" {
		s.History.Enabled = true
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings invariants.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Telemetry derives the telemetry configuration.
func (s *Settings) Telemetry(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Logging.Level = s.Log.Level
	cfg.Logging.Format = s.Log.Format

	cfg.Tracing.Enabled = s.Tracing.Exporter != "none"
	cfg.Tracing.Exporter = s.Tracing.Exporter
	cfg.Tracing.Endpoint = s.Tracing.Endpoint
	cfg.Tracing.SamplingRate = s.Tracing.SamplingRate

	cfg.Metrics.Path = s.Metrics.Path
	if s.Metrics.Addr != "" {
		cfg.Metrics.ListenAddress = s.Metrics.Addr
	}
	return cfg
}
