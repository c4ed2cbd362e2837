// Package config loads the service configuration from a config file,
// JOBCHAT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/jobchat/internal/llm"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "JOBCHAT"

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Tracing exporters
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
	TracingOTLP   = "otlp"
)

// Config is the complete service configuration
type Config struct {
	Port        int    `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	Store       string `mapstructure:"store"`

	Gemini     GeminiConfig      `mapstructure:"gemini"`
	LLM        LLMConfig         `mapstructure:"llm"`
	Interview  TemperatureConfig `mapstructure:"interview"`
	Report     TemperatureConfig `mapstructure:"report"`
	Extraction TemperatureConfig `mapstructure:"extraction"`
	RateLimit  RateLimitConfig   `mapstructure:"rate_limit"`
	Log        LogConfig         `mapstructure:"log"`
	Tracing    TracingConfig     `mapstructure:"tracing"`
}

// GeminiConfig selects the API key and the model behind each tier
type GeminiConfig struct {
	APIKey string       `mapstructure:"api_key"`
	Models ModelsConfig `mapstructure:"models"`
}

// ModelsConfig maps tiers to model names. Empty entries keep the built-in model.
type ModelsConfig struct {
	Lite     string `mapstructure:"lite"`
	Standard string `mapstructure:"standard"`
	Advanced string `mapstructure:"advanced"`
}

// LLMConfig bounds every completion call
type LLMConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// TemperatureConfig is the sampling temperature of one kind of completion
type TemperatureConfig struct {
	Temperature float32 `mapstructure:"temperature"`
}

// RateLimitConfig configures the per-client token buckets of the HTTP server
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Whitelist       []string      `mapstructure:"whitelist"`
	Blacklist       []string      `mapstructure:"blacklist"`
}

// LogConfig selects the log encoding and level
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// TracingConfig selects the span exporter
type TracingConfig struct {
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for AutomaticEnv to apply to them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	models := llm.DefaultGeminiConfig().Models
	policy := llm.DefaultRetryPolicy()

	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("store", StorePostgres)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.models.lite", models[llm.TierLite])
	v.SetDefault("gemini.models.standard", models[llm.TierStandard])
	v.SetDefault("gemini.models.advanced", models[llm.TierAdvanced])
	v.SetDefault("llm.timeout", policy.Timeout)
	v.SetDefault("llm.max_retries", policy.MaxRetries)
	v.SetDefault("llm.retry_backoff", policy.Backoff)
	v.SetDefault("interview.temperature", 0.5)
	v.SetDefault("report.temperature", 0.2)
	v.SetDefault("extraction.temperature", 0.1)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_limit", 1000)
	v.SetDefault("rate_limit.default_window", time.Minute)
	v.SetDefault("rate_limit.cleanup_interval", 5*time.Minute)
	v.SetDefault("rate_limit.whitelist", []string{})
	v.SetDefault("rate_limit.blacklist", []string{})
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
	v.SetDefault("tracing.exporter", TracingNone)
	v.SetDefault("tracing.endpoint", "")
}

// New returns a viper instance with defaults and environment bindings.
// DATABASE_URL and GEMINI_API_KEY are honoured when the prefixed variables are unset.
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("binding DATABASE_URL environment variable: %w", err)
	}
	if err := v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding GEMINI_API_KEY environment variable: %w", err)
	}
	return v, nil
}

// Load reads the config file at path (or jobchat.yaml in the working
// directory when path is empty and the file exists), decodes the merged
// configuration and validates it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("jobchat")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has usable values. Secrets are not
// required here: commands that need them check for themselves.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port)
	}
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("config error: 'store' must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("config error: 'llm.timeout' must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("config error: 'llm.max_retries' must be non-negative")
	}
	if c.LLM.RetryBackoff < 0 {
		return fmt.Errorf("config error: 'llm.retry_backoff' must be non-negative")
	}

	for name, t := range map[string]float32{
		"interview.temperature":  c.Interview.Temperature,
		"report.temperature":     c.Report.Temperature,
		"extraction.temperature": c.Extraction.Temperature,
	} {
		if t < 0 || t > 2 {
			return fmt.Errorf("config error: '%s' must be between 0 and 2, got %v", name, t)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.DefaultLimit <= 0 {
			return fmt.Errorf("config error: 'rate_limit.default_limit' must be positive")
		}
		if c.RateLimit.DefaultWindow <= 0 {
			return fmt.Errorf("config error: 'rate_limit.default_window' must be positive")
		}
	}

	switch c.Tracing.Exporter {
	case TracingNone, TracingStdout:
	case TracingOTLP:
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("config error: 'tracing.endpoint' is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("config error: unknown tracing exporter %q", c.Tracing.Exporter)
	}
	return nil
}

// ModelConfig returns the tier to model mapping for the completion service
func (c *Config) ModelConfig() *llm.Config {
	cfg := llm.DefaultGeminiConfig()
	cfg = cfg.WithModel(llm.TierLite, c.Gemini.Models.Lite)
	cfg = cfg.WithModel(llm.TierStandard, c.Gemini.Models.Standard)
	return cfg.WithModel(llm.TierAdvanced, c.Gemini.Models.Advanced)
}

// RetryPolicy returns the timeout and retry policy for completion calls
func (c *Config) RetryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{
		Timeout:    c.LLM.Timeout,
		MaxRetries: c.LLM.MaxRetries,
		Backoff:    c.LLM.RetryBackoff,
	}
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
