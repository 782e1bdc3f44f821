package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "RELAY"

// FileEnv names the environment variable pointing at an optional TOML file
const FileEnv = "RELAY_CONFIG"

// DefaultUserAgent is sent on every guest request that does not set its own
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logging   LogConfig       `toml:"logging"`
	Runtime   RuntimeConfig   `toml:"runtime"`
	Network   NetworkConfig   `toml:"network"`
	Challenge ChallengeConfig `toml:"challenge"`
	Cookies   CookieConfig    `toml:"cookies"`
	Modules   ModuleConfig    `toml:"modules"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string   `toml:"port" envconfig:"PORT"`
	Host         string   `toml:"host" envconfig:"HOST"`
	AllowOrigins []string `toml:"allow_origins" envconfig:"ALLOW_ORIGINS"`
	RateLimit    int      `toml:"rate_limit" envconfig:"RATE_LIMIT"` // requests per second per client; 0 disables
	RateBurst    int      `toml:"rate_burst" envconfig:"RATE_BURST"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `toml:"level" envconfig:"LOG_LEVEL"`
	Development bool   `toml:"development" envconfig:"LOG_DEV"`
	SinkBuffer  int    `toml:"sink_buffer" envconfig:"LOG_SINK_BUFFER"`
}

// RuntimeConfig holds module engine configuration.
type RuntimeConfig struct {
	EntryPoint    string   `toml:"entry_point" envconfig:"ENTRY_POINT"`
	InvokeTimeout Duration `toml:"invoke_timeout" envconfig:"INVOKE_TIMEOUT"`
	MaxCallStack  int      `toml:"max_call_stack" envconfig:"MAX_CALL_STACK"`
}

// NetworkConfig holds network executor configuration.
type NetworkConfig struct {
	UserAgent        string   `toml:"user_agent" envconfig:"USER_AGENT"`
	Timeout          Duration `toml:"timeout" envconfig:"REQUEST_TIMEOUT"`
	RequestsPerSec   float64  `toml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst            int      `toml:"burst" envconfig:"BURST"`
	MaxBodyBytes     int64    `toml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	BreakerFailures  uint32   `toml:"breaker_failures" envconfig:"BREAKER_FAILURES"`
	BreakerCooldown  Duration `toml:"breaker_cooldown" envconfig:"BREAKER_COOLDOWN"`
	MaxIdleConnsHost int      `toml:"max_idle_conns_per_host" envconfig:"MAX_IDLE_CONNS_PER_HOST"`
}

// ChallengeConfig holds interactive challenge configuration.
type ChallengeConfig struct {
	Timeout Duration `toml:"timeout" envconfig:"CHALLENGE_TIMEOUT"`
}

// CookieConfig holds cookie jar persistence configuration.
type CookieConfig struct {
	File string `toml:"file" envconfig:"COOKIE_FILE"`
}

// ModuleConfig holds module catalog configuration.
type ModuleConfig struct {
	Dir         string `toml:"dir" envconfig:"MODULE_DIR"`
	Pattern     string `toml:"pattern" envconfig:"MODULE_PATTERN"`
	Parallelism int    `toml:"parallelism" envconfig:"MODULE_PARALLELISM"`
}

// Duration is a time.Duration that decodes from strings like "30s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds configuration from defaults, then the file named by
// RELAY_CONFIG if set, then environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks for values the runtime cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Runtime.EntryPoint == "" {
		errs = append(errs, errors.New("runtime.entry_point must not be empty"))
	}
	if c.Runtime.InvokeTimeout.Duration < 0 {
		errs = append(errs, errors.New("runtime.invoke_timeout must not be negative"))
	}
	if c.Network.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("network.timeout must be positive"))
	}
	if c.Network.RequestsPerSec < 0 {
		errs = append(errs, errors.New("network.requests_per_second must not be negative"))
	}
	if c.Network.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("network.max_body_bytes must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Modules.Pattern == "" {
		errs = append(errs, errors.New("modules.pattern must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8000",
			Host:         "0.0.0.0",
			AllowOrigins: []string{"*"},
			RateLimit:    50,
			RateBurst:    100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			SinkBuffer:  1024,
		},
		Runtime: RuntimeConfig{
			EntryPoint:    "instance",
			InvokeTimeout: Duration{60 * time.Second},
			MaxCallStack:  1024,
		},
		Network: NetworkConfig{
			UserAgent:        DefaultUserAgent,
			Timeout:          Duration{30 * time.Second},
			RequestsPerSec:   20,
			Burst:            40,
			MaxBodyBytes:     16 << 20,
			BreakerFailures:  5,
			BreakerCooldown:  Duration{30 * time.Second},
			MaxIdleConnsHost: 10,
		},
		Challenge: ChallengeConfig{
			Timeout: Duration{2 * time.Minute},
		},
		Cookies: CookieConfig{
			File: "",
		},
		Modules: ModuleConfig{
			Dir:         "modules",
			Pattern:     "**/*.js",
			Parallelism: 4,
		},
	}
}
