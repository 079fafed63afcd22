package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Loader reads the configuration file, converts human-readable durations,
// and applies environment overrides.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader with the OBSGATEWAY env prefix
func NewLoader() *Loader {
	return &Loader{envPrefix: "OBSGATEWAY"}
}

// Load reads and validates a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "config", "Load", "read config file")
	}

	cfg, err := l.Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration JSON with defaults and env overrides applied.
// Duration fields accept Go duration strings ("5s", "250ms") as well as
// nanosecond numbers.
func (l *Loader) Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "config", "Parse", "decode config JSON")
	}
	convertDurations(raw)

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "config", "Parse", "normalize config JSON")
	}

	cfg := defaults()
	if err := json.Unmarshal(normalized, cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "config", "Parse", "decode config JSON")
	}

	l.applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
	}
}

// durationKeys lists the JSON keys whose string values are parsed as Go
// durations before decoding.
var durationKeys = map[string]bool{
	"read_timeout":           true,
	"write_timeout":          true,
	"shutdown_timeout":       true,
	"reconnect_wait":         true,
	"call_timeout":           true,
	"initial_delay":          true,
	"max_delay":              true,
	"cool_down":              true,
	"cache_cleanup_interval": true,
}

// convertDurations walks the raw config and replaces duration strings with
// nanosecond numbers so time.Duration fields decode naturally.
func convertDurations(node map[string]any) {
	for key, value := range node {
		switch v := value.(type) {
		case map[string]any:
			convertDurations(v)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					convertDurations(m)
				}
			}
		case string:
			if durationKeys[key] {
				if d, err := time.ParseDuration(v); err == nil {
					node[key] = float64(d)
				}
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides for deployment
// settings that commonly differ between environments.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_ADDR"); val != "" {
		cfg.Server.Addr = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = strings.ToLower(val)
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_POSTGRES_DSN"); val != "" {
		cfg.Postgres.DSN = val
	}
	if val := os.Getenv(l.envPrefix + "_JWT_SECRET"); val != "" {
		cfg.Auth.JWT.Secret = val
	}
}
