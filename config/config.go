// Package config loads, validates, and materializes the gateway
// configuration: server settings, version strategy, reliability policy,
// adapters, resources, and bindings.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/whiteheaddmark/Observatory-Databases/auth"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
	"github.com/whiteheaddmark/Observatory-Databases/registry"
	"github.com/whiteheaddmark/Observatory-Databases/reliability"
	"github.com/whiteheaddmark/Observatory-Databases/router"
	"github.com/whiteheaddmark/Observatory-Databases/version"
)

// Supported adapter types
const (
	AdapterHTTP     = "http"
	AdapterNATS     = "nats"
	AdapterPostgres = "postgres"
	AdapterFS       = "fs"
	AdapterMemory   = "memory"
)

// Supported auth modes
const (
	AuthNone = "none"
	AuthJWT  = "jwt"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr            string        `json:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// LoggingConfig holds the structured logging settings
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// NATSConfig holds the shared NATS connection settings
type NATSConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
}

// PostgresConfig holds the shared database pool settings
type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// AuthConfig selects and configures the authorizer
type AuthConfig struct {
	Mode string         `json:"mode"` // none, jwt
	JWT  auth.JWTConfig `json:"jwt,omitempty"`
}

// AdapterConfig declares one backend adapter instance. Options carries the
// type-specific settings and is decoded by Build.
type AdapterConfig struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Options json.RawMessage `json:"options,omitempty"`
}

// Config is the complete gateway configuration
type Config struct {
	Server      ServerConfig          `json:"server"`
	Logging     LoggingConfig         `json:"logging"`
	Version     version.Config        `json:"version"`
	Reliability reliability.Config    `json:"reliability"`
	Router      router.Config         `json:"router"`
	Auth        AuthConfig            `json:"auth"`
	NATS        NATSConfig            `json:"nats,omitempty"`
	Postgres    PostgresConfig        `json:"postgres,omitempty"`
	Adapters    []AdapterConfig       `json:"adapters"`
	Resources   []registry.Descriptor `json:"resources"`
	Bindings    []registry.Binding    `json:"bindings"`
}

// Validate checks everything that can be checked without materializing
// adapters. Binding and capability coverage is validated by the snapshot
// build, which has the real adapter capabilities in hand.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.Wrap(errors.ErrMissingConfig, errors.KindInternal,
			"config", "Validate", "server.addr is required")
	}

	if err := c.Version.Validate(); err != nil {
		return err
	}

	switch c.Auth.Mode {
	case "", AuthNone:
	case AuthJWT:
		if err := c.Auth.JWT.Validate(); err != nil {
			return err
		}
	default:
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"config", "Validate", fmt.Sprintf("unknown auth mode %q", c.Auth.Mode))
	}

	if len(c.Adapters) == 0 {
		return errors.Wrap(errors.ErrMissingConfig, errors.KindInternal,
			"config", "Validate", "at least one adapter is required")
	}
	seen := make(map[string]bool, len(c.Adapters))
	needNATS, needPG := false, false
	for _, a := range c.Adapters {
		if a.ID == "" {
			return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"config", "Validate", "adapter id is required")
		}
		if seen[a.ID] {
			return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"config", "Validate", fmt.Sprintf("duplicate adapter id %q", a.ID))
		}
		seen[a.ID] = true

		switch a.Type {
		case AdapterHTTP, AdapterFS, AdapterMemory:
		case AdapterNATS:
			needNATS = true
		case AdapterPostgres:
			needPG = true
		default:
			return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"config", "Validate", fmt.Sprintf("adapter %q has unknown type %q", a.ID, a.Type))
		}
	}

	if needNATS && c.NATS.URL == "" {
		return errors.Wrap(errors.ErrMissingConfig, errors.KindInternal,
			"config", "Validate", "nats.url is required by a nats adapter")
	}
	if needPG && c.Postgres.DSN == "" {
		return errors.Wrap(errors.ErrMissingConfig, errors.KindInternal,
			"config", "Validate", "postgres.dsn is required by a postgres adapter")
	}

	if len(c.Resources) == 0 {
		return errors.Wrap(errors.ErrMissingConfig, errors.KindInternal,
			"config", "Validate", "at least one resource is required")
	}

	return nil
}
