// Package version resolves the API version requested by a client according
// to the deployment's configured versioning strategy.
package version

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Strategy selects where the requested version is read from. Exactly one
// strategy is active per deployment; it is configuration, not negotiated per
// request.
type Strategy string

// Supported versioning strategies
const (
	StrategyNone   Strategy = "none"
	StrategyURI    Strategy = "uri"
	StrategyQuery  Strategy = "query"
	StrategyHeader Strategy = "header"
)

// Config provides versioning configuration
type Config struct {
	Strategy Strategy `json:"strategy"`
	Default  string   `json:"default"`

	// QueryParam names the query parameter for the query strategy
	// (default "version").
	QueryParam string `json:"query_param,omitempty"`

	// Header names the request header for the header strategy
	// (default "X-API-Version").
	Header string `json:"header,omitempty"`
}

// Validate ensures the versioning configuration is usable
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyNone, StrategyURI, StrategyQuery, StrategyHeader:
	case "":
		c.Strategy = StrategyNone
	default:
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"version", "Validate", fmt.Sprintf("unknown strategy %q", c.Strategy))
	}
	if c.Default == "" {
		return errors.Wrap(errors.ErrMissingConfig, errors.KindInternal,
			"version", "Validate", "default version is required")
	}
	if c.QueryParam == "" {
		c.QueryParam = "version"
	}
	if c.Header == "" {
		c.Header = "X-API-Version"
	}
	return nil
}

// Resolver determines the requested version for each inbound request
type Resolver struct {
	cfg    Config
	logger *slog.Logger
}

// NewResolver creates a resolver from validated configuration
func NewResolver(cfg Config, logger *slog.Logger) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, logger: logger}, nil
}

// Strategy returns the active strategy
func (r *Resolver) Strategy() Strategy {
	return r.cfg.Strategy
}

// Default returns the configured default version
func (r *Resolver) Default() string {
	return r.cfg.Default
}

// Resolve produces the version for one request. uriVersion carries the path
// segment extracted by the router under the uri strategy ("" when absent).
//
// Fallback rules differ by strategy: an absent uri segment is a client error,
// an absent query parameter falls back silently, and an absent header falls
// back with a debug log so operators can spot clients that never pin a
// version. Whether the resolved version is actually supported by the target
// resource is the registry's decision.
func (r *Resolver) Resolve(req *http.Request, uriVersion string) (string, error) {
	switch r.cfg.Strategy {
	case StrategyURI:
		if uriVersion == "" {
			return "", errors.New(errors.KindMissingVersion,
				"version", "Resolve", "version segment missing from request path")
		}
		return uriVersion, nil

	case StrategyQuery:
		if v := req.URL.Query().Get(r.cfg.QueryParam); v != "" {
			return v, nil
		}
		return r.cfg.Default, nil

	case StrategyHeader:
		if v := req.Header.Get(r.cfg.Header); v != "" {
			return v, nil
		}
		r.logger.Debug("version header absent, using default",
			"header", r.cfg.Header,
			"default", r.cfg.Default,
			"path", req.URL.Path,
		)
		return r.cfg.Default, nil

	default: // StrategyNone
		return r.cfg.Default, nil
	}
}
