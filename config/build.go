package config

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/adapter/fsbackend"
	"github.com/whiteheaddmark/Observatory-Databases/adapter/httpbackend"
	"github.com/whiteheaddmark/Observatory-Databases/adapter/memorybackend"
	"github.com/whiteheaddmark/Observatory-Databases/adapter/natsbackend"
	"github.com/whiteheaddmark/Observatory-Databases/adapter/pgbackend"
	"github.com/whiteheaddmark/Observatory-Databases/auth"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
	"github.com/whiteheaddmark/Observatory-Databases/registry"
)

// Dependencies carries the shared connections adapters are built on. The
// caller owns their lifecycle; Build only hands them to adapters.
type Dependencies struct {
	NATS     *nats.Conn
	Postgres pgbackend.Querier
}

// Build materializes the configured adapters and the registry snapshot.
// Snapshot construction validates bindings against the real adapter
// capabilities, so every capability gap surfaces here, at load time.
func Build(cfg *Config, deps Dependencies) (*registry.Snapshot, error) {
	backends := make(map[string]adapter.Backend, len(cfg.Adapters))

	for _, ac := range cfg.Adapters {
		backend, err := buildAdapter(ac, deps)
		if err != nil {
			return nil, err
		}
		backends[ac.ID] = backend
	}

	return registry.NewSnapshot(cfg.Resources, cfg.Bindings, backends)
}

func buildAdapter(ac AdapterConfig, deps Dependencies) (adapter.Backend, error) {
	options := ac.Options
	if len(options) == 0 {
		options = json.RawMessage(`{}`)
	}

	switch ac.Type {
	case AdapterHTTP:
		var bc httpbackend.Config
		if err := decodeOptions(ac, options, &bc); err != nil {
			return nil, err
		}
		bc.ID = ac.ID
		return httpbackend.New(bc)

	case AdapterNATS:
		var bc natsbackend.Config
		if err := decodeOptions(ac, options, &bc); err != nil {
			return nil, err
		}
		bc.ID = ac.ID
		return natsbackend.New(bc, deps.NATS)

	case AdapterPostgres:
		var bc pgbackend.Config
		if err := decodeOptions(ac, options, &bc); err != nil {
			return nil, err
		}
		bc.ID = ac.ID
		return pgbackend.New(bc, deps.Postgres)

	case AdapterFS:
		var bc fsbackend.Config
		if err := decodeOptions(ac, options, &bc); err != nil {
			return nil, err
		}
		bc.ID = ac.ID
		return fsbackend.New(bc)

	case AdapterMemory:
		return memorybackend.New(ac.ID), nil

	default:
		return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"config", "buildAdapter", fmt.Sprintf("unknown adapter type %q", ac.Type))
	}
}

func decodeOptions(ac AdapterConfig, options json.RawMessage, target any) error {
	if err := json.Unmarshal(options, target); err != nil {
		return errors.Wrap(err, errors.KindInternal, "config", "buildAdapter",
			fmt.Sprintf("decode options for adapter %q", ac.ID))
	}
	return nil
}

// BuildAuthorizer constructs the configured authorizer
func BuildAuthorizer(cfg *Config) (auth.Authorizer, error) {
	switch cfg.Auth.Mode {
	case "", AuthNone:
		return auth.Passthrough{}, nil
	case AuthJWT:
		return auth.NewJWT(cfg.Auth.JWT)
	default:
		return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"config", "BuildAuthorizer", fmt.Sprintf("unknown auth mode %q", cfg.Auth.Mode))
	}
}
