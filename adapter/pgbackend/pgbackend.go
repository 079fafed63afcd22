// Package pgbackend implements the backend adapter contract for PostgreSQL
// data sources using per-operation SQL statements.
package pgbackend

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Querier is the subset of pgxpool.Pool the backend needs. The pool is safe
// for concurrent use and acts as the immutable connection handle.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Config holds the immutable settings for one PostgreSQL source. Queries use
// pgx named arguments: @id for the item identifier, @body for the raw JSON
// request body, and one argument per declared query parameter.
type Config struct {
	ID string `json:"id"`

	// Queries maps operations to SQL. An operation without a query is not
	// a capability of this adapter.
	Queries map[adapter.Operation]string `json:"queries"`

	// QueryParams lists request query parameters passed through as named
	// arguments. Unlisted parameters are ignored, never interpolated.
	QueryParams []string `json:"query_params,omitempty"`
}

// Validate ensures the backend configuration is usable
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"pgbackend", "Validate", "id is required")
	}
	if len(c.Queries) == 0 {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"pgbackend", "Validate", "at least one operation query is required")
	}
	for op := range c.Queries {
		switch op {
		case adapter.OpFetch, adapter.OpCreate, adapter.OpReplace, adapter.OpPatch, adapter.OpDelete:
		default:
			return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"pgbackend", "Validate", fmt.Sprintf("unknown operation %q", op))
		}
	}
	return nil
}

// Backend executes configured SQL against one PostgreSQL source
type Backend struct {
	cfg  Config
	caps adapter.Capabilities
	db   Querier
}

// New creates a PostgreSQL backend from configuration and a connection pool
func New(cfg Config, db Querier) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ops := make([]adapter.Operation, 0, len(cfg.Queries))
	for op := range cfg.Queries {
		ops = append(ops, op)
	}

	return &Backend{
		cfg:  cfg,
		caps: adapter.NewCapabilities(ops...),
		db:   db,
	}, nil
}

// ID returns the adapter identifier
func (b *Backend) ID() string {
	return b.cfg.ID
}

// Capabilities returns the operation set derived from the configured queries
func (b *Backend) Capabilities() adapter.Capabilities {
	return b.caps
}

// Args builds the named argument map for one invocation
func (b *Backend) Args(req adapter.Request) pgx.NamedArgs {
	args := pgx.NamedArgs{
		"id":   req.ItemID(),
		"body": []byte(req.Body),
	}
	for _, name := range b.cfg.QueryParams {
		args[name] = req.QueryParams.Get(name)
	}
	return args
}

// Invoke executes the configured SQL for the requested operation
func (b *Backend) Invoke(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	sql, ok := b.cfg.Queries[req.Operation]
	if !ok {
		return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
			"pgbackend", "Invoke", fmt.Sprintf("no query for operation %q", req.Operation))
	}

	args := b.Args(req)

	if req.Operation == adapter.OpFetch {
		return b.fetch(ctx, sql, args, req.ItemID() != "")
	}

	tag, err := b.db.Exec(ctx, sql, args)
	if err != nil {
		return adapter.Result{}, b.classify(err)
	}
	return adapter.Result{Payload: map[string]any{"affected": tag.RowsAffected()}}, nil
}

// fetch runs a read query; item requests return a single object, collection
// requests a list
func (b *Backend) fetch(ctx context.Context, sql string, args pgx.NamedArgs, single bool) (adapter.Result, error) {
	rows, err := b.db.Query(ctx, sql, args)
	if err != nil {
		return adapter.Result{}, b.classify(err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindMalformedUpstreamResponse,
			"pgbackend", "fetch", "collect rows")
	}

	if single {
		if len(records) == 0 {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"pgbackend", "fetch", "no row matched the requested item")
		}
		return adapter.Result{Payload: records[0]}, nil
	}

	// Collections normalize to an empty list, never null.
	items := make([]any, len(records))
	for i, rec := range records {
		items[i] = rec
	}
	return adapter.Result{Payload: items}, nil
}

// classify maps pgx failures onto the gateway taxonomy
func (b *Backend) classify(err error) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.KindTimeout, "pgbackend", "Invoke", "query")
	default:
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		// The server answered; the statement was rejected.
		return errors.Wrap(err, errors.KindUpstreamRejected, "pgbackend", "Invoke", "query")
	}

	return errors.Wrap(err, errors.KindUnreachable, "pgbackend", "Invoke", "query")
}
