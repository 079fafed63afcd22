// Package natsbackend implements the backend adapter contract for NATS
// request/reply data services.
package natsbackend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Config holds the immutable settings for one NATS-backed source
type Config struct {
	ID string `json:"id"`

	// SubjectPrefix is prepended to the resource and operation to form the
	// request subject, e.g. "obs.data" -> "obs.data.calmodels.fetch".
	SubjectPrefix string `json:"subject_prefix"`

	// Operations lists the supported operations. Empty means fetch-only.
	Operations []adapter.Operation `json:"operations,omitempty"`
}

// Validate ensures the backend configuration is usable
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"natsbackend", "Validate", "id is required")
	}
	if c.SubjectPrefix == "" {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"natsbackend", "Validate", "subject_prefix is required")
	}
	return nil
}

// wireRequest is the JSON shape sent to the responder service
type wireRequest struct {
	Operation adapter.Operation `json:"operation"`
	Resource  string            `json:"resource"`
	Version   string            `json:"version"`
	ID        string            `json:"id,omitempty"`
	Query     map[string]string `json:"query,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// wireReply is the JSON shape the responder returns
type wireReply struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Backend talks to one NATS request/reply upstream. The connection handle is
// immutable after construction; nats.Conn is safe for concurrent use.
type Backend struct {
	cfg  Config
	caps adapter.Capabilities
	conn *nats.Conn
}

// New creates a NATS backend from configuration and an established connection
func New(cfg Config, conn *nats.Conn) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ops := cfg.Operations
	if len(ops) == 0 {
		ops = []adapter.Operation{adapter.OpFetch}
	}

	return &Backend{
		cfg:  cfg,
		caps: adapter.NewCapabilities(ops...),
		conn: conn,
	}, nil
}

// ID returns the adapter identifier
func (b *Backend) ID() string {
	return b.cfg.ID
}

// Capabilities returns the declared operation set
func (b *Backend) Capabilities() adapter.Capabilities {
	return b.caps
}

// Subject returns the request subject for one invocation
func (b *Backend) Subject(req adapter.Request) string {
	return fmt.Sprintf("%s.%s.%s", b.cfg.SubjectPrefix, req.Resource, req.Operation)
}

// Invoke sends one request over NATS and decodes the reply
func (b *Backend) Invoke(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	if b.conn == nil || b.conn.IsClosed() {
		return adapter.Result{}, errors.New(errors.KindUnreachable,
			"natsbackend", "Invoke", "NATS connection not available")
	}

	payload, err := json.Marshal(b.encode(req))
	if err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindInternal,
			"natsbackend", "Invoke", "encode request")
	}

	msg, err := b.conn.RequestWithContext(ctx, b.Subject(req), payload)
	if err != nil {
		return adapter.Result{}, b.classifyRequestError(err)
	}

	var reply wireReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindMalformedUpstreamResponse,
			"natsbackend", "Invoke", "decode reply")
	}

	if reply.Error != "" {
		return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
			"natsbackend", "Invoke",
			fmt.Sprintf("upstream %s rejected request: %s", b.cfg.ID, reply.Error))
	}

	if len(reply.Data) == 0 {
		return adapter.Result{}, nil
	}

	var value any
	if err := json.Unmarshal(reply.Data, &value); err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindMalformedUpstreamResponse,
			"natsbackend", "Invoke", "decode reply data")
	}

	return adapter.Result{Payload: value}, nil
}

// encode flattens the adapter request into the wire shape
func (b *Backend) encode(req adapter.Request) wireRequest {
	wire := wireRequest{
		Operation: req.Operation,
		Resource:  req.Resource,
		Version:   req.Version,
		ID:        req.ItemID(),
		Body:      req.Body,
		RequestID: req.RequestID,
	}
	if len(req.QueryParams) > 0 {
		wire.Query = make(map[string]string, len(req.QueryParams))
		for k := range req.QueryParams {
			wire.Query[k] = req.QueryParams.Get(k)
		}
	}
	return wire
}

// classifyRequestError maps NATS request failures onto the gateway taxonomy
func (b *Backend) classifyRequestError(err error) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled),
		stderrors.Is(err, nats.ErrTimeout):
		return errors.Wrap(err, errors.KindTimeout,
			"natsbackend", "Invoke", "NATS request")
	case stderrors.Is(err, nats.ErrNoResponders), stderrors.Is(err, nats.ErrConnectionClosed),
		stderrors.Is(err, nats.ErrConnectionDraining):
		return errors.Wrap(err, errors.KindUnreachable,
			"natsbackend", "Invoke", "NATS request")
	default:
		return errors.Wrap(err, errors.KindUnreachable,
			"natsbackend", "Invoke", "NATS request")
	}
}
