// Package httpbackend implements the backend adapter contract for remote
// HTTP/JSON data sources.
package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Config holds the immutable settings for one remote HTTP source
type Config struct {
	ID      string            `json:"id"`
	BaseURL string            `json:"base_url"`
	Headers map[string]string `json:"headers,omitempty"` // static headers, e.g. upstream API keys

	// Operations lists the supported operations. Empty means fetch-only,
	// the safe default for read-heavy archive sources.
	Operations []adapter.Operation `json:"operations,omitempty"`

	// MaxResponseSize bounds upstream response bodies in bytes (default 8MB).
	MaxResponseSize int64 `json:"max_response_size,omitempty"`
}

// Validate ensures the backend configuration is usable
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"httpbackend", "Validate", "id is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"httpbackend", "Validate", fmt.Sprintf("invalid base_url %q", c.BaseURL))
	}
	if c.MaxResponseSize == 0 {
		c.MaxResponseSize = 8 << 20
	}
	return nil
}

// Backend talks to one remote HTTP/JSON upstream. The http.Client is shared
// and safe for concurrent use; per-call deadlines come from the context.
type Backend struct {
	cfg    Config
	caps   adapter.Capabilities
	client *http.Client
}

// methodFor maps backend operations onto upstream HTTP methods
var methodFor = map[adapter.Operation]string{
	adapter.OpFetch:   http.MethodGet,
	adapter.OpCreate:  http.MethodPost,
	adapter.OpReplace: http.MethodPut,
	adapter.OpPatch:   http.MethodPatch,
	adapter.OpDelete:  http.MethodDelete,
}

// New creates an HTTP backend from configuration
func New(cfg Config) (*Backend, error) {
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
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
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

// Invoke executes one operation against the upstream service
func (b *Backend) Invoke(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	method, ok := methodFor[req.Operation]
	if !ok {
		return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
			"httpbackend", "Invoke", fmt.Sprintf("unsupported operation %q", req.Operation))
	}

	target := b.buildURL(req)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindInternal,
			"httpbackend", "Invoke", "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}
	for k, v := range b.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return adapter.Result{}, b.classifyTransportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, b.cfg.MaxResponseSize))
	if err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindMalformedUpstreamResponse,
			"httpbackend", "Invoke", "read response body")
	}

	if resp.StatusCode >= 400 {
		return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
			"httpbackend", "Invoke",
			fmt.Sprintf("upstream %s returned %d", b.cfg.ID, resp.StatusCode))
	}

	// 204 and empty bodies normalize to a null payload.
	if resp.StatusCode == http.StatusNoContent || len(payload) == 0 {
		return adapter.Result{}, nil
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindMalformedUpstreamResponse,
			"httpbackend", "Invoke", "decode upstream response")
	}

	return adapter.Result{Payload: value}, nil
}

// buildURL assembles the upstream URL from the base, the parent scope for
// nested resources, the resource path, item id, and pass-through query
// parameters
func (b *Backend) buildURL(req adapter.Request) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(b.cfg.BaseURL, "/"))
	if parent := req.PathParams["parent"]; parent != "" {
		sb.WriteString("/")
		sb.WriteString(parent)
		sb.WriteString("/")
		sb.WriteString(url.PathEscape(req.PathParams["parent_id"]))
	}
	sb.WriteString("/")
	sb.WriteString(req.Resource)
	if id := req.ItemID(); id != "" {
		sb.WriteString("/")
		sb.WriteString(url.PathEscape(id))
	}
	if len(req.QueryParams) > 0 {
		sb.WriteString("?")
		sb.WriteString(req.QueryParams.Encode())
	}
	return sb.String()
}

// classifyTransportError maps transport failures onto the gateway taxonomy
func (b *Backend) classifyTransportError(err error) error {
	if ctxErr := contextError(err); ctxErr != nil {
		return errors.Wrap(ctxErr, errors.KindTimeout,
			"httpbackend", "Invoke", "upstream request")
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(err, errors.KindTimeout,
			"httpbackend", "Invoke", "upstream request")
	}

	return errors.Wrap(err, errors.KindUnreachable,
		"httpbackend", "Invoke", "upstream request")
}

func contextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	if stderrors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return nil
}
