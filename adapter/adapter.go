// Package adapter defines the uniform contract between the gateway core and
// upstream data sources.
package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Operation identifies one of the gateway-internal backend operations.
type Operation string

// Supported backend operations
const (
	OpFetch   Operation = "fetch"
	OpCreate  Operation = "create"
	OpReplace Operation = "replace"
	OpPatch   Operation = "patch"
	OpDelete  Operation = "delete"
)

// Mutating reports whether the operation writes upstream state. Mutating
// operations are never fanned out to more than one adapter.
func (o Operation) Mutating() bool {
	return o != OpFetch
}

// Valid reports whether o names a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OpFetch, OpCreate, OpReplace, OpPatch, OpDelete:
		return true
	}
	return false
}

// OperationForMethod maps an HTTP method to its backend operation.
func OperationForMethod(method string) (Operation, bool) {
	switch method {
	case http.MethodGet:
		return OpFetch, true
	case http.MethodPost:
		return OpCreate, true
	case http.MethodPut:
		return OpReplace, true
	case http.MethodPatch:
		return OpPatch, true
	case http.MethodDelete:
		return OpDelete, true
	default:
		return "", false
	}
}

// Capabilities is the set of operations an adapter instance supports.
type Capabilities map[Operation]bool

// NewCapabilities builds a capability set from operation names.
func NewCapabilities(ops ...Operation) Capabilities {
	caps := make(Capabilities, len(ops))
	for _, op := range ops {
		caps[op] = true
	}
	return caps
}

// Supports reports whether the set covers an operation.
func (c Capabilities) Supports(op Operation) bool {
	return c[op]
}

// List returns the supported operations in a stable order.
func (c Capabilities) List() []Operation {
	ordered := []Operation{OpFetch, OpCreate, OpReplace, OpPatch, OpDelete}
	var out []Operation
	for _, op := range ordered {
		if c[op] {
			out = append(out, op)
		}
	}
	return out
}

// Request is the normalized subset of the request context handed to an
// adapter: the caller has already resolved resource, version, and operation.
// The timeout budget for the call travels on the context deadline.
type Request struct {
	Resource    string
	Version     string
	Operation   Operation
	PathParams  map[string]string
	QueryParams url.Values
	Body        json.RawMessage
	RequestID   string
}

// ItemID returns the path parameter addressing a single item, or "" for
// collection requests.
func (r Request) ItemID() string {
	return r.PathParams["id"]
}

// Result is the successful outcome of one adapter invocation. Failures
// travel as classified errors from the gateway taxonomy.
type Result struct {
	// Payload is a JSON-compatible value decoded from the upstream response.
	Payload any
}

// Backend is the uniform adapter interface. Implementations must be safe for
// concurrent invocation: no interior mutable state shared across calls beyond
// an immutable connection or config handle.
type Backend interface {
	// ID returns the adapter identifier used in bindings, breakers, and
	// aggregation merge keys.
	ID() string

	// Capabilities returns the operations this instance supports. Declared
	// once at construction; the registry validates bindings against it at
	// configuration load.
	Capabilities() Capabilities

	// Invoke executes one operation against the upstream source. The context
	// carries the per-call timeout budget and cooperative cancellation from
	// the aggregate deadline. Errors must be classified with the gateway
	// taxonomy: Unreachable, Timeout, UpstreamRejected, or
	// MalformedUpstreamResponse.
	Invoke(ctx context.Context, req Request) (Result, error)
}
