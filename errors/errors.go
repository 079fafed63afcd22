// Package errors provides the gateway error taxonomy. Every failure that can
// cross a component boundary is classified with a Kind that determines the
// HTTP status returned to the client and whether the reliability layer may
// retry the operation.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway error for HTTP mapping and retry decisions.
type Kind int

const (
	// KindInternal is the fallback for unclassified failures.
	KindInternal Kind = iota
	// KindMissingVersion indicates the URI versioning strategy found no
	// version segment in the request path.
	KindMissingVersion
	// KindUnsupportedVersion indicates an explicitly supplied version that
	// the resource does not support.
	KindUnsupportedVersion
	// KindUnknownResource indicates no resource descriptor matched.
	KindUnknownResource
	// KindMethodNotAllowed indicates the resource does not support the
	// requested operation.
	KindMethodNotAllowed
	// KindUnreachable indicates a backend network or connection failure.
	KindUnreachable
	// KindTimeout indicates a backend call exceeded its deadline.
	KindTimeout
	// KindUpstreamRejected indicates the backend returned a semantic error.
	KindUpstreamRejected
	// KindMalformedUpstreamResponse indicates the adapter could not decode
	// what the backend returned.
	KindMalformedUpstreamResponse
	// KindCircuitOpen indicates the breaker for the backend is open.
	KindCircuitOpen
	// KindPartialFailure indicates a required adapter failed during
	// fan-out-merge aggregation.
	KindPartialFailure
	// KindAllBackendsFailed indicates every adapter failed during
	// fan-out-first-success aggregation.
	KindAllBackendsFailed
	// KindUnauthorized indicates the request carried no valid credentials.
	KindUnauthorized
	// KindForbidden indicates valid credentials without sufficient scope.
	KindForbidden
)

// String returns the wire name of the kind, as used in error bodies.
func (k Kind) String() string {
	switch k {
	case KindMissingVersion:
		return "MissingVersion"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindUnknownResource:
		return "UnknownResource"
	case KindMethodNotAllowed:
		return "MethodNotAllowed"
	case KindUnreachable:
		return "Unreachable"
	case KindTimeout:
		return "Timeout"
	case KindUpstreamRejected:
		return "UpstreamRejected"
	case KindMalformedUpstreamResponse:
		return "MalformedUpstreamResponse"
	case KindCircuitOpen:
		return "CircuitOpen"
	case KindPartialFailure:
		return "PartialFailure"
	case KindAllBackendsFailed:
		return "AllBackendsFailed"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	default:
		return "Internal"
	}
}

// HTTPStatus maps the kind to its HTTP-semantic status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingVersion, KindUnsupportedVersion:
		return http.StatusBadRequest
	case KindUnknownResource:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindUnreachable:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamRejected, KindMalformedUpstreamResponse:
		return http.StatusBadGateway
	case KindCircuitOpen:
		return http.StatusServiceUnavailable
	case KindPartialFailure, KindAllBackendsFailed:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Retriable reports whether the reliability layer may retry a call that
// failed with this kind. Only backend connectivity faults qualify.
func (k Kind) Retriable() bool {
	return k == KindUnreachable || k == KindTimeout
}

// Configuration errors surfaced at load time. These are fatal, never mapped
// to a client response.
var (
	ErrInvalidConfig = stderrors.New("invalid configuration")
	ErrMissingConfig = stderrors.New("missing required configuration")
)

// GatewayError carries a classified error across component boundaries.
type GatewayError struct {
	Kind      Kind
	Err       error
	Message   string
	Component string
	Operation string

	// FailedAdapters lists the adapter identifiers that failed, populated
	// for PartialFailure and AllBackendsFailed.
	FailedAdapters []string
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// New creates a classified error with context following the pattern
// "component.operation: message".
func New(kind Kind, component, operation, message string) error {
	return &GatewayError{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   fmt.Sprintf("%s.%s: %s", component, operation, message),
	}
}

// Wrap classifies an existing error with context following the pattern
// "component.operation: action failed: %w".
func Wrap(err error, kind Kind, component, operation, action string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s.%s: %s failed: %w", component, operation, action, err)
	return &GatewayError{
		Kind:      kind,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: operation,
	}
}

// WithFailedAdapters attaches the failed adapter identifier list to a
// classified error, creating one when err is not already classified.
func WithFailedAdapters(err error, kind Kind, adapters []string) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		ge.FailedAdapters = adapters
		return err
	}
	return &GatewayError{
		Kind:           kind,
		Err:            err,
		Message:        err.Error(),
		FailedAdapters: adapters,
	}
}

// KindOf returns the kind of an error. Context cancellation and deadline
// expiry classify as Timeout; everything unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge.Kind
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// IsRetriable reports whether the error may be retried by the reliability
// layer. Unclassified errors are never retried.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge.Kind.Retriable()
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// FailedAdapters extracts the failed adapter identifiers from an error, or
// nil when the error carries none.
func FailedAdapters(err error) []string {
	var ge *GatewayError
	if stderrors.As(err, &ge) {
		return ge.FailedAdapters
	}
	return nil
}
