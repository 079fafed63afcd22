// Package errors provides the error taxonomy for the Observatory API gateway.
//
// # Overview
//
// Every failure that crosses a component boundary inside the gateway is
// classified with a Kind. The kind carries two decisions that would otherwise
// be scattered across the codebase: the HTTP status the client sees, and
// whether the reliability layer may retry the backend call that produced it.
//
// The taxonomy mirrors the gateway's external error contract:
//
//   - MissingVersion / UnsupportedVersion: version resolution failed (400)
//   - UnknownResource: no matching resource descriptor (404)
//   - MethodNotAllowed: operation not supported on the resource (405)
//   - Unreachable / Timeout: backend connectivity faults (502/504, retriable)
//   - UpstreamRejected / MalformedUpstreamResponse: backend semantic or
//     decoding failures (502, not retriable)
//   - CircuitOpen: breaker open for the backend (503, fail fast)
//   - PartialFailure / AllBackendsFailed: aggregation outcomes (502)
//   - Unauthorized / Forbidden: IAM denial (401/403)
//
// Only Unreachable and Timeout are retriable; everything else propagates
// unchanged to the client as a structured error body.
//
// # Quick Start
//
// Wrap third-party errors with classification and component context:
//
//	if err := backend.Fetch(ctx, req); err != nil {
//	    return errors.Wrap(err, errors.KindUnreachable,
//	        "httpbackend", "Fetch", "upstream request")
//	}
//
// Make retry decisions based on classification:
//
//	if errors.IsRetriable(err) {
//	    // bounded exponential backoff, see pkg/retry
//	}
//
// Map an error to its client-facing status:
//
//	status := errors.KindOf(err).HTTPStatus()
//
// # Error Wrapping Pattern
//
// All wrapping follows the standardized format:
//
//	"component.operation: action failed: %w"
//
// The classification survives wrapping chains and is recovered with KindOf,
// which uses errors.As under the hood. Context deadline expiry classifies as
// Timeout so cancellation behaves like any other connectivity fault.
package errors
