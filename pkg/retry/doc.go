// Package retry provides bounded exponential backoff for retriable backend faults.
//
// # Overview
//
// The reliability layer wraps every backend adapter call with this package.
// Retry decisions are delegated to the gateway error taxonomy: only errors
// classified Unreachable or Timeout are retried, everything else (client
// errors, upstream rejections, open circuit breakers) returns immediately so
// the router can map it to a client-facing status.
//
// # Core Functions
//
//   - Do: execute a function with retry and exponential backoff
//   - DoWithResult: same, returning both result and error
//
// # Usage
//
// Retry a backend fetch within its context deadline:
//
//	result, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (adapter.Result, error) {
//	    return backend.Fetch(ctx, req)
//	})
//
// The context deadline bounds the whole retry loop: backoff sleeps abort as
// soon as the context is cancelled, so an aggregate deadline cuts retries
// short even when the per-call budget has attempts left.
package retry
