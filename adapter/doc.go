// Package adapter defines the uniform backend contract and its implementations.
//
// # Overview
//
// A Backend translates gateway-internal requests into source-specific calls
// and normalizes responses into JSON-compatible values. Each implementation
// declares the subset of operations it supports (fetch, create, replace,
// patch, delete); the service registry refuses at configuration load any
// binding whose resource advertises operations the bound adapters cannot
// cover.
//
// # Implementations
//
//   - httpbackend: remote HTTP/JSON web services
//   - natsbackend: NATS request/reply services
//   - pgbackend: PostgreSQL-backed sources with per-operation SQL
//   - fsbackend: filesystem JSON document stores (telescope archive dumps)
//   - memorybackend: in-memory store for tests and local development
//
// # Error Taxonomy
//
// Implementations classify every failure before returning it upward:
// Unreachable for network and connection faults, Timeout for deadline expiry,
// UpstreamRejected for semantic errors the upstream reported, and
// MalformedUpstreamResponse for payloads the adapter could not decode. The
// reliability layer retries only the first two.
package adapter
