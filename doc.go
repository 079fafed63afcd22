// Package observatorydatabases provides a REST API gateway federating
// radio-telescope data sources behind a uniform, versioned resource surface.
//
// # Architecture
//
// The gateway is a thin, reliable routing core in front of heterogeneous
// observatory data sources (calibration archives, live telemetry services,
// measurement databases, file dumps):
//
//   - registry: resource descriptors, service bindings, and immutable
//     configuration snapshots swapped atomically on reload
//   - router: the HTTP surface, version resolution, and the uniform
//     response envelope
//   - aggregate: single, fan-out-merge, and fan-out-first-success
//     composition of backend adapter calls
//   - adapter: the uniform backend contract with HTTP, NATS, Postgres,
//     filesystem, and in-memory implementations
//   - reliability: per-call timeouts, classified-error retry, and
//     circuit breaking around every backend invocation
//   - errors: the classified error taxonomy mapped onto HTTP status codes
//
// Supporting packages cover configuration loading (config), authorization
// (auth), Prometheus metrics (metric), health endpoints (health), and the
// generic TTL cache backing response caching (pkg/cache).
//
// The gateway holds no business logic of its own: transformations beyond
// aggregation and envelope shaping belong in the upstream sources.
package observatorydatabases
