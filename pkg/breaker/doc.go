// Package breaker provides per-backend circuit breaking for the reliability layer.
//
// # Overview
//
// Each backend adapter identifier gets one Breaker. After a configured number
// of consecutive failures the breaker opens and further calls fail fast,
// protecting both the failing backend and the gateway's latency budget. After
// a cool-down period a single probe call is admitted (half-open); its outcome
// decides whether the breaker closes again or re-opens with a fresh timer.
//
// # State Machine
//
//	Closed --threshold failures--> Open --cool-down--> HalfOpen
//	HalfOpen --probe success--> Closed
//	HalfOpen --probe failure--> Open (cool-down timer reset)
//
// # Concurrency
//
// Breaker state is shared mutable state read and updated by every concurrent
// request touching the backend. All transitions are compare-and-swap on an
// atomic state word; exactly one caller wins the transition into half-open
// and becomes the probe. No lock is held across a backend call.
package breaker
