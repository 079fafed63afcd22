// Package breaker provides a per-backend circuit breaker with lock-free state transitions
package breaker

import (
	"sync"
	"sync/atomic"
	"time"
)

// State represents the breaker state machine position
type State int32

// Possible breaker states
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config provides breaker configuration
type Config struct {
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before opening
	CoolDown         time.Duration `json:"cool_down"`         // Open duration before a half-open probe
}

// DefaultConfig returns sensible defaults for backend breakers
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		CoolDown:         10 * time.Second,
	}
}

func (c Config) normalize() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 10 * time.Second
	}
	return c
}

// Breaker is a circuit breaker for a single backend adapter. It is read and
// updated by many concurrent requests, so all transitions use compare-and-swap
// on the state word; no lock is held across a backend call.
type Breaker struct {
	cfg Config

	state       atomic.Int32 // State
	consecutive atomic.Int32 // consecutive failures while closed
	openedAt    atomic.Int64 // unix nanos of the open transition
}

// New creates a breaker in the closed state
func New(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg.normalize()}
	b.state.Store(int32(StateClosed))
	return b
}

// State returns the current breaker state
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Allow reports whether a call may proceed. While open, calls are denied
// until the cool-down elapses; the first caller after that wins the CAS into
// half-open and becomes the single probe. Further callers are denied until
// the probe resolves.
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case StateClosed:
		return true
	case StateOpen:
		openedAt := time.Unix(0, b.openedAt.Load())
		if time.Since(openedAt) < b.cfg.CoolDown {
			return false
		}
		return b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen))
	case StateHalfOpen:
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the breaker after a
// successful half-open probe.
func (b *Breaker) RecordSuccess() {
	b.consecutive.Store(0)
	b.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed))
}

// RecordFailure counts a failure. At the configured threshold of consecutive
// failures the breaker opens; a failed half-open probe re-opens it with a
// fresh cool-down timer.
func (b *Breaker) RecordFailure() {
	if b.state.CompareAndSwap(int32(StateHalfOpen), int32(StateOpen)) {
		b.openedAt.Store(time.Now().UnixNano())
		b.consecutive.Store(0)
		return
	}

	failures := b.consecutive.Add(1)
	if int(failures) >= b.cfg.FailureThreshold {
		if b.state.CompareAndSwap(int32(StateClosed), int32(StateOpen)) {
			b.openedAt.Store(time.Now().UnixNano())
			b.consecutive.Store(0)
		}
	}
}

// Set holds one breaker per backend adapter identifier. Breakers survive
// registry snapshot swaps so failure history is not erased by a reload.
type Set struct {
	cfg Config

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewSet creates an empty breaker set with a shared configuration
func NewSet(cfg Config) *Set {
	return &Set{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for an adapter identifier, creating it on first use
func (s *Set) Get(adapterID string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[adapterID]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[adapterID]; ok {
		return b
	}
	b = New(s.cfg)
	s.breakers[adapterID] = b
	return b
}

// States returns a snapshot of every breaker state, keyed by adapter identifier
func (s *Set) States() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make(map[string]State, len(s.breakers))
	for id, b := range s.breakers {
		states[id] = b.State()
	}
	return states
}
