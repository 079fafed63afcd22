// Package registry maps logical resource names and versions to backend
// adapter bindings via immutable, atomically swapped snapshots.
package registry

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// CachePolicy declares the cacheability of a resource's successful
// responses. Every response declares cacheability explicitly; the zero value
// means "not cacheable", never "unspecified".
type CachePolicy struct {
	Cacheable     bool `json:"cacheable"`
	MaxAgeSeconds int  `json:"max_age_seconds,omitempty"`
}

// Descriptor describes one logical resource exposed by the gateway.
// Immutable after registration: created at configuration load, replaced only
// by a snapshot swap.
type Descriptor struct {
	// Name is the logical resource name, also the URI collection segment.
	Name string `json:"name"`

	// Parent names the resource this one nests under, e.g. measurements
	// under calmodels, exposed as /calmodels/{id}/measurements.
	Parent string `json:"parent,omitempty"`

	// Operations lists the operations the resource advertises.
	Operations []adapter.Operation `json:"operations"`

	// Versions lists the supported API versions.
	Versions []string `json:"versions"`

	// Cache declares the response cache policy.
	Cache CachePolicy `json:"cache"`
}

// SupportsOperation reports whether the descriptor advertises an operation
func (d *Descriptor) SupportsOperation(op adapter.Operation) bool {
	for _, o := range d.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// SupportsVersion reports whether the descriptor supports a version
func (d *Descriptor) SupportsVersion(version string) bool {
	for _, v := range d.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// Strategy selects how multiple bound adapters are composed
type Strategy string

// Supported aggregation strategies
const (
	StrategySingle          Strategy = "single"
	StrategyFanOutMerge     Strategy = "fan-out-merge"
	StrategyFanOutFirstWins Strategy = "fan-out-first-success"
)

// Target binds one adapter into a service binding
type Target struct {
	// Adapter is the backend adapter identifier.
	Adapter string `json:"adapter"`

	// Required marks a fan-out-merge adapter whose failure fails the whole
	// aggregate. Optional adapters degrade to a warning.
	Required bool `json:"required"`

	// MergeKey overrides the key the adapter's payload is merged under in
	// fan-out-merge. Defaults to the adapter identifier. When several
	// targets declare the same key, the first-listed target wins.
	MergeKey string `json:"merge_key,omitempty"`
}

// Key returns the merge key for this target
func (t Target) Key() string {
	if t.MergeKey != "" {
		return t.MergeKey
	}
	return t.Adapter
}

// Binding associates a resource and version with adapters and an
// aggregation strategy. Owned by the registry, mutated only by reload.
type Binding struct {
	Resource string   `json:"resource"`
	Version  string   `json:"version"`
	Strategy Strategy `json:"strategy"`
	Targets  []Target `json:"targets"`
}

// Resolved is the outcome of a successful registry lookup
type Resolved struct {
	Descriptor *Descriptor
	Binding    *Binding

	// Backends holds the bound adapters in declared target order.
	Backends []adapter.Backend
}

type bindingKey struct {
	resource string
	version  string
}

// Snapshot is an immutable view of the configured resources, bindings, and
// adapters. In-flight requests hold one snapshot for their whole lifetime,
// so a reload can never present a partial view.
type Snapshot struct {
	descriptors map[string]*Descriptor
	bindings    map[bindingKey]*Binding
	backends    map[string]adapter.Backend
}

// NewSnapshot validates the configuration and builds an immutable snapshot.
// Every violation here is a fatal configuration error, not a runtime fault.
func NewSnapshot(descriptors []Descriptor, bindings []Binding, backends map[string]adapter.Backend) (*Snapshot, error) {
	s := &Snapshot{
		descriptors: make(map[string]*Descriptor, len(descriptors)),
		bindings:    make(map[bindingKey]*Binding, len(bindings)),
		backends:    backends,
	}

	for i := range descriptors {
		d := &descriptors[i]
		if d.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"registry", "NewSnapshot", "resource name is required")
		}
		if _, dup := s.descriptors[d.Name]; dup {
			return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"registry", "NewSnapshot", fmt.Sprintf("duplicate resource %q", d.Name))
		}
		if len(d.Operations) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"registry", "NewSnapshot", fmt.Sprintf("resource %q declares no operations", d.Name))
		}
		for _, op := range d.Operations {
			if !op.Valid() {
				return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
					"registry", "NewSnapshot",
					fmt.Sprintf("resource %q declares unknown operation %q", d.Name, op))
			}
		}
		if len(d.Versions) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"registry", "NewSnapshot", fmt.Sprintf("resource %q declares no versions", d.Name))
		}
		s.descriptors[d.Name] = d
	}

	// Parent references must themselves be registered resources.
	for _, d := range s.descriptors {
		if d.Parent != "" {
			if _, ok := s.descriptors[d.Parent]; !ok {
				return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
					"registry", "NewSnapshot",
					fmt.Sprintf("resource %q nests under unknown resource %q", d.Name, d.Parent))
			}
		}
	}

	for i := range bindings {
		b := &bindings[i]
		if err := s.validateBinding(b); err != nil {
			return nil, err
		}
		s.bindings[bindingKey{b.Resource, b.Version}] = b
	}

	// Every advertised version needs a binding, or the version would be
	// registered yet unroutable.
	for _, d := range s.descriptors {
		for _, v := range d.Versions {
			if _, ok := s.bindings[bindingKey{d.Name, v}]; !ok {
				return nil, errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
					"registry", "NewSnapshot",
					fmt.Sprintf("resource %q version %q has no binding", d.Name, v))
			}
		}
	}

	return s, nil
}

// validateBinding enforces the binding invariants at load time
func (s *Snapshot) validateBinding(b *Binding) error {
	d, ok := s.descriptors[b.Resource]
	if !ok {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"registry", "validateBinding",
			fmt.Sprintf("binding references unknown resource %q", b.Resource))
	}
	if !d.SupportsVersion(b.Version) {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"registry", "validateBinding",
			fmt.Sprintf("binding for %q references unsupported version %q", b.Resource, b.Version))
	}
	if _, dup := s.bindings[bindingKey{b.Resource, b.Version}]; dup {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"registry", "validateBinding",
			fmt.Sprintf("duplicate binding for %q version %q", b.Resource, b.Version))
	}

	switch b.Strategy {
	case StrategySingle:
		if len(b.Targets) != 1 {
			return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"registry", "validateBinding",
				fmt.Sprintf("single binding for %q must have exactly one target", b.Resource))
		}
	case StrategyFanOutMerge, StrategyFanOutFirstWins:
		if len(b.Targets) < 2 {
			return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"registry", "validateBinding",
				fmt.Sprintf("fan-out binding for %q needs at least two targets", b.Resource))
		}
	default:
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"registry", "validateBinding",
			fmt.Sprintf("unknown strategy %q for %q", b.Strategy, b.Resource))
	}

	// Capability coverage: every referenced adapter must cover every
	// operation the resource advertises.
	for _, target := range b.Targets {
		backend, ok := s.backends[target.Adapter]
		if !ok {
			return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
				"registry", "validateBinding",
				fmt.Sprintf("binding for %q references unknown adapter %q", b.Resource, target.Adapter))
		}
		for _, op := range d.Operations {
			if !backend.Capabilities().Supports(op) {
				return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
					"registry", "validateBinding",
					fmt.Sprintf("adapter %q bound to %q does not support operation %q",
						target.Adapter, b.Resource, op))
			}
		}
	}

	return nil
}

// Descriptor returns a resource descriptor by name
func (s *Snapshot) Descriptor(name string) (*Descriptor, bool) {
	d, ok := s.descriptors[name]
	return d, ok
}

// Backend returns a backend adapter by identifier
func (s *Snapshot) Backend(id string) (adapter.Backend, bool) {
	b, ok := s.backends[id]
	return b, ok
}

// Resources returns the number of registered resources
func (s *Snapshot) Resources() int {
	return len(s.descriptors)
}

// Children returns the names of resources nesting under parent, sorted
func (s *Snapshot) Children(parent string) []string {
	var names []string
	for name, d := range s.descriptors {
		if d.Parent == parent {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve looks up the binding for (resource, version, operation). Lookup is
// exact on name and version, no prefix matching. The failure order is part
// of the contract: unknown resource, then unsupported operation, then
// unsupported version.
func (s *Snapshot) Resolve(resource, version string, op adapter.Operation) (*Resolved, error) {
	d, ok := s.descriptors[resource]
	if !ok {
		return nil, errors.New(errors.KindUnknownResource,
			"registry", "Resolve", fmt.Sprintf("unknown resource %q", resource))
	}

	if !d.SupportsOperation(op) {
		return nil, errors.New(errors.KindMethodNotAllowed,
			"registry", "Resolve",
			fmt.Sprintf("resource %q does not support operation %q", resource, op))
	}

	b, ok := s.bindings[bindingKey{resource, version}]
	if !ok {
		return nil, errors.New(errors.KindUnsupportedVersion,
			"registry", "Resolve",
			fmt.Sprintf("resource %q does not support version %q", resource, version))
	}

	backends := make([]adapter.Backend, len(b.Targets))
	for i, target := range b.Targets {
		backends[i] = s.backends[target.Adapter]
	}

	return &Resolved{Descriptor: d, Binding: b, Backends: backends}, nil
}

// Registry publishes the current snapshot. Registration is append-only
// within one load cycle; the finished snapshot replaces the previous one in
// a single atomic store, so concurrent readers see either the entirely old
// or entirely new configuration.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// New creates an empty registry
func New() *Registry {
	return &Registry{}
}

// Swap publishes a new snapshot and returns the previous one (nil on first load)
func (r *Registry) Swap(s *Snapshot) *Snapshot {
	return r.current.Swap(s)
}

// Current returns the live snapshot, or nil before the first load
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}
