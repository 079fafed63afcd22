// Package memorybackend implements an in-memory backend adapter for tests
// and local development.
package memorybackend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Backend stores documents per resource in memory. All access goes through
// one RWMutex, which is the adapter's only shared state.
type Backend struct {
	id   string
	caps adapter.Capabilities

	mu   sync.RWMutex
	data map[string]map[string]any // resource -> id -> document
}

// New creates an empty in-memory backend supporting every operation
func New(id string) *Backend {
	return &Backend{
		id: id,
		caps: adapter.NewCapabilities(adapter.OpFetch, adapter.OpCreate,
			adapter.OpReplace, adapter.OpPatch, adapter.OpDelete),
		data: make(map[string]map[string]any),
	}
}

// ID returns the adapter identifier
func (b *Backend) ID() string {
	return b.id
}

// Capabilities returns the full operation set
func (b *Backend) Capabilities() adapter.Capabilities {
	return b.caps
}

// Seed inserts a document directly, bypassing the adapter contract
func (b *Backend) Seed(resource, id string, doc any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data[resource] == nil {
		b.data[resource] = make(map[string]any)
	}
	b.data[resource][id] = doc
}

// Invoke executes one operation against the in-memory store
func (b *Backend) Invoke(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindTimeout,
			"memorybackend", "Invoke", "deadline check")
	}

	if req.Operation == adapter.OpFetch {
		return b.fetch(req)
	}
	return b.mutate(req)
}

func (b *Backend) fetch(req adapter.Request) (adapter.Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	docs := b.data[req.Resource]

	if id := req.ItemID(); id != "" {
		doc, ok := docs[id]
		if !ok {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"memorybackend", "fetch", fmt.Sprintf("no document %q", id))
		}
		return adapter.Result{Payload: doc}, nil
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, docs[id])
	}
	return adapter.Result{Payload: items}, nil
}

func (b *Backend) mutate(req adapter.Request) (adapter.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data[req.Resource] == nil {
		b.data[req.Resource] = make(map[string]any)
	}
	docs := b.data[req.Resource]

	switch req.Operation {
	case adapter.OpCreate:
		doc, err := decodeBody(req.Body)
		if err != nil {
			return adapter.Result{}, err
		}
		id := uuid.NewString()
		if m, ok := doc.(map[string]any); ok {
			if given, ok := m["id"].(string); ok && given != "" {
				id = given
			} else {
				m["id"] = id
			}
		}
		docs[id] = doc
		return adapter.Result{Payload: doc}, nil

	case adapter.OpReplace:
		doc, err := decodeBody(req.Body)
		if err != nil {
			return adapter.Result{}, err
		}
		id := req.ItemID()
		if id == "" {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"memorybackend", "mutate", "replace requires an item id")
		}
		docs[id] = doc
		return adapter.Result{Payload: doc}, nil

	case adapter.OpPatch:
		patch, err := decodeBody(req.Body)
		if err != nil {
			return adapter.Result{}, err
		}
		id := req.ItemID()
		existing, ok := docs[id].(map[string]any)
		if !ok {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"memorybackend", "mutate", fmt.Sprintf("no document %q", id))
		}
		fields, ok := patch.(map[string]any)
		if !ok {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"memorybackend", "mutate", "patch body must be an object")
		}
		for k, v := range fields {
			existing[k] = v
		}
		return adapter.Result{Payload: existing}, nil

	case adapter.OpDelete:
		id := req.ItemID()
		if id == "" {
			n := len(docs)
			b.data[req.Resource] = make(map[string]any)
			return adapter.Result{Payload: map[string]any{"deleted": n}}, nil
		}
		if _, ok := docs[id]; !ok {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"memorybackend", "mutate", fmt.Sprintf("no document %q", id))
		}
		delete(docs, id)
		return adapter.Result{Payload: map[string]any{"deleted": 1}}, nil

	default:
		return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
			"memorybackend", "mutate", fmt.Sprintf("unsupported operation %q", req.Operation))
	}
}

func decodeBody(body json.RawMessage) (any, error) {
	if len(body) == 0 {
		return nil, errors.New(errors.KindUpstreamRejected,
			"memorybackend", "decodeBody", "request body is required")
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamRejected,
			"memorybackend", "decodeBody", "decode request body")
	}
	return doc, nil
}
