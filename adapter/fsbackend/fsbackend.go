// Package fsbackend implements the backend adapter contract for filesystem
// JSON document stores, the format telescope archive dumps are delivered in.
package fsbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Config holds the immutable settings for one filesystem source
type Config struct {
	ID string `json:"id"`

	// Root is the directory holding one <resource>.json document map per
	// collection.
	Root string `json:"root"`

	// ReadOnly restricts the adapter to fetch. Archive dumps are usually
	// mounted read-only.
	ReadOnly bool `json:"read_only,omitempty"`
}

// Validate ensures the backend configuration is usable
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"fsbackend", "Validate", "id is required")
	}
	if c.Root == "" {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"fsbackend", "Validate", "root is required")
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "fsbackend", "Validate", "stat root")
	}
	if !info.IsDir() {
		return errors.Wrap(errors.ErrInvalidConfig, errors.KindInternal,
			"fsbackend", "Validate", fmt.Sprintf("root %q is not a directory", c.Root))
	}
	return nil
}

// Backend serves documents from JSON files under a root directory. The write
// mutex is the only shared state; reads of distinct requests never block
// each other on the filesystem itself.
type Backend struct {
	cfg  Config
	caps adapter.Capabilities

	writeMu sync.Mutex
}

// New creates a filesystem backend from configuration
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ops := []adapter.Operation{adapter.OpFetch}
	if !cfg.ReadOnly {
		ops = append(ops, adapter.OpCreate, adapter.OpReplace, adapter.OpPatch, adapter.OpDelete)
	}

	return &Backend{
		cfg:  cfg,
		caps: adapter.NewCapabilities(ops...),
	}, nil
}

// ID returns the adapter identifier
func (b *Backend) ID() string {
	return b.cfg.ID
}

// Capabilities returns the declared operation set
func (b *Backend) Capabilities() adapter.Capabilities {
	return b.caps
}

// Invoke executes one operation against the document files
func (b *Backend) Invoke(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindTimeout,
			"fsbackend", "Invoke", "deadline check")
	}

	switch req.Operation {
	case adapter.OpFetch:
		return b.fetch(req)
	case adapter.OpCreate, adapter.OpReplace, adapter.OpPatch, adapter.OpDelete:
		if b.cfg.ReadOnly {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"fsbackend", "Invoke", "source is read-only")
		}
		return b.mutate(ctx, req)
	default:
		return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
			"fsbackend", "Invoke", fmt.Sprintf("unsupported operation %q", req.Operation))
	}
}

func (b *Backend) path(resource string) string {
	return filepath.Join(b.cfg.Root, resource+".json")
}

// load reads a collection file into a document map. A missing file is an
// empty collection, not an error.
func (b *Backend) load(resource string) (map[string]any, error) {
	data, err := os.ReadFile(b.path(resource))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, errors.Wrap(err, errors.KindUnreachable,
			"fsbackend", "load", "read collection file")
	}

	var docs map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, errors.KindMalformedUpstreamResponse,
			"fsbackend", "load", "decode collection file")
	}
	return docs, nil
}

// store writes the collection atomically via a temp file rename
func (b *Backend) store(resource string, docs map[string]any) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "fsbackend", "store", "encode collection")
	}

	tmp := b.path(resource) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, errors.KindUnreachable, "fsbackend", "store", "write temp file")
	}
	if err := os.Rename(tmp, b.path(resource)); err != nil {
		return errors.Wrap(err, errors.KindUnreachable, "fsbackend", "store", "rename temp file")
	}
	return nil
}

func (b *Backend) fetch(req adapter.Request) (adapter.Result, error) {
	docs, err := b.load(req.Resource)
	if err != nil {
		return adapter.Result{}, err
	}

	if id := req.ItemID(); id != "" {
		doc, ok := docs[id]
		if !ok {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"fsbackend", "fetch", fmt.Sprintf("no document %q", id))
		}
		return adapter.Result{Payload: doc}, nil
	}

	// Stable listing order for reproducible responses.
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

func (b *Backend) mutate(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	// A cancelled aggregate must not leave a partial write behind; nothing
	// has been written yet, so bail out before touching the file.
	if err := ctx.Err(); err != nil {
		return adapter.Result{}, errors.Wrap(err, errors.KindTimeout,
			"fsbackend", "mutate", "deadline check")
	}

	docs, err := b.load(req.Resource)
	if err != nil {
		return adapter.Result{}, err
	}

	var payload any
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
		payload = doc

	case adapter.OpReplace:
		doc, err := decodeBody(req.Body)
		if err != nil {
			return adapter.Result{}, err
		}
		id := req.ItemID()
		if id == "" {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"fsbackend", "mutate", "replace requires an item id")
		}
		docs[id] = doc
		payload = doc

	case adapter.OpPatch:
		patch, err := decodeBody(req.Body)
		if err != nil {
			return adapter.Result{}, err
		}
		id := req.ItemID()
		existing, ok := docs[id].(map[string]any)
		if !ok {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"fsbackend", "mutate", fmt.Sprintf("no document %q", id))
		}
		fields, ok := patch.(map[string]any)
		if !ok {
			return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
				"fsbackend", "mutate", "patch body must be an object")
		}
		for k, v := range fields {
			existing[k] = v
		}
		docs[id] = existing
		payload = existing

	case adapter.OpDelete:
		id := req.ItemID()
		if id == "" {
			// Bulk delete clears the collection.
			payload = map[string]any{"deleted": len(docs)}
			docs = map[string]any{}
		} else {
			if _, ok := docs[id]; !ok {
				return adapter.Result{}, errors.New(errors.KindUpstreamRejected,
					"fsbackend", "mutate", fmt.Sprintf("no document %q", id))
			}
			delete(docs, id)
			payload = map[string]any{"deleted": 1}
		}
	}

	if err := b.store(req.Resource, docs); err != nil {
		return adapter.Result{}, err
	}
	return adapter.Result{Payload: payload}, nil
}

func decodeBody(body json.RawMessage) (any, error) {
	if len(body) == 0 {
		return nil, errors.New(errors.KindUpstreamRejected,
			"fsbackend", "decodeBody", "request body is required")
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamRejected,
			"fsbackend", "decodeBody", "decode request body")
	}
	return doc, nil
}
