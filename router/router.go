// Package router exposes the gateway's REST surface: it maps incoming HTTP
// requests onto registry lookups, authorization, version resolution, and the
// aggregation engine, and renders the uniform response envelope.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/aggregate"
	"github.com/whiteheaddmark/Observatory-Databases/auth"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
	"github.com/whiteheaddmark/Observatory-Databases/metric"
	"github.com/whiteheaddmark/Observatory-Databases/pkg/cache"
	"github.com/whiteheaddmark/Observatory-Databases/registry"
	"github.com/whiteheaddmark/Observatory-Databases/version"
)

// RequestIDHeader carries the correlation ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// Config holds the router settings
type Config struct {
	// MaxBodyBytes caps the accepted request body size for mutating
	// operations. Zero means the 1 MiB default.
	MaxBodyBytes int64 `json:"max_body_bytes"`

	// EnableResponseCache turns on caching of cacheable fetch responses.
	EnableResponseCache bool `json:"enable_response_cache"`

	// CacheCleanupInterval is the sweep interval of the response cache.
	// Zero means one minute.
	CacheCleanupInterval time.Duration `json:"cache_cleanup_interval"`
}

// Router is the gateway's HTTP entry point. The route table is static; all
// resource knowledge lives in the registry snapshot read per request, so a
// configuration reload is one atomic pointer swap with no route rebuilding.
type Router struct {
	registry   *registry.Registry
	engine     *aggregate.Engine
	resolver   *version.Resolver
	authorizer auth.Authorizer
	metrics    *metric.Metrics
	respCache  *cache.TTL[envelope]
	logger     *slog.Logger
	maxBody    int64
	mux        *chi.Mux
}

// Option configures a Router
type Option func(*Router)

// WithMetrics attaches request and cache metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New creates a router. The mux shape depends on the version strategy: with
// URI versioning every route carries a leading version segment.
func New(cfg Config, reg *registry.Registry, engine *aggregate.Engine,
	resolver *version.Resolver, authorizer auth.Authorizer,
	logger *slog.Logger, opts ...Option) *Router {

	if logger == nil {
		logger = slog.Default()
	}
	if authorizer == nil {
		authorizer = auth.Passthrough{}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r := &Router{
		registry:   reg,
		engine:     engine,
		resolver:   resolver,
		authorizer: authorizer,
		logger:     logger.With("component", "router"),
		maxBody:    maxBody,
	}
	if cfg.EnableResponseCache {
		r.respCache = cache.NewTTL[envelope](context.Background(), cfg.CacheCleanupInterval)
	}
	for _, opt := range opts {
		opt(r)
	}

	mux := chi.NewRouter()
	mux.Use(requestIDMiddleware)
	// Set before the routes so chi forwards the handler into subrouters.
	mux.NotFound(r.notFound)

	route := func(mux chi.Router) {
		mux.HandleFunc("/{resource}", r.handle)
		mux.HandleFunc("/{resource}/{id}", r.handle)
		mux.HandleFunc("/{resource}/{id}/{sub}", r.handle)
	}

	if resolver.Strategy() == version.StrategyURI {
		mux.Route("/{version}", route)
	} else {
		mux.Group(route)
	}

	r.mux = mux
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases the response cache's background resources
func (r *Router) Close() error {
	if r.respCache != nil {
		return r.respCache.Close()
	}
	return nil
}

// InvalidateCache drops all cached responses. Called after a configuration
// reload so a new snapshot never serves envelopes from the old one.
func (r *Router) InvalidateCache() {
	if r.respCache != nil {
		r.respCache.Clear()
	}
}

// CacheStats returns the response cache's statistics tracker, or nil when
// response caching is disabled.
func (r *Router) CacheStats() *cache.Statistics {
	if r.respCache == nil {
		return nil
	}
	return r.respCache.Stats()
}

// handle serves every resource route: resolution, authorization, dispatch,
// and envelope rendering.
func (r *Router) handle(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	resource, op := r.dispatch(rec, req)

	if r.metrics != nil {
		r.metrics.RecordRequest(resource, string(op), rec.status, time.Since(start))
	}
}

// dispatch runs the request pipeline and returns the resolved resource and
// operation for metrics labelling.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) (string, adapter.Operation) {
	op, ok := adapter.OperationForMethod(req.Method)
	if !ok {
		r.writeError(w, req, errors.New(errors.KindMethodNotAllowed,
			"router", "dispatch", fmt.Sprintf("method %s is not supported", req.Method)))
		return "unknown", ""
	}

	resource, pathParams, err := resourceFromPath(req)
	if err != nil {
		r.writeError(w, req, err)
		return resource, op
	}

	// The authorization gate runs before any resolution so an
	// unauthenticated caller learns nothing about which resources exist.
	if err := r.authorizer.Authorize(req, resource, op); err != nil {
		r.writeError(w, req, err)
		return resource, op
	}

	// Creation addresses a collection; an item path already names the
	// document and only replace, patch, and delete apply to it.
	if op == adapter.OpCreate && pathParams["id"] != "" {
		r.writeError(w, req, errors.New(errors.KindMethodNotAllowed,
			"router", "dispatch",
			fmt.Sprintf("POST is not allowed on item path %s", req.URL.Path)))
		return resource, op
	}

	snap := r.registry.Current()
	if snap == nil {
		r.writeError(w, req, errors.New(errors.KindInternal,
			"router", "dispatch", "no configuration loaded"))
		return resource, op
	}

	// Nested resources must be reached through their registered parent.
	if parent := pathParams["parent"]; parent != "" {
		d, ok := snap.Descriptor(resource)
		if !ok || d.Parent != parent {
			r.writeError(w, req, errors.New(errors.KindUnknownResource,
				"router", "dispatch",
				fmt.Sprintf("unknown resource %q under %q", resource, parent)))
			return resource, op
		}
	}

	ver, err := r.resolver.Resolve(req, chi.URLParam(req, "version"))
	if err != nil {
		r.writeError(w, req, err)
		return resource, op
	}

	resolved, err := snap.Resolve(resource, ver, op)
	if err != nil {
		r.writeError(w, req, err)
		return resource, op
	}

	var body json.RawMessage
	if op.Mutating() && op != adapter.OpDelete {
		body, err = r.readBody(w, req)
		if err != nil {
			r.writeError(w, req, err)
			return resource, op
		}
	}

	areq := adapter.Request{
		Resource:    resource,
		Version:     ver,
		Operation:   op,
		PathParams:  pathParams,
		QueryParams: req.URL.Query(),
		Body:        body,
		RequestID:   requestID(req),
	}

	cacheKey := ""
	policy := resolved.Descriptor.Cache
	if op == adapter.OpFetch && policy.Cacheable && r.respCache != nil {
		cacheKey = ver + ":" + req.URL.Path + "?" + req.URL.RawQuery
		if env, hit := r.respCache.Get(cacheKey); hit {
			if r.metrics != nil {
				r.metrics.RecordCacheHit(resource)
			}
			r.writeEnvelope(w, http.StatusOK, env)
			return resource, op
		}
		if r.metrics != nil {
			r.metrics.RecordCacheMiss(resource)
		}
	}

	resp, err := r.engine.Execute(req.Context(), resolved, areq)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordAggregateFailure(resource, errors.KindOf(err).String())
		}
		r.writeError(w, req, err)
		return resource, op
	}

	env := envelope{
		Data:     resp.Payload,
		Links:    r.links(snap, req, resource, pathParams),
		Cache:    cacheInfo{Cacheable: policy.Cacheable, MaxAgeSeconds: policy.MaxAgeSeconds},
		Version:  ver,
		Warnings: resp.Warnings,
	}

	// Only undegraded responses are cached, so a cached entry never replays
	// stale warnings.
	if cacheKey != "" && len(resp.Warnings) == 0 {
		ttl := time.Duration(policy.MaxAgeSeconds) * time.Second
		if err := r.respCache.Set(cacheKey, env, ttl); err != nil {
			r.logger.Debug("response cache rejected entry", "key", cacheKey, "error", err)
		}
	}

	status := http.StatusOK
	if op == adapter.OpCreate {
		status = http.StatusCreated
	}
	r.writeEnvelope(w, status, env)
	return resource, op
}

// notFound renders unmatched paths in the uniform error body. Under URI
// versioning a request with too few segments never reached a route because
// the version segment is missing, which is a client error, not a lookup miss.
func (r *Router) notFound(w http.ResponseWriter, req *http.Request) {
	if r.resolver.Strategy() == version.StrategyURI && pathSegments(req.URL.Path) < 2 {
		r.writeError(w, req, errors.New(errors.KindMissingVersion,
			"router", "notFound", "version segment missing from request path"))
		return
	}
	r.writeError(w, req, errors.New(errors.KindUnknownResource,
		"router", "notFound", fmt.Sprintf("no route for %s", req.URL.Path)))
}

func pathSegments(p string) int {
	n := 0
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}

// resourceFromPath extracts the logical resource name and path parameters
// from the matched route. For nested routes the subresource is the logical
// resource and the item ID addresses the parent.
func resourceFromPath(req *http.Request) (string, map[string]string, error) {
	resource := chi.URLParam(req, "resource")
	id := chi.URLParam(req, "id")
	sub := chi.URLParam(req, "sub")

	if sub != "" {
		return sub, map[string]string{"parent": resource, "parent_id": id}, nil
	}

	params := map[string]string{}
	if id != "" {
		params["id"] = id
	}
	return resource, params, nil
}

// readBody reads and validates a mutating request body under the size cap.
func (r *Router) readBody(_ http.ResponseWriter, req *http.Request) (json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(req.Body, r.maxBody+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "router", "readBody", "read request body")
	}
	if int64(len(raw)) > r.maxBody {
		return nil, &sizeError{limit: r.maxBody}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, &malformedBodyError{}
	}
	return raw, nil
}

// links builds the hypermedia block: a self link always, plus related links
// to registered child resources on item requests.
func (r *Router) links(snap *registry.Snapshot, req *http.Request, resource string, pathParams map[string]string) links {
	l := links{Self: req.URL.Path}
	if pathParams["id"] == "" {
		return l
	}
	children := snap.Children(resource)
	if len(children) == 0 {
		return l
	}
	l.Related = make(map[string]string, len(children))
	for _, child := range children {
		l.Related[child] = path.Join(req.URL.Path, child)
	}
	return l
}

func requestID(req *http.Request) string {
	return req.Header.Get(RequestIDHeader)
}

// requestIDMiddleware assigns a correlation ID when the caller did not send
// one and echoes it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			req.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, req)
	})
}

// statusRecorder captures the status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
