// Package gateway assembles the gateway service: configuration, shared
// connections, registry, router, health, and metrics behind one HTTP server
// with graceful shutdown and SIGHUP configuration reload.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/whiteheaddmark/Observatory-Databases/aggregate"
	"github.com/whiteheaddmark/Observatory-Databases/config"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
	"github.com/whiteheaddmark/Observatory-Databases/health"
	"github.com/whiteheaddmark/Observatory-Databases/metric"
	"github.com/whiteheaddmark/Observatory-Databases/registry"
	"github.com/whiteheaddmark/Observatory-Databases/reliability"
	"github.com/whiteheaddmark/Observatory-Databases/router"
	"github.com/whiteheaddmark/Observatory-Databases/version"
)

// Service is the assembled gateway
type Service struct {
	cfg        *config.Config
	configPath string
	loader     *config.Loader
	logger     *slog.Logger

	registry *registry.Registry
	metrics  *metric.Metrics
	router   *router.Router
	checker  *health.Checker
	handler  http.Handler

	natsConn *nats.Conn
	pgPool   *pgxpool.Pool
}

// New builds a gateway service from a validated configuration. configPath
// enables SIGHUP reload; pass "" to disable it.
func New(ctx context.Context, cfg *config.Config, configPath string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:        cfg,
		configPath: configPath,
		loader:     config.NewLoader(),
		logger:     logger,
		registry:   registry.New(),
		metrics:    metric.NewMetrics(),
	}

	if err := s.dial(ctx, cfg); err != nil {
		return nil, err
	}

	snap, err := config.Build(cfg, s.deps())
	if err != nil {
		s.Close()
		return nil, err
	}
	s.registry.Swap(snap)

	executor := reliability.NewExecutor(cfg.Reliability, logger,
		reliability.WithObserver(s.metrics))
	engine := aggregate.New(executor, logger)

	resolver, err := version.NewResolver(cfg.Version, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	authorizer, err := config.BuildAuthorizer(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.router = router.New(cfg.Router, s.registry, engine, resolver, authorizer,
		logger, router.WithMetrics(s.metrics))
	if stats := s.router.CacheStats(); stats != nil {
		s.metrics.ObserveResponseCache(stats)
	}
	s.checker = health.NewChecker(s.registry, executor.Breakers())

	mux := chi.NewRouter()
	mux.Use(s.accessLog)
	mux.Method(http.MethodGet, "/healthz", s.checker.LivenessHandler())
	mux.Method(http.MethodGet, "/readyz", s.checker.ReadinessHandler())
	mux.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	mux.Mount("/", s.router)
	s.handler = mux

	return s, nil
}

// deps returns the shared connections for adapter construction
func (s *Service) deps() config.Dependencies {
	deps := config.Dependencies{NATS: s.natsConn}
	if s.pgPool != nil {
		deps.Postgres = s.pgPool
	}
	return deps
}

// dial opens the shared connections the configured adapters need. Already
// open connections are kept, so a reload does not reconnect.
func (s *Service) dial(ctx context.Context, cfg *config.Config) error {
	needNATS, needPG := false, false
	for _, a := range cfg.Adapters {
		switch a.Type {
		case config.AdapterNATS:
			needNATS = true
		case config.AdapterPostgres:
			needPG = true
		}
	}

	if needNATS && s.natsConn == nil {
		conn, err := nats.Connect(cfg.NATS.URL,
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.ReconnectWait(cfg.NATS.ReconnectWait),
		)
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "gateway", "dial", "connect to NATS")
		}
		s.natsConn = conn
	}

	if needPG && s.pgPool == nil {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "gateway", "dial", "create postgres pool")
		}
		s.pgPool = pool
	}

	return nil
}

// Handler returns the full HTTP surface: resources, health, and metrics
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Registry returns the service registry, mainly for tests
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Reload re-reads the configuration file and atomically swaps in the new
// snapshot. On any failure the running configuration stays in place.
func (s *Service) Reload(ctx context.Context) error {
	if s.configPath == "" {
		return errors.New(errors.KindInternal, "gateway", "Reload", "no config path configured")
	}

	cfg, err := s.loader.Load(s.configPath)
	if err != nil {
		return err
	}

	if err := s.dial(ctx, cfg); err != nil {
		return err
	}

	snap, err := config.Build(cfg, s.deps())
	if err != nil {
		return err
	}

	s.registry.Swap(snap)
	s.router.InvalidateCache()
	s.logger.Info("configuration reloaded",
		"path", s.configPath,
		"resources", snap.Resources(),
	)
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully within
// the configured shutdown timeout. SIGHUP triggers a configuration reload.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	reload := make(chan os.Signal, 1)
	if s.configPath != "" {
		signal.Notify(reload, syscall.SIGHUP)
		defer signal.Stop(reload)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	for {
		select {
		case <-reload:
			if err := s.Reload(ctx); err != nil {
				s.logger.Error("configuration reload failed, keeping current configuration",
					"error", err)
			}

		case err := <-errCh:
			return errors.Wrap(err, errors.KindInternal, "gateway", "Run", "serve HTTP")

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, errors.KindInternal, "gateway", "Run", "graceful shutdown")
			}
			s.logger.Info("gateway stopped")
			return nil
		}
	}
}

// Close releases the shared connections and router resources
func (s *Service) Close() {
	if s.router != nil {
		_ = s.router.Close()
	}
	if s.natsConn != nil {
		s.natsConn.Close()
	}
	if s.pgPool != nil {
		s.pgPool.Close()
	}
}

// statusRecorder captures the response status for access logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
