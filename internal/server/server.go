package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"outfit-studio/internal/analytics"
	"outfit-studio/internal/catalog"
	"outfit-studio/internal/combination"
	"outfit-studio/internal/config"
	"outfit-studio/internal/generation"
	"outfit-studio/internal/metrics"
	custommiddleware "outfit-studio/internal/middleware"
	"outfit-studio/internal/order"
	"outfit-studio/internal/prompt"
	"outfit-studio/internal/repository"
	"outfit-studio/internal/service"
	"outfit-studio/internal/session"
	"outfit-studio/internal/storage"
	"outfit-studio/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the optional backing services opened by main. Nil fields
// select the in-process fallbacks.
type Dependencies struct {
	DB      *sql.DB
	Redis   *redis.Client
	Metrics *metrics.AppMetrics
}

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	deps    Dependencies
	events  *analytics.Emitter
	closers []func() error
}

func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps Dependencies) (*Server, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	s := &Server{config: cfg, logger: logger, deps: deps}

	router, err := s.routes(ctx)
	if err != nil {
		s.closeResources()
		return nil, err
	}

	s.Server = &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:     router,
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// Generation waits on the image service across retries.
		WriteTimeout: cfg.Generation.Timeout*time.Duration(max(cfg.Generation.MaxAttempts, 1)) + cfg.Generation.MaxBackoff + 30*time.Second,
	}
	return s, nil
}

func (s *Server) routes(ctx context.Context) (http.Handler, error) {
	cfg, logger, deps := s.config, s.logger, s.deps

	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	router.Get("/health", s.health)

	accessor, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	var kv session.KV = session.NewMemoryKV()
	if deps.Redis != nil {
		kv = session.NewRedisKV(deps.Redis)
	} else {
		logger.Warn("Redis not configured, session state is kept in memory and lost on restart")
	}
	sessions := session.NewStore(kv, cfg.Session.TTL, deps.Metrics, logger)

	var publisher analytics.Publisher = analytics.NoopPublisher{}
	switch cfg.Analytics.Backend {
	case "":
		logger.Info("Analytics disabled")
	case "redis":
		if deps.Redis == nil {
			return nil, errors.New("redis analytics backend requires REDIS_HOST")
		}
		publisher = analytics.NewRedisStreamPublisher(deps.Redis, cfg.Analytics.StreamPrefix, cfg.Analytics.MaxLen)
	default:
		return nil, fmt.Errorf("unknown analytics backend %q", cfg.Analytics.Backend)
	}
	s.events = analytics.NewEmitter(publisher, cfg.Analytics, deps.Metrics, logger)

	artifacts, err := storage.New(ctx, cfg.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	if fs, ok := artifacts.(*storage.FileStore); ok {
		prefix := cfg.Artifacts.URLPrefix
		router.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(fs.Dir()))))
	}
	router.Handle("/products/*", http.StripPrefix("/products", http.FileServer(http.Dir(cfg.Catalog.ProductsDir))))

	provider, closeProvider, err := generation.NewProvider(ctx, cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to configure generation provider: %w", err)
	}
	s.closers = append(s.closers, closeProvider)
	images := generation.NewFileImageSource(cfg.Catalog.ProductsDir)
	generator := generation.NewClient(provider, images, artifacts, cfg.Generation, deps.Metrics, logger)

	var ledger order.Ledger = order.NoopLedger{}
	var reconciler *order.Reconciler
	if deps.DB != nil {
		orderRepo := repository.NewOrderRepository(deps.DB)
		ledger = orderRepo
		reconciler = order.NewReconciler(orderRepo, s.events, logger)
	}
	orders := order.NewEmitter(sessions, s.events, ledger, cfg.Order, deps.Metrics, logger)

	tracker := combination.NewTracker(s.events, logger)
	studio := service.NewStudioService(accessor, prompt.NewBuilder(cfg.Prompt.ModelDescription), generator, tracker, sessions, orders, deps.Metrics, logger)

	sessionService, err := service.NewSessionService(cfg.Session.Secret, cfg.Session.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure sessions: %w", err)
	}

	var generateLimiter func(http.Handler) http.Handler
	if deps.Redis != nil && cfg.RateLimit.GenerationsPerWindow > 0 {
		generateLimiter = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.GenerationsPerWindow,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:generate",
		}, logger)
	}

	transport.NewCatalogHandler(accessor, logger).RegisterRoutes(router)
	transport.NewStudioHandler(studio, sessionService, logger).RegisterRoutes(router, generateLimiter)
	if reconciler != nil {
		transport.NewOrderHandler(reconciler, logger).RegisterRoutes(router, custommiddleware.OpsKeyMiddleware(cfg.Server.OpsKey, logger))
	}

	logger.Info("Studio configured",
		zap.String("catalog", cfg.Catalog.Source),
		zap.String("provider", provider.Name()),
		zap.String("artifacts", cfg.Artifacts.Backend),
		zap.Bool("redis", deps.Redis != nil),
		zap.Bool("order_ledger", deps.DB != nil),
	)
	return router, nil
}

// catalog opens the configured catalog. The postgres source is seeded from
// the catalog file while its table is empty.
func (s *Server) catalog(ctx context.Context) (catalog.Accessor, error) {
	cfg := s.config.Catalog

	switch cfg.Source {
	case "", "file":
		fc, err := catalog.LoadFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Catalog loaded", zap.String("path", cfg.Path), zap.Int("products", len(fc.All())))
		return fc, nil
	case "postgres":
		if s.deps.DB == nil {
			return nil, errors.New("postgres catalog requires DB_DATABASE")
		}
		repo := repository.NewProductRepository(s.deps.DB)
		n, err := repo.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			fc, err := catalog.LoadFile(cfg.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to seed catalog: %w", err)
			}
			if err := repo.Upsert(ctx, fc.All()); err != nil {
				return nil, fmt.Errorf("failed to seed catalog: %w", err)
			}
			s.logger.Info("Catalog seeded", zap.Int("products", len(fc.All())))
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}

	if s.deps.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.deps.Redis.Ping(ctx).Err(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = err.Error()
		} else {
			body["redis"] = "up"
		}
	}
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.deps.DB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		} else {
			body["database"] = "up"
		}
	}

	custommiddleware.RespondWithJSON(w, status, body)
}

func (s *Server) closeResources() {
	if s.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.events.Close(ctx); err != nil {
			s.logger.Error("Failed to flush analytics events", zap.Error(err))
		}
		cancel()
	}
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.logger.Error("Failed to close resource", zap.Error(err))
		}
	}
	s.closers = nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	s.closeResources()

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
