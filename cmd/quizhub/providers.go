package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/api"
	"github.com/cory-johannsen/quizhub/internal/config"
	"github.com/cory-johannsen/quizhub/internal/hub"
	"github.com/cory-johannsen/quizhub/internal/observability"
	"github.com/cory-johannsen/quizhub/internal/quiz"
	"github.com/cory-johannsen/quizhub/internal/scripting"
	"github.com/cory-johannsen/quizhub/internal/server"
	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
)

// providerSet builds every component of the quiz hub process.
var providerSet = wire.NewSet(
	provideLogging,
	provideLogger,
	observability.NewMetrics,
	providePool,
	provideUserRepository,
	provideCatalog,
	provideScorer,
	provideHub,
	provideRouter,
	provideLifecycle,
	newApp,
)

// App is the assembled process.
type App struct {
	logger    *zap.Logger
	lifecycle *server.Lifecycle
	catalog   *quiz.Catalog
}

func newApp(logger *zap.Logger, lc *server.Lifecycle, catalog *quiz.Catalog) *App {
	return &App{logger: logger, lifecycle: lc, catalog: catalog}
}

// Run blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("quiz hub running", zap.Int("quizzes", a.catalog.Len()))
	return a.lifecycle.Run(ctx)
}

func provideLogging(cfg config.Config) (*observability.Logging, func(), error) {
	l, err := observability.NewLogging(cfg.Logging, zap.String("instance", cfg.Server.Name))
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return l, l.Sync, nil
}

func provideLogger(l *observability.Logging) *zap.Logger {
	return l.Logger
}

func providePool(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) (*postgres.Pool, func(), error) {
	start := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database, logger.Named("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	metrics.ObservePool(func() (int32, int32, int32) {
		s := pool.Stats()
		return s.Acquired, s.Idle, s.Total
	})
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return pool, pool.Close, nil
}

func provideUserRepository(pool *postgres.Pool) *postgres.UserRepository {
	return postgres.NewUserRepository(pool.DB())
}

func provideCatalog(cfg config.Config, logger *zap.Logger) (*quiz.Catalog, error) {
	catalog, err := quiz.NewCatalogFromDir(cfg.Quiz.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading quizzes: %w", err)
	}
	logger.Info("quizzes loaded", zap.String("dir", cfg.Quiz.Dir), zap.Int("count", catalog.Len()))
	return catalog, nil
}

func provideScorer(cfg config.Config, logger *zap.Logger) (quiz.Scorer, func(), error) {
	if cfg.Quiz.ScoringScript == "" {
		return quiz.FixedScorer{Points: cfg.Quiz.Points}, func() {}, nil
	}
	s, err := scripting.LoadScorerFile(logger, cfg.Quiz.ScoringScript, cfg.Quiz.InstructionLimit)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func provideHub(cfg config.Config, logger *zap.Logger, scorer quiz.Scorer, metrics *observability.Metrics) *hub.Hub {
	return hub.New(logger.Named("hub"), hub.Options{
		QueueSize:  cfg.Hub.QueueSize,
		CodeLength: cfg.Hub.CodeLength,
		Scorer:     scorer,
		Metrics:    metrics,

		RecipientBuffer: cfg.Hub.RecipientBuffer,
	})
}

func dbCheck(pool *postgres.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return pool.Health(ctx, 2*time.Second)
	}
}

func provideRouter(cfg config.Config, logging *observability.Logging, logger *zap.Logger, h *hub.Hub, catalog *quiz.Catalog, users *postgres.UserRepository, metrics *observability.Metrics, pool *postgres.Pool) http.Handler {
	return api.NewRouter(api.Deps{
		Logger:  logger.Named("api"),
		Hub:     h,
		Quizzes: catalog,
		Users:   users,
		Metrics: metrics,
		Checks:  map[string]func(context.Context) error{"database": dbCheck(pool)},
		Timeout: cfg.HTTP.WriteTimeout,

		LogLevel:       logging.LevelHandler(),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
}

func provideLifecycle(cfg config.Config, logger *zap.Logger, h *hub.Hub, router http.Handler, pool *postgres.Pool) *server.Lifecycle {
	lc := server.NewLifecycle(logger)
	lc.SetStopTimeout(cfg.Server.ShutdownTimeout + time.Second)

	lc.Add("hub", server.NewContextService(h.Run))
	lc.Add("http", server.NewHTTPService(logger, cfg.HTTP.Addr(), router,
		cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.Server.ShutdownTimeout))
	lc.Add("grpc-health", server.NewHealthServer(logger.Named("health"), cfg.GRPC.Addr(), 10*time.Second,
		map[string]server.Check{
			"database": dbCheck(pool),
			"hub": func(context.Context) error {
				if !h.Stats().Running {
					return hub.ErrHubStopped
				}
				return nil
			},
		}))
	return lc
}
