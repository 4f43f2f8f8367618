// Package api serves the admin HTTP surface: health, metrics, users and
// read-only views of the hub and quiz catalog.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/quizhub/internal/hub"
	"github.com/cory-johannsen/quizhub/internal/quiz"
	"github.com/cory-johannsen/quizhub/internal/storage/postgres"
)

// UserStore is the user persistence used by the users endpoints.
type UserStore interface {
	Add(ctx context.Context, username, email, password string) (postgres.User, error)
	Get(ctx context.Context, id uuid.UUID) (postgres.User, error)
	List(ctx context.Context, limit, offset int) ([]postgres.User, error)
	Update(ctx context.Context, id uuid.UUID, upd postgres.UserUpdate) (postgres.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// HubView is the read-only hub surface exposed over HTTP.
type HubView interface {
	Snapshot(ctx context.Context) (hub.Snapshot, error)
	Scores(ctx context.Context, room hub.RoomID) ([]quiz.Player, error)
	Stats() hub.Stats
}

// Deps are the collaborators of the router. Nil Users disables the users
// endpoints; nil Metrics disables /metrics.
type Deps struct {
	Logger  *zap.Logger
	Hub     HubView
	Quizzes quiz.Provider
	Users   UserStore
	Metrics MetricsHandler
	// Checks are evaluated by /healthz in addition to hub liveness.
	Checks map[string]func(ctx context.Context) error
	// Timeout bounds each request.
	Timeout time.Duration
	// LogLevel, when set, is mounted at /debug/loglevel.
	LogLevel http.Handler
	// AllowedOrigins enables CORS for browser dashboards. Empty disables it.
	AllowedOrigins []string
}

// MetricsHandler exposes Prometheus metrics and instruments requests.
type MetricsHandler interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// NewRouter builds the admin HTTP handler.
//
// Precondition: d.Logger, d.Hub and d.Quizzes must be non-nil.
func NewRouter(d Deps) http.Handler {
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Logger), middleware.Recoverer, middleware.Timeout(d.Timeout))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	if d.LogLevel != nil {
		r.Method(http.MethodGet, "/debug/loglevel", d.LogLevel)
		r.Method(http.MethodPut, "/debug/loglevel", d.LogLevel)
	}

	health := &healthHandler{hub: d.Hub, checks: d.Checks}
	r.Get("/healthz", health.ServeHTTP)

	views := &viewHandler{logger: d.Logger, hub: d.Hub, quizzes: d.Quizzes}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", views.Stats)
		r.Get("/rooms", views.ListRooms)
		r.Get("/rooms/{id}/scores", views.RoomScores)
		r.Get("/quizzes", views.ListQuizzes)
		r.Get("/quizzes/{id}", views.GetQuiz)

		if d.Users != nil {
			users := &userHandler{logger: d.Logger, repo: d.Users}
			r.Route("/users", func(r chi.Router) {
				r.Get("/", users.List)
				r.Post("/", users.Create)
				r.Get("/{id}", users.Get)
				r.Put("/{id}", users.Update)
				r.Delete("/{id}", users.Delete)
			})
		}
	})
	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
