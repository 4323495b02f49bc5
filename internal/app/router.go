package app

import (
	"database/sql"
	"net/http"
	"time"

	"prepquiz/internal/app/observability"
	"prepquiz/internal/auth"
	"prepquiz/internal/db"
	"prepquiz/internal/quiz"
	"prepquiz/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server bundles the HTTP handler with pieces main needs to manage.
type Server struct {
	Handler     http.Handler
	Collector   *observability.Collector
	AuthLimiter *IPRateLimiter
}

func NewRouter(cfg Config, conn *db.Conn) http.Handler {
	return NewServer(cfg, conn).Handler
}

func NewServer(cfg Config, conn *db.Conn) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	var sqlDB *sql.DB
	if conn != nil {
		sqlDB = conn.DB
	}
	collector := observability.NewCollector(sqlDB)
	r.Use(collector.Middleware)
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	authSvc := auth.NewService(conn, auth.ServiceConfig{SessionTTL: cfg.SessionTTL()})
	authHandler := auth.NewHandler(authSvc)
	adminHandler := auth.NewAdminHandler(authSvc)

	quizSvc := quiz.NewService(store.New(conn), quiz.ServiceConfig{Events: collector})
	quizHandler := quiz.NewHandler(quizSvc)

	authLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/auth/csrf", CSRFTokenHandler(cfg.AppEnv == "production"))
		api.With(RateLimitMiddleware(authLimiter)).Post("/auth/login-password", authHandler.LoginPassword)

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Post("/quizzes", quizHandler.Start)
			secure.Get("/quizzes/count", quizHandler.QuestionCount)
			secure.Get("/quizzes/history/{userID}", quizHandler.History)
			secure.Get("/quizzes/{id}", quizHandler.GetAttempt)
			secure.Get("/quizzes/{id}/result", quizHandler.Result)
			secure.Post("/quizzes/{id}/answers", quizHandler.SubmitAnswer)

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles(auth.RoleAdmin))
				admin.Post("/admin/users", adminHandler.CreateUser)
			})
		})
	})

	return &Server{Handler: r, Collector: collector, AuthLimiter: authLimiter}
}
