package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/gestaozabele/identidade/internal/auth"
	"github.com/gestaozabele/identidade/internal/config"
	"github.com/gestaozabele/identidade/internal/http/middleware"
	"github.com/gestaozabele/identidade/internal/service"
)

// NewRouter monta o roteador HTTP completo: middlewares globais, rotas
// públicas com limite por IP e rotas autenticadas com limite por sujeito.
func NewRouter(cfg *config.Config, jwtManager *auth.JWTManager, authSvc *service.AuthService, teamSvc *service.TeamService) http.Handler {
	validate := validator.New()
	authHandler := NewAuthHandler(authSvc, validate)
	teamHandler := NewTeamHandler(teamSvc, validate)

	publicLimiter := middleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.IPRateLimit(publicLimiter))
		authHandler.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(jwtManager))
		r.Use(middleware.RequireAuth)
		r.Use(middleware.PrincipalRateLimit(authLimiter))
		authHandler.RegisterProtected(r)
		teamHandler.RegisterRoutes(r)
	})

	return r
}
