package api

import (
	"net/http"
	"time"

	"testseries/internal/api/handler"
	"testseries/internal/api/middleware"
	"testseries/internal/app/service"
	"testseries/internal/common"
	"testseries/internal/common/security"
	"testseries/internal/domain/model"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth        *service.AuthService
	Tests       *service.TestService
	Attempts    *service.AttemptService
	Series      *service.SeriesService
	Purchases   *service.PurchaseService
	Webhooks    *service.PaymentWebhookService
	Leaderboard *service.LeaderboardService
	Jobs        *service.MaintenanceJobService
	Settings    *service.SettingsService
}

func NewRouter(s Services, verifier security.Verifier, users middleware.UserLoader, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Secret"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	guards := handler.Guards{
		Required: middleware.Authenticator(verifier, users),
		Optional: middleware.OptionalAuthenticator(verifier, users),
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/users", handler.NewAuthHandler(s.Auth, s.Series, s.Attempts, guards).RegisterRoutes)
		api.Route("/tests", handler.NewTestHandler(s.Tests, s.Attempts, guards).RegisterRoutes)
		api.Route("/attempts", handler.NewAttemptHandler(s.Attempts, guards).RegisterRoutes)
		api.Route("/series", handler.NewSeriesHandler(s.Series, guards).RegisterRoutes)
		api.Route("/purchases", handler.NewPurchaseHandler(s.Purchases, guards).RegisterRoutes)
		api.Route("/webhooks", handler.NewWebhookHandler(s.Webhooks).RegisterRoutes)
		api.Route("/leaderboard", handler.NewLeaderboardHandler(s.Leaderboard, guards).RegisterRoutes)
		api.Route("/settings", handler.NewSettingsHandler(s.Settings).RegisterRoutes)

		adminHandler := handler.NewAdminHandler(s.Auth, s.Purchases, s.Jobs, s.Settings)
		api.Route("/admin", func(admin chi.Router) {
			admin.Use(guards.Required)
			admin.Use(middleware.RequireRole(model.RoleAdmin))
			adminHandler.RegisterRoutes(admin)
		})
	})

	return r
}
