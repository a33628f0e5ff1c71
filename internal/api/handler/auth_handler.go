package handler

import (
	"net/http"

	"testseries/internal/api/middleware"
	"testseries/internal/app/service"
	"testseries/internal/common"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService    *service.AuthService
	seriesService  *service.SeriesService
	attemptService *service.AttemptService
	guards         Guards
}

func NewAuthHandler(authService *service.AuthService, seriesService *service.SeriesService, attemptService *service.AttemptService, guards Guards) *AuthHandler {
	return &AuthHandler{authService: authService, seriesService: seriesService, attemptService: attemptService, guards: guards}
}

// RegisterRoutes mounts under /api/users.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/auth/google", h.federatedLogin)

	r.Group(func(auth chi.Router) {
		auth.Use(h.guards.Required)
		auth.Post("/logout", h.logout)
		auth.Get("/me", h.me)
		auth.Put("/me", h.updateMe)
		auth.Get("/me/series", h.mySeries)
		auth.Get("/me/history", h.myHistory)
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) federatedLogin(w http.ResponseWriter, r *http.Request) {
	var req service.FederatedLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.FederatedLogin(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	if err := h.authService.Logout(r.Context(), id); err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) updateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.authService.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *AuthHandler) mySeries(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	series, err := h.seriesService.MySeries(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"series": series})
}

func (h *AuthHandler) myHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	resp, err := h.attemptService.History(r.Context(), user.ID, queryInt(r, "page"), queryInt(r, "pageSize"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
