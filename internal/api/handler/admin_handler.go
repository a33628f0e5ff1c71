package handler

import (
	"net/http"

	"testseries/internal/app/service"
	"testseries/internal/common"

	"github.com/go-chi/chi/v5"
)

// AdminHandler serves the admin-only surface. The router guards it with
// an authenticated admin role check.
type AdminHandler struct {
	authService     *service.AuthService
	purchaseService *service.PurchaseService
	jobService      *service.MaintenanceJobService
	settingsService *service.SettingsService
}

func NewAdminHandler(
	authService *service.AuthService,
	purchaseService *service.PurchaseService,
	jobService *service.MaintenanceJobService,
	settingsService *service.SettingsService,
) *AdminHandler {
	return &AdminHandler{
		authService:     authService,
		purchaseService: purchaseService,
		jobService:      jobService,
		settingsService: settingsService,
	}
}

// RegisterRoutes mounts under /api/admin.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Put("/users/{id}/role", h.changeRole)
	r.Get("/purchases", h.listPurchases)

	r.Post("/jobs/leaderboard-rebuild", h.rebuildLeaderboard)
	r.Post("/jobs/rescore/{testId}", h.rescore)
	r.Get("/jobs/{id}", h.getJob)

	r.Get("/settings", h.listSettings)
	r.Put("/settings/{key}", h.upsertSetting)
	r.Delete("/settings/{key}", h.deleteSetting)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.authService.ListUsers(r.Context(), r.URL.Query().Get("role"), queryInt(r, "page"), queryInt(r, "pageSize"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) changeRole(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.authService.ChangeRole(r.Context(), admin.ID, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) listPurchases(w http.ResponseWriter, r *http.Request) {
	resp, err := h.purchaseService.ListAll(r.Context(), r.URL.Query().Get("status"), queryInt(r, "page"), queryInt(r, "pageSize"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) rebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.EnqueueLeaderboardRebuild(r.Context(), r.URL.Query().Get("testId"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, job)
}

func (h *AdminHandler) rescore(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.EnqueueRescore(r.Context(), chi.URLParam(r, "testId"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, job)
}

func (h *AdminHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, job)
}

func (h *AdminHandler) listSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

func (h *AdminHandler) upsertSetting(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.SettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	setting, err := h.settingsService.Upsert(r.Context(), admin.ID, chi.URLParam(r, "key"), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, setting)
}

func (h *AdminHandler) deleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := h.settingsService.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Setting deleted"})
}
