package handler

import (
	"net/http"

	"testseries/internal/app/service"
	"testseries/internal/common"

	"github.com/go-chi/chi/v5"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

func NewSettingsHandler(ss *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: ss}
}

// RegisterRoutes mounts under /api/settings.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/public", h.public)
}

func (h *SettingsHandler) public(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.Public(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}
