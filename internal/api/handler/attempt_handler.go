package handler

import (
	"net/http"

	"testseries/internal/app/service"
	"testseries/internal/common"

	"github.com/go-chi/chi/v5"
)

type AttemptHandler struct {
	attemptService *service.AttemptService
	guards         Guards
}

func NewAttemptHandler(as *service.AttemptService, guards Guards) *AttemptHandler {
	return &AttemptHandler{attemptService: as, guards: guards}
}

// RegisterRoutes mounts under /api/attempts.
func (h *AttemptHandler) RegisterRoutes(r chi.Router) {
	r.With(h.guards.Required).Get("/{id}", h.get)
}

func (h *AttemptHandler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	review, err := h.attemptService.GetAttempt(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, review)
}
