package handler

import (
	"net/http"

	"testseries/internal/api/middleware"
	"testseries/internal/app/service"
	"testseries/internal/common"
	"testseries/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type SeriesHandler struct {
	seriesService *service.SeriesService
	guards        Guards
}

func NewSeriesHandler(ss *service.SeriesService, guards Guards) *SeriesHandler {
	return &SeriesHandler{seriesService: ss, guards: guards}
}

// RegisterRoutes mounts under /api/series.
func (h *SeriesHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(h.guards.Optional)
		public.Get("/", h.list)
		public.Get("/{id}", h.get)
	})

	r.Group(func(auth chi.Router) {
		auth.Use(h.guards.Required)
		auth.Post("/{id}/subscribe", h.subscribe)
		auth.Get("/{id}/progress", h.progress)
		auth.Get("/{id}/check-access", h.checkAccess)

		auth.Group(func(staff chi.Router) {
			staff.Use(middleware.RequireRole(model.RoleTeacher, model.RoleAdmin))
			staff.Post("/", h.create)
			staff.Put("/{id}", h.update)
			staff.Post("/{id}/tests", h.addTest)
			staff.Delete("/{id}/tests/{testId}", h.removeTest)
		})
	})
}

func (h *SeriesHandler) list(w http.ResponseWriter, r *http.Request) {
	resp, err := h.seriesService.List(r.Context(), viewer(r), queryInt(r, "page"), queryInt(r, "pageSize"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *SeriesHandler) get(w http.ResponseWriter, r *http.Request) {
	series, err := h.seriesService.Get(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, series)
}

func (h *SeriesHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.SeriesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	series, err := h.seriesService.Create(r.Context(), user, req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, series)
}

func (h *SeriesHandler) update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.SeriesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	series, err := h.seriesService.Update(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, series)
}

func (h *SeriesHandler) addTest(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.AddSeriesTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.seriesService.AddTest(r.Context(), user, chi.URLParam(r, "id"), req); err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"message": "Test added to series"})
}

func (h *SeriesHandler) removeTest(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.seriesService.RemoveTest(r.Context(), user, chi.URLParam(r, "id"), chi.URLParam(r, "testId")); err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Test removed from series"})
}

func (h *SeriesHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.seriesService.Subscribe(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Subscribed"})
}

func (h *SeriesHandler) progress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	resp, err := h.seriesService.Progress(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *SeriesHandler) checkAccess(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	decision, err := h.seriesService.CheckAccess(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, decision)
}
