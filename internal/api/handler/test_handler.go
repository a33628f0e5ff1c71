package handler

import (
	"net/http"

	"testseries/internal/api/middleware"
	"testseries/internal/app/service"
	"testseries/internal/common"
	"testseries/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type TestHandler struct {
	testService    *service.TestService
	attemptService *service.AttemptService
	guards         Guards
}

func NewTestHandler(ts *service.TestService, as *service.AttemptService, guards Guards) *TestHandler {
	return &TestHandler{testService: ts, attemptService: as, guards: guards}
}

// RegisterRoutes mounts under /api/tests.
func (h *TestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.categories)

	r.Group(func(public chi.Router) {
		public.Use(h.guards.Optional)
		public.Get("/", h.list)
		public.Get("/{id}", h.get)
	})

	r.Group(func(auth chi.Router) {
		auth.Use(h.guards.Required)
		auth.Get("/{id}/check-access", h.checkAccess)
		auth.Post("/{id}/start", h.start)
		auth.Put("/{id}/autosave", h.autosave)
		auth.Post("/{id}/submit", h.submit)
		auth.Get("/{id}/attempts/me", h.myAttempts)

		auth.Group(func(staff chi.Router) {
			staff.Use(middleware.RequireRole(model.RoleTeacher, model.RoleAdmin))
			staff.Post("/", h.create)
			staff.Put("/{id}", h.update)
			staff.Patch("/{id}/status", h.setStatus)
		})
	})
}

func (h *TestHandler) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.testService.ListCategories(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *TestHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.testService.ListTests(r.Context(), viewer(r), service.ListTestsParams{
		Subject:  q.Get("subject"),
		Grade:    q.Get("grade"),
		Search:   q.Get("search"),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "pageSize"),
	})
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *TestHandler) get(w http.ResponseWriter, r *http.Request) {
	test, err := h.testService.GetTest(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, test)
}

func (h *TestHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.TestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	test, err := h.testService.CreateTest(r.Context(), user, req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, test)
}

func (h *TestHandler) update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.TestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	test, err := h.testService.UpdateTest(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, test)
}

func (h *TestHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		IsPublished *bool `json:"is_published"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsPublished == nil {
		common.RespondWithError(w, http.StatusBadRequest, "is_published is required")
		return
	}
	test, err := h.testService.SetPublished(r.Context(), user, chi.URLParam(r, "id"), *req.IsPublished)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, test)
}

func (h *TestHandler) checkAccess(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	decision, err := h.attemptService.CheckAccess(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, decision)
}

func (h *TestHandler) start(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	resp, err := h.attemptService.Start(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *TestHandler) autosave(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	attempt, err := h.attemptService.Autosave(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, attempt)
}

func (h *TestHandler) submit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.attemptService.Submit(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *TestHandler) myAttempts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	attempts, err := h.attemptService.MyAttempts(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}
