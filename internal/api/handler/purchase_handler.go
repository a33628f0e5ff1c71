package handler

import (
	"net/http"

	"testseries/internal/app/service"
	"testseries/internal/common"

	"github.com/go-chi/chi/v5"
)

type PurchaseHandler struct {
	purchaseService *service.PurchaseService
	guards          Guards
}

func NewPurchaseHandler(ps *service.PurchaseService, guards Guards) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: ps, guards: guards}
}

// RegisterRoutes mounts under /api/purchases.
func (h *PurchaseHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.guards.Required)
	r.Post("/", h.create)
	r.Get("/me", h.mine)
}

func (h *PurchaseHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.CreatePurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	purchase, err := h.purchaseService.Create(r.Context(), user, req)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, purchase)
}

func (h *PurchaseHandler) mine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	purchases, err := h.purchaseService.MyPurchases(r.Context(), user.ID)
	if err != nil {
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"purchases": purchases})
}
