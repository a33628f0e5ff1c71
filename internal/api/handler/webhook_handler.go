package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"testseries/internal/app/service"
	"testseries/internal/common"

	"github.com/go-chi/chi/v5"
)

const webhookSecretHeader = "X-Webhook-Secret"

type WebhookHandler struct {
	webhookService *service.PaymentWebhookService
}

func NewWebhookHandler(ws *service.PaymentWebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: ws}
}

// RegisterRoutes mounts under /api/webhooks.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payment", h.handlePaymentEvent)
}

func (h *WebhookHandler) handlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.webhookService.Authenticate(r.Header.Get(webhookSecretHeader)); err != nil {
		log.Printf("WARN: Webhook: rejected payment callback from %s", r.RemoteAddr)
		common.RespondWithError(w, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	var payload service.PaymentEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("ERROR: Webhook: Invalid payload: %v", err)
		common.RespondWithError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}
	defer r.Body.Close()

	purchase, err := h.webhookService.HandlePaymentEvent(r.Context(), payload)
	if err != nil {
		log.Printf("ERROR: Webhook: Error handling payment %s/%s: %v", payload.PurchaseID, payload.PaymentReference, err)
		common.RespondWithServiceError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, purchase)
}
