package service

import (
	"context"
	"crypto/subtle"
	"log"
	"time"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"
)

// PaymentWebhookService applies payment provider callbacks to purchases.
type PaymentWebhookService struct {
	purchaseRepo repository.PurchaseRepository
	seriesRepo   repository.SeriesRepository
	secret       string
	now          func() time.Time
}

func NewPaymentWebhookService(purchaseRepo repository.PurchaseRepository, seriesRepo repository.SeriesRepository, secret string) *PaymentWebhookService {
	return &PaymentWebhookService{
		purchaseRepo: purchaseRepo,
		seriesRepo:   seriesRepo,
		secret:       secret,
		now:          time.Now,
	}
}

type PaymentEventPayload struct {
	PurchaseID       string `json:"purchase_id"`
	PaymentReference string `json:"payment_reference"`
	Status           string `json:"status"`
	TransactionID    string `json:"transaction_id"`
}

// Authenticate compares the shared secret in constant time. An empty
// configured secret rejects every call.
func (s *PaymentWebhookService) Authenticate(provided string) error {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(s.secret)) != 1 {
		return common.Errorf("invalid webhook secret: %w", common.ErrUnauthorized)
	}
	return nil
}

// HandlePaymentEvent moves a purchase to the reported status. Repeating an
// event with the same status is a no-op; out-of-order events that would
// revoke a paid purchase or revive a refunded one are rejected with a conflict.
func (s *PaymentWebhookService) HandlePaymentEvent(ctx context.Context, payload PaymentEventPayload) (*model.Purchase, error) {
	if payload.Status == model.PurchasePending || !model.IsValidPurchaseStatus(payload.Status) {
		return nil, common.Errorf("unsupported payment status %q: %w", payload.Status, common.ErrBadRequest)
	}

	var (
		purchase *model.Purchase
		err      error
	)
	switch {
	case payload.PurchaseID != "":
		purchase, err = s.purchaseRepo.FindPurchaseByID(ctx, payload.PurchaseID)
	case payload.PaymentReference != "":
		purchase, err = s.purchaseRepo.FindPurchaseByReference(ctx, payload.PaymentReference)
	default:
		return nil, common.Errorf("purchase_id or payment_reference is required: %w", common.ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}

	if purchase.Status == payload.Status {
		log.Printf("INFO: Payment webhook for purchase %s repeats status %s, ignoring", purchase.ID, payload.Status)
		return purchase, nil
	}
	if !model.CanTransitionPurchase(purchase.Status, payload.Status) {
		log.Printf("WARN: Payment webhook for purchase %s tried %s -> %s, rejecting", purchase.ID, purchase.Status, payload.Status)
		return nil, common.Errorf("purchase %s cannot move from %s to %s: %w", purchase.ID, purchase.Status, payload.Status, common.ErrConflict)
	}

	if payload.TransactionID != "" {
		txID := payload.TransactionID
		purchase.TransactionID = &txID
	}
	purchase.Status = payload.Status

	switch payload.Status {
	case model.PurchaseCompleted:
		purchase.AccessGranted = true
		purchase.ExpiresAt = nil
		if purchase.SeriesID != nil {
			series, err := s.seriesRepo.FindSeriesByID(ctx, *purchase.SeriesID)
			if err != nil {
				return nil, err
			}
			if series.ValidityDays > 0 {
				expires := s.now().AddDate(0, 0, series.ValidityDays)
				purchase.ExpiresAt = &expires
			}
		}
	case model.PurchaseFailed, model.PurchaseRefunded:
		purchase.AccessGranted = false
	}

	if err := s.purchaseRepo.UpdatePurchaseStatus(ctx, purchase); err != nil {
		return nil, err
	}
	log.Printf("INFO: Purchase %s is now %s (access granted: %t)", purchase.ID, purchase.Status, purchase.AccessGranted)
	return purchase, nil
}
