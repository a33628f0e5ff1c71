package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
	PurchaseRefunded  = "refunded"
)

func IsValidPurchaseStatus(s string) bool {
	switch s {
	case PurchasePending, PurchaseCompleted, PurchaseFailed, PurchaseRefunded:
		return true
	}
	return false
}

// CanTransitionPurchase reports whether a payment event may move a purchase
// from one status to another. Refunds are final and a completed payment can
// only be refunded.
func CanTransitionPurchase(from, to string) bool {
	switch from {
	case PurchaseRefunded:
		return false
	case PurchaseCompleted:
		return to == PurchaseRefunded
	}
	return to != PurchasePending
}

type Purchase struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	SeriesID         *string         `json:"series_id,omitempty"`
	TestID           *string         `json:"test_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	AccessGranted    bool            `json:"access_granted"`
	PaymentReference string          `json:"payment_reference"`
	TransactionID    *string         `json:"transaction_id,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// GrantsAccess reports a completed, granted, unexpired purchase.
func (p *Purchase) GrantsAccess(now time.Time) bool {
	if p.Status != PurchaseCompleted || !p.AccessGranted {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
