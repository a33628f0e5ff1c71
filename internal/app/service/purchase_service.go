package service

import (
	"context"
	"log"
	"time"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseService struct {
	purchaseRepo repository.PurchaseRepository
	seriesRepo   repository.SeriesRepository
	testRepo     repository.TestRepository
	currency     string
	now          func() time.Time
}

func NewPurchaseService(
	purchaseRepo repository.PurchaseRepository,
	seriesRepo repository.SeriesRepository,
	testRepo repository.TestRepository,
	currency string,
) *PurchaseService {
	return &PurchaseService{
		purchaseRepo: purchaseRepo,
		seriesRepo:   seriesRepo,
		testRepo:     testRepo,
		currency:     currency,
		now:          time.Now,
	}
}

type CreatePurchaseRequest struct {
	SeriesID string `json:"series_id"`
	TestID   string `json:"test_id"`
}

type PurchaseListResponse struct {
	Purchases []model.Purchase `json:"purchases"`
	Total     int              `json:"total"`
	Page      int              `json:"page"`
	PageSize  int              `json:"page_size"`
}

// Create opens a pending purchase of exactly one series or test at its
// current price.
func (s *PurchaseService) Create(ctx context.Context, user *model.User, req CreatePurchaseRequest) (*model.Purchase, error) {
	if (req.SeriesID == "") == (req.TestID == "") {
		return nil, common.Errorf("exactly one of series_id or test_id is required: %w", common.ErrBadRequest)
	}

	purchase := &model.Purchase{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		Currency:         s.currency,
		Status:           model.PurchasePending,
		PaymentReference: "pay_" + uuid.NewString(),
	}

	var (
		amount  decimal.Decimal
		already bool
		err     error
	)
	if req.SeriesID != "" {
		amount, err = s.seriesPrice(ctx, req.SeriesID)
		if err != nil {
			return nil, err
		}
		already, err = s.purchaseRepo.HasValidSeriesPurchase(ctx, user.ID, req.SeriesID, s.now())
		purchase.SeriesID = &req.SeriesID
	} else {
		amount, err = s.testPrice(ctx, req.TestID)
		if err != nil {
			return nil, err
		}
		already, err = s.purchaseRepo.HasValidTestPurchase(ctx, user.ID, req.TestID, s.now())
		purchase.TestID = &req.TestID
	}
	if err != nil {
		return nil, err
	}
	if already {
		return nil, common.Errorf("already purchased: %w", common.ErrConflict)
	}
	purchase.Amount = amount

	if err := s.purchaseRepo.CreatePurchase(ctx, purchase); err != nil {
		return nil, err
	}
	log.Printf("INFO: Purchase %s created for user %s (%s %s)", purchase.ID, user.ID, amount.StringFixed(2), s.currency)
	return purchase, nil
}

func (s *PurchaseService) seriesPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	series, err := s.seriesRepo.FindSeriesByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !series.IsPublished {
		return decimal.Zero, common.ErrNotFound
	}
	if series.IsFree() {
		return decimal.Zero, common.Errorf("series is free, subscribe instead: %w", common.ErrBadRequest)
	}
	return series.DiscountPrice(), nil
}

func (s *PurchaseService) testPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	test, err := s.testRepo.FindTestByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !test.IsPublished {
		return decimal.Zero, common.ErrNotFound
	}
	if !test.IsPaid || !test.Price.IsPositive() {
		return decimal.Zero, common.Errorf("test is free: %w", common.ErrBadRequest)
	}
	return test.Price, nil
}

func (s *PurchaseService) MyPurchases(ctx context.Context, userID string) ([]model.Purchase, error) {
	return s.purchaseRepo.ListByUser(ctx, userID)
}

func (s *PurchaseService) ListAll(ctx context.Context, status string, page, pageSize int) (*PurchaseListResponse, error) {
	if status != "" && !model.IsValidPurchaseStatus(status) {
		return nil, common.Errorf("unknown status %q: %w", status, common.ErrBadRequest)
	}
	limit, offset := repository.Page(page, pageSize, 100)
	purchases, total, err := s.purchaseRepo.ListPurchases(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return &PurchaseListResponse{Purchases: purchases, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}
