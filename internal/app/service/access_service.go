package service

import (
	"context"
	"time"

	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"
)

type AccessService struct {
	purchaseRepo repository.PurchaseRepository
	now          func() time.Time
}

func NewAccessService(purchaseRepo repository.PurchaseRepository) *AccessService {
	return &AccessService{purchaseRepo: purchaseRepo, now: time.Now}
}

// CheckTestAccess applies the rules in order: staff or creator, unpublished,
// free, bought through a series, bought directly.
func (s *AccessService) CheckTestAccess(ctx context.Context, user *model.User, test *model.Test) (model.AccessDecision, error) {
	if user.IsStaff() || test.IsOwnedBy(user.ID) {
		return model.NewAccessDecision(model.AccessAdminOrCreator), nil
	}
	if !test.IsPublished {
		return model.NewAccessDecision(model.AccessNotPublished), nil
	}
	if !test.IsPaid {
		return model.NewAccessDecision(model.AccessFreeTest), nil
	}

	now := s.now()
	ok, err := s.purchaseRepo.HasValidPurchaseOfSeriesContaining(ctx, user.ID, test.ID, now)
	if err != nil {
		return model.AccessDecision{}, err
	}
	if ok {
		return model.NewAccessDecision(model.AccessPurchasedSeries), nil
	}
	ok, err = s.purchaseRepo.HasValidTestPurchase(ctx, user.ID, test.ID, now)
	if err != nil {
		return model.AccessDecision{}, err
	}
	if ok {
		return model.NewAccessDecision(model.AccessPurchasedTest), nil
	}
	return model.NewAccessDecision(model.AccessNotPurchased), nil
}

func (s *AccessService) CheckSeriesAccess(ctx context.Context, user *model.User, series *model.TestSeries) (model.AccessDecision, error) {
	if user.IsStaff() || series.IsOwnedBy(user.ID) {
		return model.NewAccessDecision(model.AccessAdminOrCreator), nil
	}
	if !series.IsPublished {
		return model.NewAccessDecision(model.AccessNotPublished), nil
	}
	if series.IsFree() {
		return model.NewAccessDecision(model.AccessFreeTest), nil
	}
	ok, err := s.HasPurchased(ctx, user.ID, series.ID)
	if err != nil {
		return model.AccessDecision{}, err
	}
	if ok {
		return model.NewAccessDecision(model.AccessPurchasedSeries), nil
	}
	return model.NewAccessDecision(model.AccessNotPurchased), nil
}

// HasPurchased holds for a completed, granted and unexpired series purchase.
func (s *AccessService) HasPurchased(ctx context.Context, userID, seriesID string) (bool, error) {
	return s.purchaseRepo.HasValidSeriesPurchase(ctx, userID, seriesID, s.now())
}
