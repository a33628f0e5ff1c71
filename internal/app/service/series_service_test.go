package service

import (
	"context"
	"errors"
	"testing"

	"testseries/internal/common"
	"testseries/internal/domain/model"

	"github.com/shopspring/decimal"
)

func newSeriesEnv(series ...*model.TestSeries) (*SeriesService, *fakeSeriesRepo, *fakePurchaseRepo) {
	seriesRepo := newFakeSeriesRepo(series...)
	purchases := newFakePurchaseRepo()
	access := NewAccessService(purchases)
	access.now = clock
	return NewSeriesService(seriesRepo, newFakeTestRepo(physicsTest()), access), seriesRepo, purchases
}

func TestSubscribePaidSeriesRequiresPurchase(t *testing.T) {
	paid := &model.TestSeries{ID: "series-1", IsPublished: true, Price: decimal.NewFromInt(299)}
	svc, repo, purchases := newSeriesEnv(paid)
	ctx := context.Background()

	err := svc.Subscribe(ctx, student, "series-1")
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if repo.subscriptions["student-1|series-1"] {
		t.Fatal("subscription stored without purchase")
	}

	seriesID := "series-1"
	purchases.purchases["p1"] = &model.Purchase{ID: "p1", UserID: student.ID, SeriesID: &seriesID, Status: model.PurchaseCompleted, AccessGranted: true}
	if err := svc.Subscribe(ctx, student, "series-1"); err != nil {
		t.Fatalf("subscribe after purchase: %v", err)
	}
}

func TestSubscribeFreeSeriesIsIdempotent(t *testing.T) {
	svc, repo, _ := newSeriesEnv(&model.TestSeries{ID: "series-1", IsPublished: true})
	for i := 0; i < 2; i++ {
		if err := svc.Subscribe(context.Background(), student, "series-1"); err != nil {
			t.Fatalf("subscribe #%d: %v", i+1, err)
		}
	}
	if len(repo.subscriptions) != 1 {
		t.Errorf("subscriptions = %v", repo.subscriptions)
	}
}

func TestSeriesCreateAndManage(t *testing.T) {
	svc, repo, _ := newSeriesEnv()
	teacher := &model.User{ID: "teacher-1", Role: model.RoleTeacher}
	ctx := context.Background()

	_, err := svc.Create(ctx, teacher, SeriesRequest{Title: "", DiscountPercent: decimal.NewFromInt(120)})
	var verr *common.ValidationError
	if !errors.As(err, &verr) || len(verr.Problems) != 2 {
		t.Fatalf("err = %v, want two problems", err)
	}

	s, err := svc.Create(ctx, teacher, SeriesRequest{Title: "JEE Mains Physics", Price: decimal.NewFromInt(100), IsPublished: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Slug != "jee-mains-physics" {
		t.Errorf("slug = %q", s.Slug)
	}

	other := &model.User{ID: "teacher-2", Role: model.RoleTeacher}
	if err := svc.AddTest(ctx, other, s.ID, AddSeriesTestRequest{TestID: "test-1"}); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("foreign teacher err = %v", err)
	}
	if err := svc.AddTest(ctx, teacher, s.ID, AddSeriesTestRequest{TestID: "test-1"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddTest(ctx, teacher, s.ID, AddSeriesTestRequest{TestID: "nope"}); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("unknown test err = %v", err)
	}

	view, err := svc.Get(ctx, student, "jee-mains-physics")
	if err != nil {
		t.Fatal(err)
	}
	if view.TotalTests != 1 || !view.DiscountPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("view = %+v", view)
	}
	if len(repo.members[s.ID]) != 1 {
		t.Errorf("members = %v", repo.members[s.ID])
	}
}

func TestSeriesProgressCounts(t *testing.T) {
	svc, repo, _ := newSeriesEnv(&model.TestSeries{ID: "series-1", IsPublished: true})
	repo.members["series-1"] = []string{"t1", "t2", "t3"}
	repo.progress["student-1|series-1|t1"] = model.SeriesProgress{SeriesID: "series-1", TestID: "t1", IsPassed: true}
	repo.progress["student-1|series-1|t2"] = model.SeriesProgress{SeriesID: "series-1", TestID: "t2"}

	p, err := svc.Progress(context.Background(), student.ID, "series-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalTests != 3 || p.CompletedTests != 2 || p.PassedTests != 1 {
		t.Errorf("progress = %+v", p)
	}
}
