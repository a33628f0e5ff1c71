package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

type SeriesService struct {
	seriesRepo repository.SeriesRepository
	testRepo   repository.TestRepository
	access     *AccessService
}

func NewSeriesService(seriesRepo repository.SeriesRepository, testRepo repository.TestRepository, access *AccessService) *SeriesService {
	return &SeriesService{seriesRepo: seriesRepo, testRepo: testRepo, access: access}
}

type SeriesRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Subject         string          `json:"subject"`
	Grade           string          `json:"grade"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ValidityDays    int             `json:"validity_days"`
	IsPublished     bool            `json:"is_published"`
}

type AddSeriesTestRequest struct {
	TestID   string `json:"test_id"`
	Position *int   `json:"position"`
}

type SeriesListResponse struct {
	Series   []model.SeriesView `json:"series"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

type SeriesProgressResponse struct {
	SeriesID       string                 `json:"series_id"`
	TotalTests     int                    `json:"total_tests"`
	CompletedTests int                    `json:"completed_tests"`
	PassedTests    int                    `json:"passed_tests"`
	Tests          []model.SeriesProgress `json:"tests"`
}

var hundredPercent = decimal.NewFromInt(100)

func validateSeriesRequest(req *SeriesRequest) error {
	var problems []string
	if strings.TrimSpace(req.Title) == "" {
		problems = append(problems, "title is required")
	}
	if req.Price.IsNegative() {
		problems = append(problems, "price cannot be negative")
	}
	if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(hundredPercent) {
		problems = append(problems, "discount_percent must be between 0 and 100")
	}
	if req.ValidityDays < 0 {
		problems = append(problems, "validity_days cannot be negative")
	}
	if len(problems) > 0 {
		return &common.ValidationError{Problems: problems}
	}
	return nil
}

func applySeriesRequest(s *model.TestSeries, req SeriesRequest) {
	s.Title = strings.TrimSpace(req.Title)
	s.Description = req.Description
	s.Subject = strings.TrimSpace(req.Subject)
	s.Grade = strings.TrimSpace(req.Grade)
	s.Price = req.Price
	s.DiscountPercent = req.DiscountPercent
	s.ValidityDays = req.ValidityDays
	s.IsPublished = req.IsPublished
}

// List shows unpublished series to staff only. viewer may be nil.
func (s *SeriesService) List(ctx context.Context, viewer *model.User, page, pageSize int) (*SeriesListResponse, error) {
	limit, offset := repository.Page(page, pageSize, 100)
	series, total, err := s.seriesRepo.ListSeries(ctx, viewer == nil || !viewer.IsStaff(), limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]model.SeriesView, len(series))
	for i := range series {
		views[i] = model.NewSeriesView(&series[i])
	}
	return &SeriesListResponse{Series: views, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

func (s *SeriesService) find(ctx context.Context, idOrSlug string) (*model.TestSeries, error) {
	if _, err := uuid.Parse(idOrSlug); err == nil {
		return s.seriesRepo.FindSeriesByID(ctx, idOrSlug)
	}
	return s.seriesRepo.FindSeriesBySlug(ctx, idOrSlug)
}

// Get loads a series by id or slug together with its tests. Answer keys are
// never included.
func (s *SeriesService) Get(ctx context.Context, viewer *model.User, idOrSlug string) (*model.SeriesView, error) {
	series, err := s.find(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if !series.IsPublished && !canManage(viewer, series.CreatedByID) && (viewer == nil || !viewer.IsStaff()) {
		return nil, common.ErrNotFound
	}
	tests, err := s.seriesRepo.ListSeriesTests(ctx, series.ID)
	if err != nil {
		return nil, err
	}
	for i := range tests {
		tests[i] = *tests[i].WithoutAnswerKeys()
	}
	series.Tests = tests
	series.TotalTests = len(tests)
	view := model.NewSeriesView(series)
	return &view, nil
}

func (s *SeriesService) Create(ctx context.Context, creator *model.User, req SeriesRequest) (*model.TestSeries, error) {
	if err := validateSeriesRequest(&req); err != nil {
		return nil, err
	}
	series := &model.TestSeries{ID: uuid.NewString(), CreatedByID: &creator.ID}
	applySeriesRequest(series, req)
	series.Slug = slug.Make(series.Title)

	err := s.seriesRepo.CreateSeries(ctx, series)
	if errors.Is(err, common.ErrConflict) {
		series.Slug = series.Slug + "-" + series.ID[:8]
		err = s.seriesRepo.CreateSeries(ctx, series)
	}
	if err != nil {
		return nil, common.Errorf("failed to create series: %w", err)
	}
	log.Printf("INFO: Series %s created by %s", series.ID, creator.ID)
	return series, nil
}

func (s *SeriesService) loadManaged(ctx context.Context, actor *model.User, id string) (*model.TestSeries, error) {
	series, err := s.seriesRepo.FindSeriesByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, series.CreatedByID) {
		return nil, common.Errorf("only the creator or an admin can edit this series: %w", common.ErrForbidden)
	}
	return series, nil
}

func (s *SeriesService) Update(ctx context.Context, actor *model.User, id string, req SeriesRequest) (*model.TestSeries, error) {
	series, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validateSeriesRequest(&req); err != nil {
		return nil, err
	}
	applySeriesRequest(series, req)
	if err := s.seriesRepo.UpdateSeries(ctx, series); err != nil {
		return nil, common.Errorf("failed to update series: %w", err)
	}
	return series, nil
}

// AddTest appends a test to the series unless a position is given.
func (s *SeriesService) AddTest(ctx context.Context, actor *model.User, seriesID string, req AddSeriesTestRequest) error {
	series, err := s.loadManaged(ctx, actor, seriesID)
	if err != nil {
		return err
	}
	if req.TestID == "" {
		return common.Errorf("test_id is required: %w", common.ErrBadRequest)
	}
	if _, err := s.testRepo.FindTestByID(ctx, req.TestID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Errorf("test not found: %w", common.ErrNotFound)
		}
		return err
	}
	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		tests, err := s.seriesRepo.ListSeriesTests(ctx, series.ID)
		if err != nil {
			return err
		}
		position = len(tests) + 1
	}
	return s.seriesRepo.AddTest(ctx, series.ID, req.TestID, position)
}

func (s *SeriesService) RemoveTest(ctx context.Context, actor *model.User, seriesID, testID string) error {
	if _, err := s.loadManaged(ctx, actor, seriesID); err != nil {
		return err
	}
	return s.seriesRepo.RemoveTest(ctx, seriesID, testID)
}

// Subscribe enrolls the user in a free series. Paid series need a purchase.
func (s *SeriesService) Subscribe(ctx context.Context, user *model.User, seriesID string) error {
	series, err := s.seriesRepo.FindSeriesByID(ctx, seriesID)
	if err != nil {
		return err
	}
	if !series.IsPublished {
		return common.ErrNotFound
	}
	if !series.IsFree() {
		ok, err := s.access.HasPurchased(ctx, user.ID, series.ID)
		if err != nil {
			return err
		}
		if !ok {
			return common.Errorf("purchase required: %w", common.ErrForbidden)
		}
	}
	return s.seriesRepo.Subscribe(ctx, user.ID, series.ID)
}

func (s *SeriesService) CheckAccess(ctx context.Context, user *model.User, seriesID string) (model.AccessDecision, error) {
	series, err := s.find(ctx, seriesID)
	if err != nil {
		return model.AccessDecision{}, err
	}
	return s.access.CheckSeriesAccess(ctx, user, series)
}

func (s *SeriesService) Progress(ctx context.Context, userID, seriesID string) (*SeriesProgressResponse, error) {
	series, err := s.seriesRepo.FindSeriesByID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	progress, err := s.seriesRepo.ListProgress(ctx, userID, series.ID)
	if err != nil {
		return nil, err
	}
	resp := &SeriesProgressResponse{
		SeriesID:       series.ID,
		TotalTests:     series.TotalTests,
		CompletedTests: len(progress),
		Tests:          progress,
	}
	for _, p := range progress {
		if p.IsPassed {
			resp.PassedTests++
		}
	}
	return resp, nil
}

// MySeries lists series the user subscribed to or bought.
func (s *SeriesService) MySeries(ctx context.Context, userID string) ([]model.SeriesView, error) {
	series, err := s.seriesRepo.ListSeriesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]model.SeriesView, len(series))
	for i := range series {
		views[i] = model.NewSeriesView(&series[i])
	}
	return views, nil
}
