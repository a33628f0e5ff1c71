package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"
	"testseries/internal/domain/scoring"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// RescoreScheduler queues a re-evaluation of a test's completed attempts.
type RescoreScheduler interface {
	EnqueueRescore(ctx context.Context, testID string) (*model.MaintenanceJob, error)
}

type TestService struct {
	testRepo repository.TestRepository
	jobs     RescoreScheduler
}

func NewTestService(testRepo repository.TestRepository, jobs RescoreScheduler) *TestService {
	return &TestService{testRepo: testRepo, jobs: jobs}
}

type TestRequest struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Subject         string           `json:"subject"`
	Grade           string           `json:"grade"`
	DurationMinutes int              `json:"duration_minutes"`
	PassingScore    *int             `json:"passing_score"`
	IsPaid          bool             `json:"is_paid"`
	Price           decimal.Decimal  `json:"price"`
	IsPublished     bool             `json:"is_published"`
	Tags            []string         `json:"tags"`
	Questions       []model.Question `json:"questions"`
}

type ListTestsParams struct {
	Subject  string
	Grade    string
	Search   string
	Page     int
	PageSize int
}

type TestListResponse struct {
	Tests    []model.Test `json:"tests"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

func (s *TestService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.testRepo.ListCategories(ctx)
}

// ListTests shows unpublished tests to staff only. viewer may be nil.
func (s *TestService) ListTests(ctx context.Context, viewer *model.User, p ListTestsParams) (*TestListResponse, error) {
	limit, offset := repository.Page(p.Page, p.PageSize, 100)
	tests, total, err := s.testRepo.ListTests(ctx, repository.TestFilter{
		Subject:       p.Subject,
		Grade:         p.Grade,
		Search:        strings.TrimSpace(p.Search),
		PublishedOnly: viewer == nil || !viewer.IsStaff(),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, err
	}
	return &TestListResponse{Tests: tests, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

// GetTest strips answer keys unless the viewer is an admin or the creator.
func (s *TestService) GetTest(ctx context.Context, viewer *model.User, id string) (*model.Test, error) {
	test, err := s.testRepo.FindTestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if canManage(viewer, test.CreatedByID) {
		return test, nil
	}
	if !test.IsPublished && (viewer == nil || !viewer.IsStaff()) {
		return nil, common.ErrNotFound
	}
	return test.WithoutAnswerKeys(), nil
}

func (s *TestService) CreateTest(ctx context.Context, creator *model.User, req TestRequest) (*model.Test, error) {
	questions, err := validateTestRequest(&req)
	if err != nil {
		return nil, err
	}

	test := &model.Test{
		ID:          uuid.NewString(),
		CreatedByID: &creator.ID,
	}
	applyTestRequest(test, req, questions)

	if err := s.createWithUniqueSlug(ctx, test); err != nil {
		return nil, err
	}
	log.Printf("INFO: Test %s created by %s with %d questions", test.ID, creator.ID, len(test.Questions))
	return test, nil
}

func (s *TestService) createWithUniqueSlug(ctx context.Context, test *model.Test) error {
	err := s.testRepo.CreateTest(ctx, nil, test)
	if errors.Is(err, common.ErrConflict) {
		test.Slug = test.Slug + "-" + test.ID[:8]
		err = s.testRepo.CreateTest(ctx, nil, test)
	}
	if err != nil {
		return common.Errorf("failed to create test: %w", err)
	}
	return nil
}

// UpdateTest replaces the test. Changing any answer key queues a rescore of
// attempts already submitted.
func (s *TestService) UpdateTest(ctx context.Context, actor *model.User, id string, req TestRequest) (*model.Test, error) {
	test, err := s.testRepo.FindTestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, test.CreatedByID) {
		return nil, common.Errorf("only the creator or an admin can edit this test: %w", common.ErrForbidden)
	}
	questions, err := validateTestRequest(&req)
	if err != nil {
		return nil, err
	}

	keysChanged := answerKeysChanged(test.Questions, questions)
	titleChanged := test.Title != req.Title
	applyTestRequest(test, req, questions)
	if titleChanged {
		test.Slug = slug.Make(req.Title) + "-" + test.ID[:8]
	}

	if err := s.testRepo.UpdateTest(ctx, nil, test); err != nil {
		return nil, common.Errorf("failed to update test: %w", err)
	}

	if keysChanged && s.jobs != nil {
		if _, err := s.jobs.EnqueueRescore(ctx, test.ID); err != nil {
			log.Printf("ERROR: Failed to enqueue rescore for test %s: %v", test.ID, err)
		}
	}
	return test, nil
}

func (s *TestService) SetPublished(ctx context.Context, actor *model.User, id string, published bool) (*model.Test, error) {
	test, err := s.testRepo.FindTestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, test.CreatedByID) {
		return nil, common.Errorf("only the creator or an admin can publish this test: %w", common.ErrForbidden)
	}
	if err := s.testRepo.SetPublished(ctx, id, published); err != nil {
		return nil, err
	}
	test.IsPublished = published
	return test, nil
}

// canManage is true for admins and for the user who created the resource.
func canManage(user *model.User, createdBy *string) bool {
	if user == nil {
		return false
	}
	return user.Role == model.RoleAdmin || (createdBy != nil && *createdBy == user.ID)
}

func applyTestRequest(test *model.Test, req TestRequest, questions []model.Question) {
	test.Title = strings.TrimSpace(req.Title)
	if test.Slug == "" {
		test.Slug = slug.Make(test.Title)
	}
	test.Description = req.Description
	test.Subject = strings.TrimSpace(req.Subject)
	test.Grade = strings.TrimSpace(req.Grade)
	test.DurationMinutes = req.DurationMinutes
	test.PassingScore = req.PassingScore
	test.IsPaid = req.IsPaid
	test.Price = req.Price
	test.IsPublished = req.IsPublished
	test.Tags = req.Tags
	if test.Tags == nil {
		test.Tags = []string{}
	}
	test.Questions = questions
	test.QuestionCount = len(questions)
	test.TotalMarks = 0
	for _, q := range questions {
		test.TotalMarks += q.Marks
	}
}

// validateTestRequest checks the request and returns normalized questions:
// ids assigned, option ids assigned, marks defaulted to 1.
func validateTestRequest(req *TestRequest) ([]model.Question, error) {
	var problems []string
	if strings.TrimSpace(req.Title) == "" {
		problems = append(problems, "title is required")
	}
	if req.DurationMinutes <= 0 {
		problems = append(problems, "duration_minutes must be positive")
	}
	if req.PassingScore != nil && (*req.PassingScore < 0 || *req.PassingScore > 100) {
		problems = append(problems, "passing_score must be between 0 and 100")
	}
	if req.Price.IsNegative() {
		problems = append(problems, "price cannot be negative")
	}
	if req.IsPaid && !req.Price.IsPositive() {
		problems = append(problems, "a paid test needs a price")
	}
	if len(req.Questions) == 0 {
		problems = append(problems, "at least one question is required")
	}

	questions := make([]model.Question, len(req.Questions))
	seen := make(map[string]bool)
	for i, q := range req.Questions {
		label := fmt.Sprintf("question %d", i+1)
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if seen[q.ID] {
			problems = append(problems, label+": duplicate id "+q.ID)
		}
		seen[q.ID] = true

		if strings.TrimSpace(q.Text) == "" {
			problems = append(problems, label+": text is required")
		}
		q.Type = strings.ToLower(strings.TrimSpace(q.Type))
		if !model.IsValidQuestionType(q.Type) {
			problems = append(problems, label+": unsupported type "+q.Type)
		}
		if q.Marks < 0 {
			problems = append(problems, label+": marks cannot be negative")
		}
		if q.Marks == 0 {
			q.Marks = 1
		}
		for j := range q.Options {
			if q.Options[j].ID == "" {
				q.Options[j].ID = fmt.Sprintf("opt%d", j+1)
			}
		}
		if len(q.CorrectAnswer) == 0 || strings.TrimSpace(strings.Join(q.CorrectAnswer, "")) == "" {
			problems = append(problems, label+": correct_answer is required")
		} else if (q.Type == model.QuestionMCQ || q.Type == model.QuestionMultiSelect) && len(q.Options) < 2 {
			problems = append(problems, label+": "+q.Type+" needs at least two options")
		} else if (q.Type == model.QuestionMCQ || q.Type == model.QuestionMultiSelect) && !keyMatchesOptions(q) {
			problems = append(problems, label+": correct_answer does not match any option")
		}
		questions[i] = q
	}

	if len(problems) > 0 {
		return nil, &common.ValidationError{Problems: problems}
	}
	return questions, nil
}

// keyMatchesOptions reports whether every key value names an option by id
// or text.
func keyMatchesOptions(q model.Question) bool {
	values := []string(q.CorrectAnswer)
	if q.Type == model.QuestionMultiSelect {
		values = scoring.SplitSelection(q, q.CorrectAnswer)
	}
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		found := false
		for _, o := range q.Options {
			if v == strings.ToLower(strings.TrimSpace(o.ID)) || v == strings.ToLower(strings.TrimSpace(o.Text)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func answerKeysChanged(old, updated []model.Question) bool {
	if len(old) != len(updated) {
		return true
	}
	byID := make(map[string]model.Question, len(old))
	for _, q := range old {
		byID[q.ID] = q
	}
	for _, q := range updated {
		prev, ok := byID[q.ID]
		if !ok || prev.Type != q.Type || prev.Marks != q.Marks ||
			strings.Join(prev.CorrectAnswer, "\x00") != strings.Join(q.CorrectAnswer, "\x00") ||
			len(prev.Options) != len(q.Options) {
			return true
		}
		for i := range q.Options {
			if prev.Options[i] != q.Options[i] {
				return true
			}
		}
	}
	return false
}
