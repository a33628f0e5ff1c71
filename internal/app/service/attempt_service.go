package service

import (
	"context"
	"errors"
	"log"
	"time"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"
	"testseries/internal/domain/scoring"

	"github.com/google/uuid"
)

type AttemptService struct {
	testRepo    repository.TestRepository
	attemptRepo repository.AttemptRepository
	seriesRepo  repository.SeriesRepository
	access      *AccessService
	leaderboard *LeaderboardService
	now         func() time.Time
}

func NewAttemptService(
	testRepo repository.TestRepository,
	attemptRepo repository.AttemptRepository,
	seriesRepo repository.SeriesRepository,
	access *AccessService,
	leaderboard *LeaderboardService,
) *AttemptService {
	return &AttemptService{
		testRepo:    testRepo,
		attemptRepo: attemptRepo,
		seriesRepo:  seriesRepo,
		access:      access,
		leaderboard: leaderboard,
		now:         time.Now,
	}
}

type SubmitRequest struct {
	Answers       map[string]model.Answer `json:"answers"`
	TimeRemaining *int                    `json:"time_remaining"`
}

type StartResponse struct {
	Attempt *model.TestAttempt `json:"attempt"`
	Test    *model.Test        `json:"test"`
}

type SubmitResponse struct {
	Attempt   *model.TestAttempt     `json:"attempt"`
	Score     int                    `json:"score"`
	Total     int                    `json:"total_marks"`
	Percent   int                    `json:"percentage"`
	Correct   int                    `json:"correct_answers"`
	IsPassed  bool                   `json:"is_passed"`
	TimeTaken int                    `json:"time_taken"`
	Questions []model.QuestionResult `json:"questions"`
}

type HistoryResponse struct {
	History  []model.HistoryItem `json:"history"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

type AttemptReview struct {
	Attempt   *model.TestAttempt     `json:"attempt"`
	Questions []model.QuestionResult `json:"questions,omitempty"`
}

// loadForAttempt returns the test once the user is allowed to take it.
func (s *AttemptService) loadForAttempt(ctx context.Context, user *model.User, testID string) (*model.Test, error) {
	test, err := s.testRepo.FindTestByID(ctx, testID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("test not found: %w", common.ErrNotFound)
		}
		return nil, err
	}
	decision, err := s.access.CheckTestAccess(ctx, user, test)
	if err != nil {
		return nil, err
	}
	if !decision.HasAccess {
		return nil, common.Errorf("access denied (%s): %w", decision.Reason, common.ErrForbidden)
	}
	return test, nil
}

// CheckAccess reports the access decision for a test without starting it.
func (s *AttemptService) CheckAccess(ctx context.Context, user *model.User, testID string) (model.AccessDecision, error) {
	test, err := s.testRepo.FindTestByID(ctx, testID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return model.AccessDecision{}, common.Errorf("test not found: %w", common.ErrNotFound)
		}
		return model.AccessDecision{}, err
	}
	return s.access.CheckTestAccess(ctx, user, test)
}

func (s *AttemptService) ensureNotCompleted(ctx context.Context, testID, userID string) error {
	_, err := s.attemptRepo.FindCompleted(ctx, testID, userID)
	if err == nil {
		return common.Errorf("test already submitted: %w", common.ErrConflict)
	}
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}

func (s *AttemptService) openAttempt(ctx context.Context, testID, userID string, timeRemaining *int) (*model.TestAttempt, error) {
	return s.attemptRepo.FindOrCreateInProgress(ctx, &model.TestAttempt{
		ID:                   uuid.NewString(),
		TestID:               testID,
		UserID:               userID,
		Answers:              map[string]model.Answer{},
		TimeRemainingSeconds: timeRemaining,
	})
}

func mergeAnswers(attempt *model.TestAttempt, answers map[string]model.Answer) {
	if attempt.Answers == nil {
		attempt.Answers = make(map[string]model.Answer, len(answers))
	}
	for id, a := range answers {
		attempt.Answers[id] = a
	}
}

func (s *AttemptService) Start(ctx context.Context, user *model.User, testID string) (*StartResponse, error) {
	test, err := s.loadForAttempt(ctx, user, testID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotCompleted(ctx, test.ID, user.ID); err != nil {
		return nil, err
	}
	attempt, err := s.openAttempt(ctx, test.ID, user.ID, nil)
	if err != nil {
		return nil, err
	}
	return &StartResponse{Attempt: attempt, Test: test.WithoutAnswerKeys()}, nil
}

// Autosave merges answers into the open attempt, opening one if needed.
func (s *AttemptService) Autosave(ctx context.Context, user *model.User, testID string, req SubmitRequest) (*model.TestAttempt, error) {
	test, err := s.loadForAttempt(ctx, user, testID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotCompleted(ctx, test.ID, user.ID); err != nil {
		return nil, err
	}
	attempt, err := s.openAttempt(ctx, test.ID, user.ID, req.TimeRemaining)
	if err != nil {
		return nil, err
	}
	answers := knownAnswers(test, req.Answers)
	if err := s.attemptRepo.SaveProgress(ctx, attempt.ID, answers, req.TimeRemaining); err != nil {
		return nil, err
	}
	mergeAnswers(attempt, answers)
	if req.TimeRemaining != nil {
		attempt.TimeRemainingSeconds = req.TimeRemaining
	}
	return attempt, nil
}

// Submit scores and finalizes the caller's attempt. Leaderboard and series
// progress are updated afterwards; their failures are logged only.
func (s *AttemptService) Submit(ctx context.Context, user *model.User, testID string, req SubmitRequest) (*SubmitResponse, error) {
	test, err := s.loadForAttempt(ctx, user, testID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotCompleted(ctx, test.ID, user.ID); err != nil {
		return nil, err
	}
	attempt, err := s.openAttempt(ctx, test.ID, user.ID, req.TimeRemaining)
	if err != nil {
		return nil, err
	}

	mergeAnswers(attempt, knownAnswers(test, req.Answers))
	now := s.now()
	result := scoring.ScoreAttempt(test, attempt.Answers)
	applyResult(attempt, result)
	attempt.Status = model.AttemptCompleted
	attempt.TimeTakenSeconds = scoring.ElapsedSeconds(attempt.StartedAt, now)
	if req.TimeRemaining != nil {
		attempt.TimeRemainingSeconds = req.TimeRemaining
	}
	attempt.CompletedAt = &now

	if err := s.attemptRepo.Complete(ctx, attempt); err != nil {
		return nil, err
	}
	log.Printf("INFO: User %s submitted test %s: %d/%d (%d%%)", user.ID, test.ID, result.ObtainedMarks, result.TotalMarks, result.Percentage)

	s.afterCompletion(ctx, attempt)

	return &SubmitResponse{
		Attempt:   attempt,
		Score:     result.ObtainedMarks,
		Total:     result.TotalMarks,
		Percent:   result.Percentage,
		Correct:   result.CorrectAnswers,
		IsPassed:  result.IsPassed,
		TimeTaken: attempt.TimeTakenSeconds,
		Questions: result.Questions,
	}, nil
}

func (s *AttemptService) afterCompletion(ctx context.Context, attempt *model.TestAttempt) {
	seriesIDs, err := s.seriesRepo.SeriesIDsForTest(ctx, attempt.TestID)
	if err != nil {
		log.Printf("WARN: Failed to load series for test %s: %v", attempt.TestID, err)
	}
	if s.leaderboard != nil {
		if err := s.leaderboard.RecordAttempt(ctx, attempt, seriesIDs); err != nil {
			log.Printf("WARN: Failed to update leaderboard for attempt %s: %v", attempt.ID, err)
		}
	}
	for _, seriesID := range seriesIDs {
		if err := s.seriesRepo.UpsertProgress(ctx, attempt.UserID, progressFor(seriesID, attempt)); err != nil {
			log.Printf("WARN: Failed to update progress in series %s for attempt %s: %v", seriesID, attempt.ID, err)
		}
	}
}

func progressFor(seriesID string, a *model.TestAttempt) model.SeriesProgress {
	p := model.SeriesProgress{
		SeriesID:   seriesID,
		TestID:     a.TestID,
		AttemptID:  a.ID,
		Percentage: a.Percentage,
		IsPassed:   a.IsPassed,
	}
	if a.CompletedAt != nil {
		p.CompletedAt = *a.CompletedAt
	}
	return p
}

func applyResult(a *model.TestAttempt, r scoring.Result) {
	a.Score = r.ObtainedMarks
	a.TotalMarks = r.TotalMarks
	a.Percentage = r.Percentage
	a.CorrectAnswers = r.CorrectAnswers
	a.IsPassed = r.IsPassed
}

// knownAnswers drops answers for question ids the test does not have.
func knownAnswers(test *model.Test, answers map[string]model.Answer) map[string]model.Answer {
	out := make(map[string]model.Answer, len(answers))
	for id, a := range answers {
		if _, ok := test.FindQuestion(id); ok {
			out[id] = a
		}
	}
	return out
}

func (s *AttemptService) MyAttempts(ctx context.Context, userID, testID string) ([]model.TestAttempt, error) {
	return s.attemptRepo.ListByUserAndTest(ctx, userID, testID)
}

func (s *AttemptService) History(ctx context.Context, userID string, page, pageSize int) (*HistoryResponse, error) {
	limit, offset := repository.Page(page, pageSize, 100)
	items, total, err := s.attemptRepo.History(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{History: items, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

// GetAttempt is visible to its owner and to admins. Answer keys appear only
// once the attempt is completed.
func (s *AttemptService) GetAttempt(ctx context.Context, viewer *model.User, id string) (*AttemptReview, error) {
	attempt, err := s.attemptRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != viewer.ID && viewer.Role != model.RoleAdmin {
		return nil, common.Errorf("not your attempt: %w", common.ErrForbidden)
	}
	if !attempt.IsCompleted() {
		return &AttemptReview{Attempt: attempt}, nil
	}
	test, err := s.testRepo.FindTestByID(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	return &AttemptReview{Attempt: attempt, Questions: scoring.ScoreAttempt(test, attempt.Answers).Questions}, nil
}

// RescoreTest re-evaluates every completed attempt of a test against its
// current answer key and rebuilds the test's leaderboard.
func (s *AttemptService) RescoreTest(ctx context.Context, testID string) (int, error) {
	test, err := s.testRepo.FindTestByID(ctx, testID)
	if err != nil {
		return 0, err
	}
	attempts, err := s.attemptRepo.ListCompletedByTest(ctx, testID)
	if err != nil {
		return 0, err
	}
	seriesIDs, err := s.seriesRepo.SeriesIDsForTest(ctx, testID)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range attempts {
		a := &attempts[i]
		result := scoring.ScoreAttempt(test, a.Answers)
		if result.ObtainedMarks == a.Score && result.TotalMarks == a.TotalMarks &&
			result.IsPassed == a.IsPassed && result.Percentage == a.Percentage {
			continue
		}
		applyResult(a, result)
		if err := s.attemptRepo.UpdateScore(ctx, nil, a); err != nil {
			return changed, err
		}
		for _, seriesID := range seriesIDs {
			if err := s.seriesRepo.UpsertProgress(ctx, a.UserID, progressFor(seriesID, a)); err != nil {
				log.Printf("WARN: Failed to update progress in series %s for attempt %s: %v", seriesID, a.ID, err)
			}
		}
		changed++
	}
	log.Printf("INFO: Rescored test %s: %d of %d attempts changed", testID, changed, len(attempts))

	if s.leaderboard != nil {
		if err := s.leaderboard.RebuildTest(ctx, testID); err != nil {
			return changed, err
		}
	}
	return changed, nil
}
