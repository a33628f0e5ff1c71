package service

import (
	"context"
	"errors"
	"testing"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/scoring"

	"github.com/shopspring/decimal"
)

type attemptEnv struct {
	svc         *AttemptService
	tests       *fakeTestRepo
	attempts    *fakeAttemptRepo
	series      *fakeSeriesRepo
	purchases   *fakePurchaseRepo
	leaderboard *fakeLeaderboardRepo
}

func physicsTest() *model.Test {
	return &model.Test{
		ID:          "test-1",
		Title:       "Kinematics",
		IsPublished: true,
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionShortAnswer, CorrectAnswer: model.Answer{"x"}, Marks: 5},
			{ID: "q2", Type: model.QuestionShortAnswer, CorrectAnswer: model.Answer{"y"}, Marks: 10},
		},
	}
}

func newAttemptEnv(tests ...*model.Test) *attemptEnv {
	env := &attemptEnv{
		tests:       newFakeTestRepo(tests...),
		attempts:    newFakeAttemptRepo(),
		series:      newFakeSeriesRepo(),
		leaderboard: newFakeLeaderboardRepo(),
	}
	env.purchases = newFakePurchaseRepo()
	env.purchases.members = env.series

	access := NewAccessService(env.purchases)
	access.now = clock
	lb := NewLeaderboardService(env.leaderboard, env.attempts, env.series, nil, 0)
	lb.now = clock
	env.svc = NewAttemptService(env.tests, env.attempts, env.series, access, lb)
	env.svc.now = clock
	return env
}

var student = &model.User{ID: "student-1", Role: model.RoleStudent}

func TestSubmitScoresAndRecords(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	env.series.members["series-1"] = []string{"test-1"}

	res, err := env.svc.Submit(context.Background(), student, "test-1", SubmitRequest{
		Answers: map[string]model.Answer{"q1": {"x"}, "q2": {"wrong"}, "q9": {"ignored"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Score != 5 || res.Total != 15 || res.Percent != 33 || res.IsPassed || res.Correct != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.TimeTaken != 600 {
		t.Errorf("time taken = %d, want 600", res.TimeTaken)
	}
	if _, ok := res.Attempt.Answers["q9"]; ok {
		t.Error("answer for unknown question was stored")
	}
	if res.Attempt.Status != model.AttemptCompleted || res.Attempt.CompletedAt == nil {
		t.Errorf("attempt not completed: %+v", res.Attempt)
	}

	if got := len(env.leaderboard.samples); got != 2 {
		t.Fatalf("leaderboard samples = %d, want test and series scope", got)
	}
	week := env.leaderboard.entry("student-1", model.ScopeSeries, "series-1", model.TimeRangeWeek,
		scoring.BucketStart(model.TimeRangeWeek, fixedNow))
	if week == nil || week.Score != 33 {
		t.Errorf("series week entry = %+v", week)
	}
	if p, ok := env.series.progress["student-1|series-1|test-1"]; !ok || p.Percentage != 33 {
		t.Errorf("series progress = %+v", p)
	}
}

func TestSubmitTwiceConflicts(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	ctx := context.Background()
	req := SubmitRequest{Answers: map[string]model.Answer{"q1": {"x"}}}

	if _, err := env.svc.Submit(ctx, student, "test-1", req); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := env.svc.Submit(ctx, student, "test-1", req)
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("second submit err = %v, want conflict", err)
	}
	if got := len(env.leaderboard.samples); got != 1 {
		t.Errorf("leaderboard updated %d times, want 1", got)
	}
}

// racingAttemptRepo finalizes the attempt behind the caller's back right
// after handing it out.
type racingAttemptRepo struct {
	*fakeAttemptRepo
}

func (r racingAttemptRepo) FindOrCreateInProgress(ctx context.Context, a *model.TestAttempt) (*model.TestAttempt, error) {
	open, err := r.fakeAttemptRepo.FindOrCreateInProgress(ctx, a)
	if err != nil {
		return nil, err
	}
	r.attempts[open.ID].Status = model.AttemptCompleted
	return open, nil
}

func TestSubmitLosesRaceToConcurrentFinalize(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	env.svc.attemptRepo = racingAttemptRepo{env.attempts}

	_, err := env.svc.Submit(context.Background(), student, "test-1", SubmitRequest{})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if len(env.leaderboard.samples) != 0 {
		t.Error("losing request must not touch the leaderboard")
	}
}

func TestSubmitPaidTestRequiresPurchase(t *testing.T) {
	paid := physicsTest()
	paid.IsPaid = true
	paid.Price = decimal.NewFromInt(99)
	env := newAttemptEnv(paid)

	_, err := env.svc.Submit(context.Background(), student, "test-1", SubmitRequest{})
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}

	seriesID := "series-1"
	env.series.members[seriesID] = []string{"test-1"}
	env.purchases.purchases["p1"] = &model.Purchase{
		ID: "p1", UserID: student.ID, SeriesID: &seriesID, Status: model.PurchaseCompleted, AccessGranted: true,
	}
	if _, err := env.svc.Submit(context.Background(), student, "test-1", SubmitRequest{}); err != nil {
		t.Fatalf("submit after purchase: %v", err)
	}
}

func TestSubmitUnknownTest(t *testing.T) {
	env := newAttemptEnv()
	_, err := env.svc.Submit(context.Background(), student, "missing", SubmitRequest{})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestSubmitSurvivesProgressFailure(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	env.series.members["series-1"] = []string{"test-1"}
	env.series.progressErr = errors.New("connection reset")

	if _, err := env.svc.Submit(context.Background(), student, "test-1", SubmitRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := env.attempts.FindCompleted(context.Background(), "test-1", student.ID); err != nil {
		t.Errorf("attempt was not kept: %v", err)
	}
}

func TestAutosaveMergesAnswers(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	ctx := context.Background()
	remaining := 120

	if _, err := env.svc.Autosave(ctx, student, "test-1", SubmitRequest{Answers: map[string]model.Answer{"q1": {"x"}}}); err != nil {
		t.Fatal(err)
	}
	a, err := env.svc.Autosave(ctx, student, "test-1", SubmitRequest{
		Answers:       map[string]model.Answer{"q2": {"y"}},
		TimeRemaining: &remaining,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Answers) != 2 || *a.TimeRemainingSeconds != 120 {
		t.Errorf("attempt = %+v", a)
	}

	res, err := env.svc.Submit(ctx, student, "test-1", SubmitRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 15 || !res.IsPassed {
		t.Errorf("autosaved answers not scored: %+v", res)
	}
}

func TestStartHidesAnswerKeys(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	resp, err := env.svc.Start(context.Background(), student, "test-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range resp.Test.Questions {
		if len(q.CorrectAnswer) != 0 {
			t.Errorf("question %s exposes its key", q.ID)
		}
	}
}

func TestGetAttemptVisibility(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	ctx := context.Background()
	res, err := env.svc.Submit(ctx, student, "test-1", SubmitRequest{Answers: map[string]model.Answer{"q1": {"x"}}})
	if err != nil {
		t.Fatal(err)
	}

	other := &model.User{ID: "student-2", Role: model.RoleStudent}
	if _, err := env.svc.GetAttempt(ctx, other, res.Attempt.ID); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("other student err = %v", err)
	}
	review, err := env.svc.GetAttempt(ctx, student, res.Attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(review.Questions) != 2 || review.Questions[0].CorrectAnswer.Single() != "x" {
		t.Errorf("review = %+v", review.Questions)
	}
}

func TestRescoreTestAppliesNewKey(t *testing.T) {
	env := newAttemptEnv(physicsTest())
	ctx := context.Background()
	if _, err := env.svc.Submit(ctx, student, "test-1", SubmitRequest{Answers: map[string]model.Answer{"q1": {"x"}, "q2": {"z"}}}); err != nil {
		t.Fatal(err)
	}

	env.tests.tests["test-1"].Questions[1].CorrectAnswer = model.Answer{"z"}
	changed, err := env.svc.RescoreTest(ctx, "test-1")
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}
	a, _ := env.attempts.FindCompleted(ctx, "test-1", student.ID)
	if a.Score != 15 || a.Percentage != 100 || !a.IsPassed {
		t.Errorf("rescored attempt = %+v", a)
	}
	all := env.leaderboard.entry(student.ID, model.ScopeTest, "test-1", model.TimeRangeAll,
		scoring.BucketStart(model.TimeRangeAll, fixedNow))
	if all == nil || all.Score != 100 || all.Attempts != 1 {
		t.Errorf("rebuilt entry = %+v", all)
	}
}
