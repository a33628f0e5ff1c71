package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"
	"testseries/internal/domain/scoring"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardVersionKey   = "leaderboard:version"
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type LeaderboardService struct {
	leaderboardRepo repository.LeaderboardRepository
	attemptRepo     repository.AttemptRepository
	seriesRepo      repository.SeriesRepository
	rdb             *redis.Client // optional read cache
	cacheTTL        time.Duration
	now             func() time.Time
}

func NewLeaderboardService(
	leaderboardRepo repository.LeaderboardRepository,
	attemptRepo repository.AttemptRepository,
	seriesRepo repository.SeriesRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
) *LeaderboardService {
	return &LeaderboardService{
		leaderboardRepo: leaderboardRepo,
		attemptRepo:     attemptRepo,
		seriesRepo:      seriesRepo,
		rdb:             rdb,
		cacheTTL:        cacheTTL,
		now:             time.Now,
	}
}

type LeaderboardParams struct {
	TestID    string
	SeriesID  string
	TimeRange string
	Page      int
	Limit     int
}

type LeaderboardResponse struct {
	Leaderboard []model.LeaderboardRow `json:"leaderboard"`
	ScopeType   string                 `json:"scope_type,omitempty"`
	ScopeID     string                 `json:"scope_id,omitempty"`
	TimeRange   string                 `json:"time_range"`
	Total       int                    `json:"total"`
	Page        int                    `json:"page"`
	Limit       int                    `json:"limit"`
}

func (s *LeaderboardService) buildQuery(p LeaderboardParams) (model.LeaderboardQuery, int, error) {
	if p.TestID != "" && p.SeriesID != "" {
		return model.LeaderboardQuery{}, 0, common.Errorf("testId and seriesId are mutually exclusive: %w", common.ErrBadRequest)
	}
	if p.TimeRange == "" {
		p.TimeRange = model.TimeRangeAll
	}
	if !model.IsValidTimeRange(p.TimeRange) {
		return model.LeaderboardQuery{}, 0, common.Errorf("timeRange must be all, week or month: %w", common.ErrBadRequest)
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLeaderboardLimit
	}
	if p.Limit > maxLeaderboardLimit {
		p.Limit = maxLeaderboardLimit
	}

	q := model.LeaderboardQuery{
		TimeRange: p.TimeRange,
		Since:     scoring.BucketStart(p.TimeRange, s.now()),
		Limit:     p.Limit,
		Offset:    (p.Page - 1) * p.Limit,
	}
	switch {
	case p.TestID != "":
		q.ScopeType, q.ScopeID = model.ScopeTest, p.TestID
	case p.SeriesID != "":
		q.ScopeType, q.ScopeID = model.ScopeSeries, p.SeriesID
	}
	return q, p.Page, nil
}

func (s *LeaderboardService) GetLeaderboard(ctx context.Context, p LeaderboardParams) (*LeaderboardResponse, error) {
	q, page, err := s.buildQuery(p)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(ctx, q)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	rows, total, err := s.leaderboardRepo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	resp := &LeaderboardResponse{
		Leaderboard: rows,
		ScopeType:   q.ScopeType,
		ScopeID:     q.ScopeID,
		TimeRange:   q.TimeRange,
		Total:       total,
		Page:        page,
		Limit:       q.Limit,
	}
	s.toCache(ctx, key, resp)
	return resp, nil
}

// GetUserRank returns the caller's row in the requested leaderboard.
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID string, p LeaderboardParams) (*model.LeaderboardRow, error) {
	q, _, err := s.buildQuery(p)
	if err != nil {
		return nil, err
	}
	row, err := s.leaderboardRepo.FindRank(ctx, q, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("no leaderboard entry yet: %w", common.ErrNotFound)
		}
		return nil, err
	}
	return row, nil
}

// RecordAttempt folds a completed attempt into the test leaderboard and the
// leaderboard of every series containing the test.
func (s *LeaderboardService) RecordAttempt(ctx context.Context, a *model.TestAttempt, seriesIDs []string) error {
	base := sampleFromAttempt(a)

	var errs []error
	scopes := append([]string{a.TestID}, seriesIDs...)
	for i, scopeID := range scopes {
		sample := base
		sample.ScopeType, sample.ScopeID = model.ScopeSeries, scopeID
		if i == 0 {
			sample.ScopeType = model.ScopeTest
		}
		if err := s.leaderboardRepo.ApplyScore(ctx, sample); err != nil {
			errs = append(errs, err)
		}
	}
	s.Invalidate(ctx)
	return errors.Join(errs...)
}

// Invalidate bumps the version embedded in every cache key.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Incr(ctx, leaderboardVersionKey).Err(); err != nil {
		log.Printf("WARN: Failed to bump leaderboard cache version: %v", err)
	}
}

func (s *LeaderboardService) cacheKey(ctx context.Context, q model.LeaderboardQuery) string {
	if s.rdb == nil {
		return ""
	}
	version, err := s.rdb.Get(ctx, leaderboardVersionKey).Result()
	if errors.Is(err, redis.Nil) {
		version = "0"
	} else if err != nil {
		log.Printf("WARN: Leaderboard cache unavailable: %v", err)
		return ""
	}
	scope := q.ScopeType
	if scope == "" {
		scope = "global"
	}
	return fmt.Sprintf("leaderboard:v%s:%s:%s:%s:%d:%d:%d",
		version, scope, q.ScopeID, q.TimeRange, q.Since.Unix(), q.Limit, q.Offset)
}

func (s *LeaderboardService) fromCache(ctx context.Context, key string) *LeaderboardResponse {
	if key == "" {
		return nil
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: Leaderboard cache read failed: %v", err)
		}
		return nil
	}
	var resp LeaderboardResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	return &resp
}

func (s *LeaderboardService) toCache(ctx context.Context, key string, resp *LeaderboardResponse) {
	if key == "" || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		log.Printf("WARN: Leaderboard cache write failed: %v", err)
	}
}

func sampleFromAttempt(a *model.TestAttempt) scoring.Sample {
	completedAt := a.UpdatedAt
	if a.CompletedAt != nil {
		completedAt = *a.CompletedAt
	}
	return scoring.Sample{
		UserID:      a.UserID,
		Percentage:  a.Percentage,
		TimeTaken:   a.TimeTakenSeconds,
		CompletedAt: completedAt,
	}
}

// RebuildTest recomputes the test's leaderboard and those of the series
// containing it from completed attempts.
func (s *LeaderboardService) RebuildTest(ctx context.Context, testID string) error {
	if err := s.rebuildTestScope(ctx, testID); err != nil {
		return err
	}
	seriesIDs, err := s.seriesRepo.SeriesIDsForTest(ctx, testID)
	if err != nil {
		return err
	}
	for _, id := range seriesIDs {
		if err := s.rebuildSeriesScope(ctx, id); err != nil {
			return err
		}
	}
	s.Invalidate(ctx)
	return nil
}

// RebuildAll recomputes every leaderboard that has at least one attempt.
func (s *LeaderboardService) RebuildAll(ctx context.Context) error {
	testIDs, err := s.attemptRepo.ListCompletedTestIDs(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, testID := range testIDs {
		if err := s.rebuildTestScope(ctx, testID); err != nil {
			return err
		}
		seriesIDs, err := s.seriesRepo.SeriesIDsForTest(ctx, testID)
		if err != nil {
			return err
		}
		for _, id := range seriesIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := s.rebuildSeriesScope(ctx, id); err != nil {
				return err
			}
		}
	}
	s.Invalidate(ctx)
	log.Printf("INFO: Rebuilt leaderboards for %d tests and %d series", len(testIDs), len(seen))
	return nil
}

func (s *LeaderboardService) rebuildTestScope(ctx context.Context, testID string) error {
	attempts, err := s.attemptRepo.ListCompletedByTest(ctx, testID)
	if err != nil {
		return err
	}
	entries := scoring.FoldEntries(samplesFor(attempts, model.ScopeTest, testID))
	return s.leaderboardRepo.ReplaceScope(ctx, model.ScopeTest, testID, entries)
}

func (s *LeaderboardService) rebuildSeriesScope(ctx context.Context, seriesID string) error {
	tests, err := s.seriesRepo.ListSeriesTests(ctx, seriesID)
	if err != nil {
		return err
	}
	var attempts []model.TestAttempt
	for _, t := range tests {
		a, err := s.attemptRepo.ListCompletedByTest(ctx, t.ID)
		if err != nil {
			return err
		}
		attempts = append(attempts, a...)
	}
	samples := samplesFor(attempts, model.ScopeSeries, seriesID)
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].CompletedAt.Before(samples[j].CompletedAt) })
	return s.leaderboardRepo.ReplaceScope(ctx, model.ScopeSeries, seriesID, scoring.FoldEntries(samples))
}

func samplesFor(attempts []model.TestAttempt, scopeType, scopeID string) []scoring.Sample {
	samples := make([]scoring.Sample, 0, len(attempts))
	for i := range attempts {
		sample := sampleFromAttempt(&attempts[i])
		sample.ScopeType, sample.ScopeID = scopeType, scopeID
		samples = append(samples, sample)
	}
	return samples
}
