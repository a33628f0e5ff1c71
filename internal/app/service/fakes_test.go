package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/repository"
	"testseries/internal/domain/scoring"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return common.Errorf("email already registered: %w", common.ErrConflict)
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByExternalID(_ context.Context, externalID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ExternalAuthID != nil && *u.ExternalAuthID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) LinkExternalID(_ context.Context, userID, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.ExternalAuthID != nil {
		return common.ErrConflict
	}
	u.ExternalAuthID = &externalID
	return nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, userID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, role string, limit, offset int) ([]model.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

type fakeTestRepo struct {
	tests map[string]*model.Test
}

func newFakeTestRepo(tests ...*model.Test) *fakeTestRepo {
	r := &fakeTestRepo{tests: map[string]*model.Test{}}
	for _, t := range tests {
		r.tests[t.ID] = t
	}
	return r
}

func (r *fakeTestRepo) CreateTest(_ context.Context, _ *sql.Tx, t *model.Test) error {
	for _, existing := range r.tests {
		if existing.Slug == t.Slug {
			return common.Errorf("slug taken: %w", common.ErrConflict)
		}
	}
	cp := *t
	r.tests[t.ID] = &cp
	return nil
}

func (r *fakeTestRepo) UpdateTest(_ context.Context, _ *sql.Tx, t *model.Test) error {
	if _, ok := r.tests[t.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *t
	r.tests[t.ID] = &cp
	return nil
}

func (r *fakeTestRepo) SetPublished(_ context.Context, id string, published bool) error {
	t, ok := r.tests[id]
	if !ok {
		return common.ErrNotFound
	}
	t.IsPublished = published
	return nil
}

func (r *fakeTestRepo) FindTestByID(_ context.Context, id string) (*model.Test, error) {
	t, ok := r.tests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTestRepo) ListTests(_ context.Context, f repository.TestFilter) ([]model.Test, int, error) {
	var out []model.Test
	for _, t := range r.tests {
		if f.PublishedOnly && !t.IsPublished {
			continue
		}
		if f.Subject != "" && t.Subject != f.Subject {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeTestRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	counts := map[string]int{}
	for _, t := range r.tests {
		if t.IsPublished {
			counts[t.Subject]++
		}
	}
	var out []model.Category
	for s, n := range counts {
		out = append(out, model.Category{Subject: s, TestCount: n})
	}
	return out, nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*model.TestAttempt
	now      func() time.Time
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: map[string]*model.TestAttempt{}, now: clock}
}

func copyAttempt(a *model.TestAttempt) *model.TestAttempt {
	cp := *a
	cp.Answers = make(map[string]model.Answer, len(a.Answers))
	for k, v := range a.Answers {
		cp.Answers[k] = v
	}
	return &cp
}

func (r *fakeAttemptRepo) find(testID, userID, status string) *model.TestAttempt {
	for _, a := range r.attempts {
		if a.TestID == testID && a.UserID == userID && a.Status == status {
			return a
		}
	}
	return nil
}

func (r *fakeAttemptRepo) FindOrCreateInProgress(_ context.Context, a *model.TestAttempt) (*model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.find(a.TestID, a.UserID, model.AttemptInProgress); existing != nil {
		return copyAttempt(existing), nil
	}
	stored := copyAttempt(a)
	stored.Status = model.AttemptInProgress
	stored.StartedAt = r.now().Add(-10 * time.Minute)
	r.attempts[stored.ID] = stored
	return copyAttempt(stored), nil
}

func (r *fakeAttemptRepo) FindInProgress(_ context.Context, testID, userID string) (*model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.find(testID, userID, model.AttemptInProgress); a != nil {
		return copyAttempt(a), nil
	}
	return nil, common.ErrNotFound
}

func (r *fakeAttemptRepo) FindCompleted(_ context.Context, testID, userID string) (*model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.find(testID, userID, model.AttemptCompleted); a != nil {
		return copyAttempt(a), nil
	}
	return nil, common.ErrNotFound
}

func (r *fakeAttemptRepo) FindByID(_ context.Context, id string) (*model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyAttempt(a), nil
}

func (r *fakeAttemptRepo) SaveProgress(_ context.Context, id string, answers map[string]model.Answer, timeRemaining *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok || a.Status != model.AttemptInProgress {
		return common.Errorf("attempt is no longer in progress: %w", common.ErrConflict)
	}
	for k, v := range answers {
		a.Answers[k] = v
	}
	if timeRemaining != nil {
		a.TimeRemainingSeconds = timeRemaining
	}
	return nil
}

func (r *fakeAttemptRepo) Complete(_ context.Context, a *model.TestAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.attempts[a.ID]
	if !ok || stored.Status != model.AttemptInProgress {
		return common.Errorf("test already submitted: %w", common.ErrConflict)
	}
	r.attempts[a.ID] = copyAttempt(a)
	return nil
}

func (r *fakeAttemptRepo) UpdateScore(_ context.Context, _ *sql.Tx, a *model.TestAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attempts[a.ID]; !ok {
		return common.ErrNotFound
	}
	r.attempts[a.ID] = copyAttempt(a)
	return nil
}

func (r *fakeAttemptRepo) list(match func(*model.TestAttempt) bool) []model.TestAttempt {
	var out []model.TestAttempt
	for _, a := range r.attempts {
		if match(a) {
			out = append(out, *copyAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].StartedAt, out[j].StartedAt
		if out[i].CompletedAt != nil && out[j].CompletedAt != nil {
			ci, cj = *out[i].CompletedAt, *out[j].CompletedAt
		}
		return ci.Before(cj)
	})
	return out
}

func (r *fakeAttemptRepo) ListByUserAndTest(_ context.Context, userID, testID string) ([]model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(a *model.TestAttempt) bool { return a.UserID == userID && a.TestID == testID }), nil
}

func (r *fakeAttemptRepo) ListCompletedByTest(_ context.Context, testID string) ([]model.TestAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(a *model.TestAttempt) bool { return a.TestID == testID && a.IsCompleted() }), nil
}

func (r *fakeAttemptRepo) ListCompletedTestIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, a := range r.attempts {
		if a.IsCompleted() && !seen[a.TestID] {
			seen[a.TestID] = true
			ids = append(ids, a.TestID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeAttemptRepo) History(_ context.Context, userID string, limit, offset int) ([]model.HistoryItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []model.HistoryItem
	for _, a := range r.list(func(a *model.TestAttempt) bool { return a.UserID == userID && a.IsCompleted() }) {
		items = append(items, model.HistoryItem{AttemptID: a.ID, TestID: a.TestID, Score: a.Score, Percentage: a.Percentage})
	}
	return items, len(items), nil
}

type fakeSeriesRepo struct {
	series        map[string]*model.TestSeries
	members       map[string][]string // series id -> test ids
	subscriptions map[string]bool     // user|series
	progress      map[string]model.SeriesProgress
	progressErr   error
}

func newFakeSeriesRepo(series ...*model.TestSeries) *fakeSeriesRepo {
	r := &fakeSeriesRepo{
		series:        map[string]*model.TestSeries{},
		members:       map[string][]string{},
		subscriptions: map[string]bool{},
		progress:      map[string]model.SeriesProgress{},
	}
	for _, s := range series {
		r.series[s.ID] = s
	}
	return r
}

func (r *fakeSeriesRepo) CreateSeries(_ context.Context, s *model.TestSeries) error {
	for _, existing := range r.series {
		if existing.Slug == s.Slug {
			return common.Errorf("slug taken: %w", common.ErrConflict)
		}
	}
	cp := *s
	r.series[s.ID] = &cp
	return nil
}

func (r *fakeSeriesRepo) UpdateSeries(_ context.Context, s *model.TestSeries) error {
	if _, ok := r.series[s.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *s
	r.series[s.ID] = &cp
	return nil
}

func (r *fakeSeriesRepo) FindSeriesByID(_ context.Context, id string) (*model.TestSeries, error) {
	s, ok := r.series[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *s
	cp.TotalTests = len(r.members[id])
	return &cp, nil
}

func (r *fakeSeriesRepo) FindSeriesBySlug(ctx context.Context, slug string) (*model.TestSeries, error) {
	for _, s := range r.series {
		if s.Slug == slug {
			return r.FindSeriesByID(ctx, s.ID)
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeSeriesRepo) ListSeries(_ context.Context, publishedOnly bool, limit, offset int) ([]model.TestSeries, int, error) {
	var out []model.TestSeries
	for _, s := range r.series {
		if !publishedOnly || s.IsPublished {
			out = append(out, *s)
		}
	}
	return out, len(out), nil
}

func (r *fakeSeriesRepo) ListSeriesForUser(_ context.Context, userID string) ([]model.TestSeries, error) {
	var out []model.TestSeries
	for key := range r.subscriptions {
		parts := strings.SplitN(key, "|", 2)
		if parts[0] == userID {
			out = append(out, *r.series[parts[1]])
		}
	}
	return out, nil
}

func (r *fakeSeriesRepo) ListSeriesTests(_ context.Context, seriesID string) ([]model.Test, error) {
	var out []model.Test
	for _, id := range r.members[seriesID] {
		out = append(out, model.Test{ID: id})
	}
	return out, nil
}

func (r *fakeSeriesRepo) AddTest(_ context.Context, seriesID, testID string, _ int) error {
	for _, id := range r.members[seriesID] {
		if id == testID {
			return nil
		}
	}
	r.members[seriesID] = append(r.members[seriesID], testID)
	return nil
}

func (r *fakeSeriesRepo) RemoveTest(_ context.Context, seriesID, testID string) error {
	ids := r.members[seriesID]
	for i, id := range ids {
		if id == testID {
			r.members[seriesID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeSeriesRepo) SeriesIDsForTest(_ context.Context, testID string) ([]string, error) {
	var out []string
	for seriesID, ids := range r.members {
		for _, id := range ids {
			if id == testID {
				out = append(out, seriesID)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeSeriesRepo) Subscribe(_ context.Context, userID, seriesID string) error {
	r.subscriptions[userID+"|"+seriesID] = true
	return nil
}

func (r *fakeSeriesRepo) IsSubscribed(_ context.Context, userID, seriesID string) (bool, error) {
	return r.subscriptions[userID+"|"+seriesID], nil
}

func (r *fakeSeriesRepo) UpsertProgress(_ context.Context, userID string, p model.SeriesProgress) error {
	if r.progressErr != nil {
		return r.progressErr
	}
	r.progress[userID+"|"+p.SeriesID+"|"+p.TestID] = p
	return nil
}

func (r *fakeSeriesRepo) ListProgress(_ context.Context, userID, seriesID string) ([]model.SeriesProgress, error) {
	var out []model.SeriesProgress
	prefix := userID + "|" + seriesID + "|"
	for k, p := range r.progress {
		if strings.HasPrefix(k, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakePurchaseRepo struct {
	purchases map[string]*model.Purchase
	members   *fakeSeriesRepo // resolves series membership when set
}

func newFakePurchaseRepo(purchases ...*model.Purchase) *fakePurchaseRepo {
	r := &fakePurchaseRepo{purchases: map[string]*model.Purchase{}}
	for _, p := range purchases {
		r.purchases[p.ID] = p
	}
	return r
}

func (r *fakePurchaseRepo) CreatePurchase(_ context.Context, p *model.Purchase) error {
	cp := *p
	r.purchases[p.ID] = &cp
	return nil
}

func (r *fakePurchaseRepo) FindPurchaseByID(_ context.Context, id string) (*model.Purchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePurchaseRepo) FindPurchaseByReference(_ context.Context, ref string) (*model.Purchase, error) {
	for _, p := range r.purchases {
		if p.PaymentReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakePurchaseRepo) UpdatePurchaseStatus(_ context.Context, p *model.Purchase) error {
	if _, ok := r.purchases[p.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *p
	r.purchases[p.ID] = &cp
	return nil
}

func (r *fakePurchaseRepo) ListByUser(_ context.Context, userID string) ([]model.Purchase, error) {
	var out []model.Purchase
	for _, p := range r.purchases {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) ListPurchases(_ context.Context, status string, limit, offset int) ([]model.Purchase, int, error) {
	var out []model.Purchase
	for _, p := range r.purchases {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

func (r *fakePurchaseRepo) valid(match func(*model.Purchase) bool, userID string, now time.Time) bool {
	for _, p := range r.purchases {
		if p.UserID == userID && match(p) && p.GrantsAccess(now) {
			return true
		}
	}
	return false
}

func (r *fakePurchaseRepo) HasValidSeriesPurchase(_ context.Context, userID, seriesID string, now time.Time) (bool, error) {
	return r.valid(func(p *model.Purchase) bool { return p.SeriesID != nil && *p.SeriesID == seriesID }, userID, now), nil
}

func (r *fakePurchaseRepo) HasValidTestPurchase(_ context.Context, userID, testID string, now time.Time) (bool, error) {
	return r.valid(func(p *model.Purchase) bool { return p.TestID != nil && *p.TestID == testID }, userID, now), nil
}

func (r *fakePurchaseRepo) HasValidPurchaseOfSeriesContaining(ctx context.Context, userID, testID string, now time.Time) (bool, error) {
	if r.members == nil {
		return false, nil
	}
	seriesIDs, _ := r.members.SeriesIDsForTest(ctx, testID)
	for _, id := range seriesIDs {
		if ok, _ := r.HasValidSeriesPurchase(ctx, userID, id, now); ok {
			return true, nil
		}
	}
	return false, nil
}

type entryKey struct {
	user, scopeType, scopeID, timeRange string
	period                              time.Time
}

type fakeLeaderboardRepo struct {
	mu       sync.Mutex
	entries  map[entryKey]*model.LeaderboardEntry
	samples  []scoring.Sample
	listHits int
}

func newFakeLeaderboardRepo() *fakeLeaderboardRepo {
	return &fakeLeaderboardRepo{entries: map[entryKey]*model.LeaderboardEntry{}}
}

func (r *fakeLeaderboardRepo) ApplyScore(_ context.Context, s scoring.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	for _, tr := range model.TimeRanges {
		k := entryKey{s.UserID, s.ScopeType, s.ScopeID, tr, scoring.BucketStart(tr, s.CompletedAt)}
		e, ok := r.entries[k]
		if !ok {
			e = &model.LeaderboardEntry{UserID: s.UserID, ScopeType: s.ScopeType, ScopeID: s.ScopeID, TimeRange: tr, PeriodStart: k.period}
			r.entries[k] = e
		}
		scoring.ApplySample(e, s)
	}
	return nil
}

func (r *fakeLeaderboardRepo) ReplaceScope(_ context.Context, scopeType, scopeID string, entries []model.LeaderboardEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.entries {
		if k.scopeType == scopeType && k.scopeID == scopeID {
			delete(r.entries, k)
		}
	}
	for i := range entries {
		e := entries[i]
		r.entries[entryKey{e.UserID, e.ScopeType, e.ScopeID, e.TimeRange, e.PeriodStart}] = &e
	}
	return nil
}

func (r *fakeLeaderboardRepo) rows(q model.LeaderboardQuery) []model.LeaderboardRow {
	var rows []model.LeaderboardRow
	for k, e := range r.entries {
		if k.scopeType == q.ScopeType && k.scopeID == q.ScopeID && k.timeRange == q.TimeRange && k.period.Equal(q.Since) {
			rows = append(rows, model.LeaderboardRow{UserID: e.UserID, Score: e.Score, AverageTime: e.AverageTime, Attempts: e.Attempts, BestScore: e.BestScore})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].AverageTime < rows[j].AverageTime
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

func (r *fakeLeaderboardRepo) List(_ context.Context, q model.LeaderboardQuery) ([]model.LeaderboardRow, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listHits++
	rows := r.rows(q)
	total := len(rows)
	if q.Offset > total {
		return []model.LeaderboardRow{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return rows[q.Offset:end], total, nil
}

func (r *fakeLeaderboardRepo) FindRank(_ context.Context, q model.LeaderboardQuery, userID string) (*model.LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows(q) {
		if row.UserID == userID {
			return &row, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeLeaderboardRepo) entry(userID, scopeType, scopeID, timeRange string, period time.Time) *model.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[entryKey{userID, scopeType, scopeID, timeRange, period}]
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.MaintenanceJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*model.MaintenanceJob{}}
}

func (r *fakeJobRepo) CreateJob(_ context.Context, _ *sql.Tx, job *model.MaintenanceJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) GetJobByID(_ context.Context, id string) (*model.MaintenanceJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) UpdateJobStatus(_ context.Context, _ *sql.Tx, id, status string, lastError *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return common.ErrNotFound
	}
	j.Status = status
	j.LastError = lastError
	return nil
}

func (r *fakeJobRepo) IncrementJobAttempts(_ context.Context, _ *sql.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return common.ErrNotFound
	}
	j.Attempts++
	return nil
}

type fakeSettingsRepo struct {
	settings map[string]model.Setting
}

func (r *fakeSettingsRepo) ListSettings(_ context.Context, publicOnly bool, category string) ([]model.Setting, error) {
	var out []model.Setting
	for _, s := range r.settings {
		if (publicOnly && !s.IsPublic) || (category != "" && s.Category != category) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSettingsRepo) GetSetting(_ context.Context, key string) (*model.Setting, error) {
	s, ok := r.settings[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSettingsRepo) UpsertSetting(_ context.Context, s *model.Setting) error {
	s.UpdatedAt = fixedNow
	r.settings[s.Key] = *s
	return nil
}

func (r *fakeSettingsRepo) DeleteSetting(_ context.Context, key string) error {
	if _, ok := r.settings[key]; !ok {
		return common.ErrNotFound
	}
	delete(r.settings, key)
	return nil
}

type recordingScheduler struct {
	rescored []string
}

func (s *recordingScheduler) EnqueueRescore(_ context.Context, testID string) (*model.MaintenanceJob, error) {
	s.rescored = append(s.rescored, testID)
	return &model.MaintenanceJob{ID: "job-" + testID, JobType: model.JobTypeAttemptRescore, Status: model.JobStatusQueued}, nil
}
