package scoring

import (
	"sort"
	"time"

	"testseries/internal/domain/model"
)

// RunningAverage folds value into an average over oldCount samples.
func RunningAverage(oldAvg float64, oldCount int, value float64) float64 {
	if oldCount <= 0 {
		return value
	}
	return (oldAvg*float64(oldCount) + value) / float64(oldCount+1)
}

var epoch = time.Unix(0, 0).UTC()

// BucketStart returns the start of the bucket t falls in: the epoch for
// "all", Monday 00:00 UTC for "week", the first of the month for "month".
func BucketStart(timeRange string, t time.Time) time.Time {
	t = t.UTC()
	switch timeRange {
	case model.TimeRangeWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // days since Monday
		return day.AddDate(0, 0, -offset)
	case model.TimeRangeMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return epoch
}

// Sample is one completed attempt as seen by the leaderboard.
type Sample struct {
	UserID      string
	ScopeType   string
	ScopeID     string
	Percentage  int
	TimeTaken   int
	CompletedAt time.Time
}

// ApplySample updates entry as the incremental write path does.
func ApplySample(entry *model.LeaderboardEntry, s Sample) {
	entry.Score = RunningAverage(entry.Score, entry.Attempts, float64(s.Percentage))
	entry.AverageTime = RunningAverage(entry.AverageTime, entry.Attempts, float64(s.TimeTaken))
	entry.Attempts++
	if s.Percentage > entry.BestScore {
		entry.BestScore = s.Percentage
	}
	if s.CompletedAt.After(entry.UpdatedAt) {
		entry.UpdatedAt = s.CompletedAt
	}
}

// FoldEntries rebuilds leaderboard entries for every bucket from scratch.
// The result is sorted for deterministic writes.
func FoldEntries(samples []Sample) []model.LeaderboardEntry {
	type key struct {
		user, scopeType, scopeID, timeRange string
		period                              time.Time
	}
	byKey := make(map[key]*model.LeaderboardEntry)
	for _, s := range samples {
		for _, tr := range model.TimeRanges {
			k := key{s.UserID, s.ScopeType, s.ScopeID, tr, BucketStart(tr, s.CompletedAt)}
			e, ok := byKey[k]
			if !ok {
				e = &model.LeaderboardEntry{
					UserID:      s.UserID,
					ScopeType:   s.ScopeType,
					ScopeID:     s.ScopeID,
					TimeRange:   tr,
					PeriodStart: k.period,
				}
				byKey[k] = e
			}
			ApplySample(e, s)
		}
	}

	out := make([]model.LeaderboardEntry, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ScopeID != b.ScopeID {
			return a.ScopeID < b.ScopeID
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.TimeRange != b.TimeRange {
			return a.TimeRange < b.TimeRange
		}
		return a.PeriodStart.Before(b.PeriodStart)
	})
	return out
}
