package model

import "time"

const (
	TimeRangeAll   = "all"
	TimeRangeWeek  = "week"
	TimeRangeMonth = "month"

	ScopeTest   = "test"
	ScopeSeries = "series"
)

// TimeRanges are the buckets every scoring event updates.
var TimeRanges = []string{TimeRangeAll, TimeRangeWeek, TimeRangeMonth}

func IsValidTimeRange(r string) bool {
	switch r {
	case TimeRangeAll, TimeRangeWeek, TimeRangeMonth:
		return true
	}
	return false
}

// LeaderboardEntry is a per-user rolling aggregate for one scope and bucket.
type LeaderboardEntry struct {
	UserID      string    `json:"user_id"`
	ScopeType   string    `json:"scope_type"`
	ScopeID     string    `json:"scope_id"`
	TimeRange   string    `json:"time_range"`
	PeriodStart time.Time `json:"period_start"`
	Score       float64   `json:"score"`
	AverageTime float64   `json:"average_time"`
	Attempts    int       `json:"attempts"`
	BestScore   int       `json:"best_score"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type LeaderboardRow struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	AverageTime float64 `json:"average_time"`
	Attempts    int     `json:"attempts"`
	BestScore   int     `json:"best_score,omitempty"`
}

// LeaderboardQuery selects one page of one leaderboard.
type LeaderboardQuery struct {
	ScopeType string // empty for the global leaderboard
	ScopeID   string
	TimeRange string
	Since     time.Time // bucket start
	Limit     int
	Offset    int
}
