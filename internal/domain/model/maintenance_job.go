package model

import (
	"encoding/json"
	"time"
)

const (
	JobTypeLeaderboardRebuild = "leaderboard_rebuild"
	JobTypeAttemptRescore     = "attempt_rescore"

	JobStatusQueued     = "Queued"
	JobStatusProcessing = "Processing"
	JobStatusCompleted  = "Completed"
	JobStatusFailed     = "Failed"
)

type MaintenanceJob struct {
	ID        string          `json:"id"`
	JobType   string          `json:"job_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError *string         `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LeaderboardRebuildPayload limits a rebuild to one test; empty means every scope.
type LeaderboardRebuildPayload struct {
	TestID string `json:"test_id,omitempty"`
}

type AttemptRescorePayload struct {
	TestID string `json:"test_id"`
}
