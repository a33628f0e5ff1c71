package model

import "time"

const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
)

// TestAttempt is one user's run through a test. Answers are keyed by question id.
type TestAttempt struct {
	ID                   string            `json:"id"`
	TestID               string            `json:"test_id"`
	UserID               string            `json:"user_id"`
	Answers              map[string]Answer `json:"answers"`
	Status               string            `json:"status"`
	Score                int               `json:"score"` // obtained marks
	TotalMarks           int               `json:"total_marks"`
	Percentage           int               `json:"percentage"`
	CorrectAnswers       int               `json:"correct_answers"`
	TimeTakenSeconds     int               `json:"time_taken_seconds"`
	TimeRemainingSeconds *int              `json:"time_remaining_seconds,omitempty"`
	IsPassed             bool              `json:"is_passed"`
	StartedAt            time.Time         `json:"started_at"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	UpdatedAt            time.Time         `json:"updated_at"`
	TestTitle            *string           `json:"test_title,omitempty"` // For display
}

func (a *TestAttempt) IsCompleted() bool {
	return a.Status == AttemptCompleted
}

// QuestionResult is the per-question outcome returned after scoring.
type QuestionResult struct {
	QuestionID    string `json:"question_id"`
	Answered      bool   `json:"answered"`
	IsCorrect     bool   `json:"is_correct"`
	Marks         int    `json:"marks"`
	ObtainedMarks int    `json:"obtained_marks"`
	CorrectAnswer Answer `json:"correct_answer,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

// HistoryItem summarises a completed attempt for the user's history view.
type HistoryItem struct {
	AttemptID        string    `json:"attempt_id"`
	TestID           string    `json:"test_id"`
	TestTitle        string    `json:"test_title"`
	Subject          string    `json:"subject"`
	Score            int       `json:"score"`
	TotalMarks       int       `json:"total_marks"`
	Percentage       int       `json:"percentage"`
	IsPassed         bool      `json:"is_passed"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}
