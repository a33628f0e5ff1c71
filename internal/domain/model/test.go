package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	QuestionMCQ         = "mcq"
	QuestionTrueFalse   = "true_false"
	QuestionMultiSelect = "multi_select"
	QuestionInteger     = "integer"
	QuestionShortAnswer = "short_answer"

	DefaultPassingScore = 60
)

func IsValidQuestionType(t string) bool {
	switch t {
	case QuestionMCQ, QuestionTrueFalse, QuestionMultiSelect, QuestionInteger, QuestionShortAnswer:
		return true
	}
	return false
}

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []Option `json:"options,omitempty"`
	CorrectAnswer Answer   `json:"correct_answer,omitempty"`
	Marks         int      `json:"marks"`
	Explanation   string   `json:"explanation,omitempty"`
}

type Test struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description"`
	Subject         string          `json:"subject"`
	Grade           string          `json:"grade"`
	DurationMinutes int             `json:"duration_minutes"`
	PassingScore    *int            `json:"passing_score,omitempty"`
	IsPaid          bool            `json:"is_paid"`
	Price           decimal.Decimal `json:"price"`
	IsPublished     bool            `json:"is_published"`
	Tags            []string        `json:"tags"`
	Questions       []Question      `json:"questions,omitempty"`
	CreatedByID     *string         `json:"created_by_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	QuestionCount   int             `json:"question_count"`
	TotalMarks      int             `json:"total_marks"`
}

// EffectivePassingScore falls back to DefaultPassingScore when unset or not positive.
func (t *Test) EffectivePassingScore() int {
	if t.PassingScore == nil || *t.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return *t.PassingScore
}

func (t *Test) IsOwnedBy(userID string) bool {
	return t.CreatedByID != nil && *t.CreatedByID == userID
}

// FindQuestion does a linear scan; tests hold tens of questions.
func (t *Test) FindQuestion(id string) (*Question, bool) {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i], true
		}
	}
	return nil, false
}

// WithoutAnswerKeys returns a copy safe to show to test takers.
func (t *Test) WithoutAnswerKeys() *Test {
	cp := *t
	cp.Questions = make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.CorrectAnswer = nil
		q.Explanation = ""
		cp.Questions[i] = q
	}
	return &cp
}

// Category is a subject with its number of published tests.
type Category struct {
	Subject   string `json:"subject"`
	TestCount int    `json:"test_count"`
}
