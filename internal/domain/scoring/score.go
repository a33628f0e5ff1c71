package scoring

import (
	"math"
	"time"

	"testseries/internal/domain/model"
)

type Result struct {
	ObtainedMarks  int
	TotalMarks     int
	CorrectAnswers int
	Percentage     int
	IsPassed       bool
	Questions      []model.QuestionResult
}

// ScoreAttempt evaluates answers against every question of the test.
// Answers for unknown question ids are ignored.
func ScoreAttempt(test *model.Test, answers map[string]model.Answer) Result {
	var res Result
	res.Questions = make([]model.QuestionResult, 0, len(test.Questions))

	for _, q := range test.Questions {
		res.TotalMarks += q.Marks
		answer, answered := answers[q.ID]
		qr := model.QuestionResult{
			QuestionID:    q.ID,
			Answered:      answered && !isBlank(answer),
			Marks:         q.Marks,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}
		if answered && IsAnswerCorrect(q, answer) {
			qr.IsCorrect = true
			qr.ObtainedMarks = q.Marks
			res.ObtainedMarks += q.Marks
			res.CorrectAnswers++
		}
		res.Questions = append(res.Questions, qr)
	}

	res.Percentage = Percentage(res.ObtainedMarks, res.TotalMarks)
	res.IsPassed = res.Percentage >= test.EffectivePassingScore()
	return res
}

// Percentage is obtained/total*100 rounded half up; 0 when total is 0.
func Percentage(obtained, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(obtained)/float64(total)*100 + 0.5))
}

// ElapsedSeconds is the whole seconds between start and now, at least 1.
func ElapsedSeconds(startedAt, now time.Time) int {
	secs := int(now.Sub(startedAt) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
