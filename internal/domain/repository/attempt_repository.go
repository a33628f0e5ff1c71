package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"testseries/internal/common"
	"testseries/internal/domain/model"
)

type AttemptRepository interface {
	// FindOrCreateInProgress returns the open attempt for (test, user),
	// inserting attempt when there is none.
	FindOrCreateInProgress(ctx context.Context, attempt *model.TestAttempt) (*model.TestAttempt, error)
	FindInProgress(ctx context.Context, testID, userID string) (*model.TestAttempt, error)
	FindCompleted(ctx context.Context, testID, userID string) (*model.TestAttempt, error)
	FindByID(ctx context.Context, id string) (*model.TestAttempt, error)
	SaveProgress(ctx context.Context, attemptID string, answers map[string]model.Answer, timeRemaining *int) error
	// Complete finalizes an in-progress attempt. It fails with ErrConflict
	// when the attempt was already finalized by a concurrent request.
	Complete(ctx context.Context, attempt *model.TestAttempt) error
	UpdateScore(ctx context.Context, tx *sql.Tx, attempt *model.TestAttempt) error
	ListByUserAndTest(ctx context.Context, userID, testID string) ([]model.TestAttempt, error)
	ListCompletedByTest(ctx context.Context, testID string) ([]model.TestAttempt, error)
	ListCompletedTestIDs(ctx context.Context) ([]string, error)
	History(ctx context.Context, userID string, limit, offset int) ([]model.HistoryItem, int, error)
}

type pgAttemptRepository struct {
	db *sql.DB
}

func NewPgAttemptRepository(db *sql.DB) AttemptRepository {
	return &pgAttemptRepository{db: db}
}

const attemptColumns = `a.id, a.test_id, a.user_id, a.answers, a.status, a.score, a.total_marks, a.percentage,
	a.correct_answers, a.time_taken_seconds, a.time_remaining_seconds, a.is_passed, a.started_at,
	a.completed_at, a.updated_at, t.title`

func scanAttempt(row interface{ Scan(...interface{}) error }) (*model.TestAttempt, error) {
	a := &model.TestAttempt{}
	var answers []byte
	err := row.Scan(&a.ID, &a.TestID, &a.UserID, &answers, &a.Status, &a.Score, &a.TotalMarks, &a.Percentage,
		&a.CorrectAnswers, &a.TimeTakenSeconds, &a.TimeRemainingSeconds, &a.IsPassed, &a.StartedAt,
		&a.CompletedAt, &a.UpdatedAt, &a.TestTitle)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return nil, fmt.Errorf("decode answers for attempt %s: %w", a.ID, err)
	}
	if a.Answers == nil {
		a.Answers = map[string]model.Answer{}
	}
	return a, nil
}

func (r *pgAttemptRepository) findOne(ctx context.Context, op, where string, args ...interface{}) (*model.TestAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM test_attempts a JOIN tests t ON t.id = a.test_id WHERE ` + where
	a, err := scanAttempt(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgAttemptRepository.%s: %w", op, err)
	}
	return a, nil
}

func (r *pgAttemptRepository) FindOrCreateInProgress(ctx context.Context, attempt *model.TestAttempt) (*model.TestAttempt, error) {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return nil, fmt.Errorf("pgAttemptRepository.FindOrCreateInProgress marshal answers: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO test_attempts (id, test_id, user_id, answers, status, time_remaining_seconds)
		 VALUES ($1, $2, $3, $4, 'in_progress', $5)
		 ON CONFLICT (test_id, user_id) WHERE status = 'in_progress' DO NOTHING`,
		attempt.ID, attempt.TestID, attempt.UserID, answers, attempt.TimeRemainingSeconds)
	if err != nil {
		return nil, fmt.Errorf("pgAttemptRepository.FindOrCreateInProgress insert: %w", err)
	}
	return r.FindInProgress(ctx, attempt.TestID, attempt.UserID)
}

func (r *pgAttemptRepository) FindInProgress(ctx context.Context, testID, userID string) (*model.TestAttempt, error) {
	return r.findOne(ctx, "FindInProgress", "a.test_id = $1 AND a.user_id = $2 AND a.status = 'in_progress'", testID, userID)
}

func (r *pgAttemptRepository) FindCompleted(ctx context.Context, testID, userID string) (*model.TestAttempt, error) {
	return r.findOne(ctx, "FindCompleted", "a.test_id = $1 AND a.user_id = $2 AND a.status = 'completed'", testID, userID)
}

func (r *pgAttemptRepository) FindByID(ctx context.Context, id string) (*model.TestAttempt, error) {
	return r.findOne(ctx, "FindByID", "a.id = $1", id)
}

func (r *pgAttemptRepository) SaveProgress(ctx context.Context, attemptID string, answers map[string]model.Answer, timeRemaining *int) error {
	payload, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("pgAttemptRepository.SaveProgress marshal answers: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE test_attempts
		 SET answers = answers || $1::jsonb,
		     time_remaining_seconds = COALESCE($2, time_remaining_seconds),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3 AND status = 'in_progress'`, payload, timeRemaining, attemptID)
	if err != nil {
		return fmt.Errorf("pgAttemptRepository.SaveProgress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attempt is no longer in progress: %w", common.ErrConflict)
	}
	return nil
}

func (r *pgAttemptRepository) Complete(ctx context.Context, a *model.TestAttempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("pgAttemptRepository.Complete marshal answers: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE test_attempts
		 SET answers = $1, status = 'completed', score = $2, total_marks = $3, percentage = $4,
		     correct_answers = $5, time_taken_seconds = $6, time_remaining_seconds = $7, is_passed = $8,
		     completed_at = $9, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $10 AND status = 'in_progress'`,
		answers, a.Score, a.TotalMarks, a.Percentage, a.CorrectAnswers, a.TimeTakenSeconds,
		a.TimeRemainingSeconds, a.IsPassed, a.CompletedAt, a.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("test already submitted: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgAttemptRepository.Complete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("test already submitted: %w", common.ErrConflict)
	}
	a.Status = model.AttemptCompleted
	return nil
}

func (r *pgAttemptRepository) UpdateScore(ctx context.Context, tx *sql.Tx, a *model.TestAttempt) error {
	_, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE test_attempts
		 SET score = $1, total_marks = $2, percentage = $3, correct_answers = $4, is_passed = $5,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		a.Score, a.TotalMarks, a.Percentage, a.CorrectAnswers, a.IsPassed, a.ID)
	if err != nil {
		return fmt.Errorf("pgAttemptRepository.UpdateScore: %w", err)
	}
	return nil
}

func (r *pgAttemptRepository) list(ctx context.Context, op, where string, args ...interface{}) ([]model.TestAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM test_attempts a JOIN tests t ON t.id = a.test_id WHERE ` + where
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgAttemptRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	attempts := []model.TestAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("pgAttemptRepository.%s scan: %w", op, err)
		}
		attempts = append(attempts, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgAttemptRepository.%s rows.Err: %w", op, err)
	}
	return attempts, nil
}

func (r *pgAttemptRepository) ListByUserAndTest(ctx context.Context, userID, testID string) ([]model.TestAttempt, error) {
	return r.list(ctx, "ListByUserAndTest", "a.user_id = $1 AND a.test_id = $2 ORDER BY a.started_at DESC", userID, testID)
}

// ListCompletedByTest returns attempts in completion order, the order the
// leaderboard originally saw them.
func (r *pgAttemptRepository) ListCompletedByTest(ctx context.Context, testID string) ([]model.TestAttempt, error) {
	return r.list(ctx, "ListCompletedByTest",
		"a.test_id = $1 AND a.status = 'completed' ORDER BY a.completed_at ASC, a.id ASC", testID)
}

func (r *pgAttemptRepository) ListCompletedTestIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT test_id FROM test_attempts WHERE status = 'completed' ORDER BY test_id`)
	if err != nil {
		return nil, fmt.Errorf("pgAttemptRepository.ListCompletedTestIDs query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgAttemptRepository.ListCompletedTestIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgAttemptRepository) History(ctx context.Context, userID string, limit, offset int) ([]model.HistoryItem, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM test_attempts WHERE user_id = $1 AND status = 'completed'`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgAttemptRepository.History count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.test_id, t.title, t.subject, a.score, a.total_marks, a.percentage, a.is_passed,
		        a.time_taken_seconds, a.completed_at
		 FROM test_attempts a JOIN tests t ON t.id = a.test_id
		 WHERE a.user_id = $1 AND a.status = 'completed'
		 ORDER BY a.completed_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgAttemptRepository.History query: %w", err)
	}
	defer rows.Close()

	items := []model.HistoryItem{}
	for rows.Next() {
		var h model.HistoryItem
		if err := rows.Scan(&h.AttemptID, &h.TestID, &h.TestTitle, &h.Subject, &h.Score, &h.TotalMarks,
			&h.Percentage, &h.IsPassed, &h.TimeTakenSeconds, &h.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("pgAttemptRepository.History scan: %w", err)
		}
		items = append(items, h)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgAttemptRepository.History rows.Err: %w", err)
	}
	return items, total, nil
}
