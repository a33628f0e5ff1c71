package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"testseries/internal/common"
	"testseries/internal/domain/model"
	"testseries/internal/domain/scoring"
)

type LeaderboardRepository interface {
	// ApplyScore folds one completed attempt into the all, week and month
	// entries of its scope.
	ApplyScore(ctx context.Context, s scoring.Sample) error
	// ReplaceScope swaps every entry of a scope for entries in one transaction.
	ReplaceScope(ctx context.Context, scopeType, scopeID string, entries []model.LeaderboardEntry) error
	List(ctx context.Context, q model.LeaderboardQuery) ([]model.LeaderboardRow, int, error)
	FindRank(ctx context.Context, q model.LeaderboardQuery, userID string) (*model.LeaderboardRow, error)
}

type pgLeaderboardRepository struct {
	db *sql.DB
}

func NewPgLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &pgLeaderboardRepository{db: db}
}

// The running average is computed by Postgres so concurrent submissions
// for the same user never overwrite each other.
const upsertEntry = `
INSERT INTO leaderboard_entries
    (user_id, scope_type, scope_id, time_range, period_start, score, average_time, attempts, best_score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
ON CONFLICT (user_id, scope_type, scope_id, time_range, period_start) DO UPDATE SET
    score = (leaderboard_entries.score * leaderboard_entries.attempts + EXCLUDED.score) / (leaderboard_entries.attempts + 1),
    average_time = (leaderboard_entries.average_time * leaderboard_entries.attempts + EXCLUDED.average_time) / (leaderboard_entries.attempts + 1),
    attempts = leaderboard_entries.attempts + 1,
    best_score = GREATEST(leaderboard_entries.best_score, EXCLUDED.best_score),
    updated_at = GREATEST(leaderboard_entries.updated_at, EXCLUDED.updated_at)`

func (r *pgLeaderboardRepository) ApplyScore(ctx context.Context, s scoring.Sample) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ApplyScore begin: %w", err)
	}
	defer tx.Rollback()

	for _, tr := range model.TimeRanges {
		_, err := tx.ExecContext(ctx, upsertEntry, s.UserID, s.ScopeType, s.ScopeID, tr,
			scoring.BucketStart(tr, s.CompletedAt), float64(s.Percentage), float64(s.TimeTaken), s.Percentage, s.CompletedAt)
		if err != nil {
			return fmt.Errorf("pgLeaderboardRepository.ApplyScore %s/%s %s: %w", s.ScopeType, s.ScopeID, tr, err)
		}
	}
	return tx.Commit()
}

func (r *pgLeaderboardRepository) ReplaceScope(ctx context.Context, scopeType, scopeID string, entries []model.LeaderboardEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceScope begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM leaderboard_entries WHERE scope_type = $1 AND scope_id = $2`, scopeType, scopeID); err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceScope delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leaderboard_entries
		     (user_id, scope_type, scope_id, time_range, period_start, score, average_time, attempts, best_score, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("pgLeaderboardRepository.ReplaceScope prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.UserID, scopeType, scopeID, e.TimeRange, e.PeriodStart,
			e.Score, e.AverageTime, e.Attempts, e.BestScore, e.UpdatedAt); err != nil {
			return fmt.Errorf("pgLeaderboardRepository.ReplaceScope insert for user %s: %w", e.UserID, err)
		}
	}
	return tx.Commit()
}

// ranked builds a query yielding (rank, user_id, name, score, average_time,
// attempts, best_score) for one leaderboard, best first.
func ranked(q model.LeaderboardQuery) (string, []interface{}) {
	if q.ScopeType == "" {
		return `
SELECT ROW_NUMBER() OVER (ORDER BY AVG(a.percentage) DESC, AVG(a.time_taken_seconds) ASC, a.user_id) AS rank,
       a.user_id, u.name, AVG(a.percentage)::float8 AS score, AVG(a.time_taken_seconds)::float8 AS average_time,
       COUNT(*) AS attempts, MAX(a.percentage) AS best_score
FROM test_attempts a JOIN users u ON u.id = a.user_id
WHERE a.status = 'completed' AND a.completed_at >= $1
GROUP BY a.user_id, u.name`, []interface{}{q.Since}
	}
	return `
SELECT ROW_NUMBER() OVER (ORDER BY e.score DESC, e.average_time ASC, e.user_id) AS rank,
       e.user_id, u.name, e.score, e.average_time, e.attempts, e.best_score
FROM leaderboard_entries e JOIN users u ON u.id = e.user_id
WHERE e.scope_type = $1 AND e.scope_id = $2 AND e.time_range = $3 AND e.period_start = $4`,
		[]interface{}{q.ScopeType, q.ScopeID, q.TimeRange, q.Since}
}

func scanRow(row interface{ Scan(...interface{}) error }, lr *model.LeaderboardRow) error {
	return row.Scan(&lr.Rank, &lr.UserID, &lr.Name, &lr.Score, &lr.AverageTime, &lr.Attempts, &lr.BestScore)
}

func (r *pgLeaderboardRepository) List(ctx context.Context, q model.LeaderboardQuery) ([]model.LeaderboardRow, int, error) {
	inner, args := ranked(q)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (`+inner+`) r`, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgLeaderboardRepository.List count: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT * FROM (%s) r ORDER BY rank LIMIT $%d OFFSET $%d`, inner, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgLeaderboardRepository.List query: %w", err)
	}
	defer rows.Close()

	result := []model.LeaderboardRow{}
	for rows.Next() {
		var lr model.LeaderboardRow
		if err := scanRow(rows, &lr); err != nil {
			return nil, 0, fmt.Errorf("pgLeaderboardRepository.List scan: %w", err)
		}
		result = append(result, lr)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgLeaderboardRepository.List rows.Err: %w", err)
	}
	return result, total, nil
}

func (r *pgLeaderboardRepository) FindRank(ctx context.Context, q model.LeaderboardQuery, userID string) (*model.LeaderboardRow, error) {
	inner, args := ranked(q)
	query := fmt.Sprintf(`SELECT * FROM (%s) r WHERE r.user_id = $%d`, inner, len(args)+1)

	lr := &model.LeaderboardRow{}
	if err := scanRow(r.db.QueryRowContext(ctx, query, append(args, userID)...), lr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgLeaderboardRepository.FindRank: %w", err)
	}
	return lr, nil
}
