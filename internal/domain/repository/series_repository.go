package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"testseries/internal/common"
	"testseries/internal/domain/model"

	"github.com/lib/pq"
)

type SeriesRepository interface {
	CreateSeries(ctx context.Context, s *model.TestSeries) error
	UpdateSeries(ctx context.Context, s *model.TestSeries) error
	FindSeriesByID(ctx context.Context, id string) (*model.TestSeries, error)
	FindSeriesBySlug(ctx context.Context, slug string) (*model.TestSeries, error)
	ListSeries(ctx context.Context, publishedOnly bool, limit, offset int) ([]model.TestSeries, int, error)
	ListSeriesForUser(ctx context.Context, userID string) ([]model.TestSeries, error)

	ListSeriesTests(ctx context.Context, seriesID string) ([]model.Test, error)
	AddTest(ctx context.Context, seriesID, testID string, position int) error
	RemoveTest(ctx context.Context, seriesID, testID string) error
	SeriesIDsForTest(ctx context.Context, testID string) ([]string, error)

	Subscribe(ctx context.Context, userID, seriesID string) error
	IsSubscribed(ctx context.Context, userID, seriesID string) (bool, error)

	UpsertProgress(ctx context.Context, userID string, p model.SeriesProgress) error
	ListProgress(ctx context.Context, userID, seriesID string) ([]model.SeriesProgress, error)
}

type pgSeriesRepository struct {
	db *sql.DB
}

func NewPgSeriesRepository(db *sql.DB) SeriesRepository {
	return &pgSeriesRepository{db: db}
}

// total_tests is counted from the join table on every read.
const seriesColumns = `s.id, s.title, s.slug, s.description, s.subject, s.grade, s.price, s.discount_percent,
	s.validity_days, s.is_published, s.created_by, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM series_tests st WHERE st.series_id = s.id)`

func scanSeries(row interface{ Scan(...interface{}) error }, s *model.TestSeries) error {
	return row.Scan(&s.ID, &s.Title, &s.Slug, &s.Description, &s.Subject, &s.Grade, &s.Price, &s.DiscountPercent,
		&s.ValidityDays, &s.IsPublished, &s.CreatedByID, &s.CreatedAt, &s.UpdatedAt, &s.TotalTests)
}

func (r *pgSeriesRepository) CreateSeries(ctx context.Context, s *model.TestSeries) error {
	query := `INSERT INTO test_series (id, title, slug, description, subject, grade, price, discount_percent,
	                                   validity_days, is_published, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, s.ID, s.Title, s.Slug, s.Description, s.Subject, s.Grade, s.Price,
		s.DiscountPercent, s.ValidityDays, s.IsPublished, s.CreatedByID).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("series with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgSeriesRepository.CreateSeries: %w", err)
	}
	return nil
}

func (r *pgSeriesRepository) UpdateSeries(ctx context.Context, s *model.TestSeries) error {
	query := `UPDATE test_series SET title = $1, slug = $2, description = $3, subject = $4, grade = $5, price = $6,
	            discount_percent = $7, validity_days = $8, is_published = $9, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $10 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, s.Title, s.Slug, s.Description, s.Subject, s.Grade, s.Price,
		s.DiscountPercent, s.ValidityDays, s.IsPublished, s.ID).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("series with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgSeriesRepository.UpdateSeries: %w", err)
	}
	return nil
}

func (r *pgSeriesRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*model.TestSeries, error) {
	s := &model.TestSeries{}
	err := scanSeries(r.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM test_series s WHERE `+where, arg), s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSeriesRepository.%s: %w", op, err)
	}
	return s, nil
}

func (r *pgSeriesRepository) FindSeriesByID(ctx context.Context, id string) (*model.TestSeries, error) {
	return r.findOne(ctx, "FindSeriesByID", "s.id = $1", id)
}

func (r *pgSeriesRepository) FindSeriesBySlug(ctx context.Context, slug string) (*model.TestSeries, error) {
	return r.findOne(ctx, "FindSeriesBySlug", "s.slug = $1", slug)
}

func (r *pgSeriesRepository) querySeries(ctx context.Context, op, query string, args ...interface{}) ([]model.TestSeries, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSeriesRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	series := []model.TestSeries{}
	for rows.Next() {
		var s model.TestSeries
		if err := scanSeries(rows, &s); err != nil {
			return nil, fmt.Errorf("pgSeriesRepository.%s scan: %w", op, err)
		}
		series = append(series, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSeriesRepository.%s rows.Err: %w", op, err)
	}
	return series, nil
}

func (r *pgSeriesRepository) ListSeries(ctx context.Context, publishedOnly bool, limit, offset int) ([]model.TestSeries, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM test_series WHERE (NOT $1 OR is_published)`, publishedOnly).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSeriesRepository.ListSeries count: %w", err)
	}
	series, err := r.querySeries(ctx, "ListSeries",
		`SELECT `+seriesColumns+` FROM test_series s WHERE (NOT $1 OR s.is_published)
		 ORDER BY s.created_at DESC LIMIT $2 OFFSET $3`, publishedOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return series, total, nil
}

// ListSeriesForUser returns series the user subscribed to or bought.
func (r *pgSeriesRepository) ListSeriesForUser(ctx context.Context, userID string) ([]model.TestSeries, error) {
	return r.querySeries(ctx, "ListSeriesForUser",
		`SELECT `+seriesColumns+` FROM test_series s
		 WHERE s.id IN (
		     SELECT series_id FROM series_subscriptions WHERE user_id = $1
		     UNION
		     SELECT series_id FROM purchases
		     WHERE user_id = $1 AND series_id IS NOT NULL AND status = 'completed' AND access_granted
		       AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
		 )
		 ORDER BY s.title`, userID)
}

func (r *pgSeriesRepository) ListSeriesTests(ctx context.Context, seriesID string) ([]model.Test, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.title, t.slug, t.description, t.subject, t.grade, t.duration_minutes, t.passing_score,
		        t.is_paid, t.price, t.is_published, t.tags, t.created_by, t.created_at, t.updated_at,
		        jsonb_array_length(t.questions)
		 FROM series_tests st JOIN tests t ON t.id = st.test_id
		 WHERE st.series_id = $1 ORDER BY st.position, t.created_at`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("pgSeriesRepository.ListSeriesTests query: %w", err)
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Slug, &t.Description, &t.Subject, &t.Grade, &t.DurationMinutes,
			&t.PassingScore, &t.IsPaid, &t.Price, &t.IsPublished, pq.Array(&t.Tags), &t.CreatedByID,
			&t.CreatedAt, &t.UpdatedAt, &t.QuestionCount); err != nil {
			return nil, fmt.Errorf("pgSeriesRepository.ListSeriesTests scan: %w", err)
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (r *pgSeriesRepository) AddTest(ctx context.Context, seriesID, testID string, position int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO series_tests (series_id, test_id, position) VALUES ($1, $2, $3)
		 ON CONFLICT (series_id, test_id) DO UPDATE SET position = EXCLUDED.position`, seriesID, testID, position)
	if err != nil {
		return fmt.Errorf("pgSeriesRepository.AddTest: %w", err)
	}
	return nil
}

func (r *pgSeriesRepository) RemoveTest(ctx context.Context, seriesID, testID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM series_tests WHERE series_id = $1 AND test_id = $2`, seriesID, testID)
	if err != nil {
		return fmt.Errorf("pgSeriesRepository.RemoveTest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgSeriesRepository) SeriesIDsForTest(ctx context.Context, testID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT series_id FROM series_tests WHERE test_id = $1 ORDER BY series_id`, testID)
	if err != nil {
		return nil, fmt.Errorf("pgSeriesRepository.SeriesIDsForTest query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgSeriesRepository.SeriesIDsForTest scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgSeriesRepository) Subscribe(ctx context.Context, userID, seriesID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO series_subscriptions (user_id, series_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, seriesID)
	if err != nil {
		return fmt.Errorf("pgSeriesRepository.Subscribe: %w", err)
	}
	return nil
}

func (r *pgSeriesRepository) IsSubscribed(ctx context.Context, userID, seriesID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM series_subscriptions WHERE user_id = $1 AND series_id = $2)`,
		userID, seriesID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("pgSeriesRepository.IsSubscribed: %w", err)
	}
	return ok, nil
}

func (r *pgSeriesRepository) UpsertProgress(ctx context.Context, userID string, p model.SeriesProgress) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO series_progress (user_id, series_id, test_id, attempt_id, percentage, is_passed, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, series_id, test_id) DO UPDATE
		 SET attempt_id = EXCLUDED.attempt_id, percentage = EXCLUDED.percentage,
		     is_passed = EXCLUDED.is_passed, completed_at = EXCLUDED.completed_at`,
		userID, p.SeriesID, p.TestID, p.AttemptID, p.Percentage, p.IsPassed, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("pgSeriesRepository.UpsertProgress: %w", err)
	}
	return nil
}

func (r *pgSeriesRepository) ListProgress(ctx context.Context, userID, seriesID string) ([]model.SeriesProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT series_id, test_id, attempt_id, percentage, is_passed, completed_at
		 FROM series_progress WHERE user_id = $1 AND series_id = $2 ORDER BY completed_at`, userID, seriesID)
	if err != nil {
		return nil, fmt.Errorf("pgSeriesRepository.ListProgress query: %w", err)
	}
	defer rows.Close()

	progress := []model.SeriesProgress{}
	for rows.Next() {
		var p model.SeriesProgress
		if err := rows.Scan(&p.SeriesID, &p.TestID, &p.AttemptID, &p.Percentage, &p.IsPassed, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("pgSeriesRepository.ListProgress scan: %w", err)
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}
