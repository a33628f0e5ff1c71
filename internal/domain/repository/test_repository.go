package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"testseries/internal/common"
	"testseries/internal/domain/model"

	"github.com/lib/pq"
)

// TestFilter narrows ListTests. PublishedOnly is set for students.
type TestFilter struct {
	Subject       string
	Grade         string
	Search        string
	PublishedOnly bool
	Limit         int
	Offset        int
}

type TestRepository interface {
	CreateTest(ctx context.Context, tx *sql.Tx, test *model.Test) error
	UpdateTest(ctx context.Context, tx *sql.Tx, test *model.Test) error
	SetPublished(ctx context.Context, id string, published bool) error
	FindTestByID(ctx context.Context, id string) (*model.Test, error)
	ListTests(ctx context.Context, f TestFilter) ([]model.Test, int, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type pgTestRepository struct {
	db *sql.DB
}

func NewPgTestRepository(db *sql.DB) TestRepository {
	return &pgTestRepository{db: db}
}

func (r *pgTestRepository) CreateTest(ctx context.Context, tx *sql.Tx, t *model.Test) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("pgTestRepository.CreateTest marshal questions: %w", err)
	}
	query := `INSERT INTO tests (id, title, slug, description, subject, grade, duration_minutes, passing_score,
	                             is_paid, price, is_published, tags, questions, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          RETURNING created_at, updated_at`
	err = pick(r.db, tx).QueryRowContext(ctx, query, t.ID, t.Title, t.Slug, t.Description, t.Subject, t.Grade,
		t.DurationMinutes, t.PassingScore, t.IsPaid, t.Price, t.IsPublished, pq.Array(t.Tags), questions, t.CreatedByID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) { // slug
			return fmt.Errorf("test with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTestRepository.CreateTest: %w", err)
	}
	return nil
}

func (r *pgTestRepository) UpdateTest(ctx context.Context, tx *sql.Tx, t *model.Test) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("pgTestRepository.UpdateTest marshal questions: %w", err)
	}
	query := `UPDATE tests SET
	            title = $1, slug = $2, description = $3, subject = $4, grade = $5, duration_minutes = $6,
	            passing_score = $7, is_paid = $8, price = $9, is_published = $10, tags = $11, questions = $12,
	            updated_at = CURRENT_TIMESTAMP
	          WHERE id = $13 RETURNING updated_at`
	err = pick(r.db, tx).QueryRowContext(ctx, query, t.Title, t.Slug, t.Description, t.Subject, t.Grade,
		t.DurationMinutes, t.PassingScore, t.IsPaid, t.Price, t.IsPublished, pq.Array(t.Tags), questions, t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("test with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTestRepository.UpdateTest: %w", err)
	}
	return nil
}

func (r *pgTestRepository) SetPublished(ctx context.Context, id string, published bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tests SET is_published = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, published, id)
	if err != nil {
		return fmt.Errorf("pgTestRepository.SetPublished: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgTestRepository) FindTestByID(ctx context.Context, id string) (*model.Test, error) {
	query := `SELECT id, title, slug, description, subject, grade, duration_minutes, passing_score,
	                 is_paid, price, is_published, tags, questions, created_by, created_at, updated_at
	          FROM tests WHERE id = $1`

	t := &model.Test{}
	var questions []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.Slug, &t.Description, &t.Subject, &t.Grade, &t.DurationMinutes, &t.PassingScore,
		&t.IsPaid, &t.Price, &t.IsPublished, pq.Array(&t.Tags), &questions, &t.CreatedByID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTestRepository.FindTestByID: %w", err)
	}
	if err := json.Unmarshal(questions, &t.Questions); err != nil {
		return nil, fmt.Errorf("pgTestRepository.FindTestByID decode questions for %s: %w", id, err)
	}
	t.QuestionCount = len(t.Questions)
	for _, q := range t.Questions {
		t.TotalMarks += q.Marks
	}
	return t, nil
}

func (r *pgTestRepository) ListTests(ctx context.Context, f TestFilter) ([]model.Test, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if f.PublishedOnly {
		conditions = append(conditions, "t.is_published")
	}
	if f.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("t.subject = $%d", argID))
		args = append(args, f.Subject)
		argID++
	}
	if f.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("t.grade = $%d", argID))
		args = append(args, f.Grade)
		argID++
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", argID, argID))
		args = append(args, "%"+f.Search+"%")
		argID++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tests t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgTestRepository.ListTests count: %w", err)
	}

	query := `SELECT t.id, t.title, t.slug, t.description, t.subject, t.grade, t.duration_minutes, t.passing_score,
	                 t.is_paid, t.price, t.is_published, t.tags, t.created_by, t.created_at, t.updated_at,
	                 jsonb_array_length(t.questions),
	                 COALESCE((SELECT SUM(COALESCE((q->>'marks')::int, 1)) FROM jsonb_array_elements(t.questions) q), 0)
	          FROM tests t` + where +
		fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgTestRepository.ListTests query: %w", err)
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Slug, &t.Description, &t.Subject, &t.Grade, &t.DurationMinutes,
			&t.PassingScore, &t.IsPaid, &t.Price, &t.IsPublished, pq.Array(&t.Tags), &t.CreatedByID,
			&t.CreatedAt, &t.UpdatedAt, &t.QuestionCount, &t.TotalMarks); err != nil {
			return nil, 0, fmt.Errorf("pgTestRepository.ListTests scan: %w", err)
		}
		tests = append(tests, t)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgTestRepository.ListTests rows.Err: %w", err)
	}
	return tests, total, nil
}

func (r *pgTestRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT subject, COUNT(*) FROM tests WHERE is_published AND subject <> ''
		 GROUP BY subject ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListCategories query: %w", err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Subject, &c.TestCount); err != nil {
			return nil, fmt.Errorf("pgTestRepository.ListCategories scan: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
