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

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
	LinkExternalID(ctx context.Context, userID, externalID string) error
	UpdateRole(ctx context.Context, userID, role string) error
	List(ctx context.Context, role string, limit, offset int) ([]model.User, int, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, external_auth_id, email, name, COALESCE(hashed_password, ''), auth_provider, role, grade, subjects, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }, u *model.User) error {
	return row.Scan(&u.ID, &u.ExternalAuthID, &u.Email, &u.Name, &u.HashedPassword, &u.AuthProvider,
		&u.Role, &u.Grade, pq.Array(&u.Subjects), &u.CreatedAt, &u.UpdatedAt)
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, external_auth_id, email, name, hashed_password, auth_provider, role, grade, subjects)
	          VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.ExternalAuthID, user.Email, user.Name, user.HashedPassword,
		user.AuthProvider, user.Role, user.Grade, pq.Array(user.Subjects)).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET name = $1, grade = $2, subjects = $3, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $4 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, user.Name, user.Grade, pq.Array(user.Subjects), user.ID).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("pgUserRepository.Update: %w", err)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, where string, arg interface{}) (*model.User, error) {
	user := &model.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByEmail: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := r.findOne(ctx, "id = $1", id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	user, err := r.findOne(ctx, "external_auth_id = $1", externalID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByExternalID: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) LinkExternalID(ctx context.Context, userID, externalID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET external_auth_id = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2 AND external_auth_id IS NULL`, externalID, userID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("external account already linked: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.LinkExternalID: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s is missing or already linked: %w", userID, common.ErrConflict)
	}
	return nil
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, userID, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, role, userID)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateRole: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) List(ctx context.Context, role string, limit, offset int) ([]model.User, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`, role).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE ($1 = '' OR role = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List rows.Err: %w", err)
	}
	return users, total, nil
}
