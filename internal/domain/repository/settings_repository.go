package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"testseries/internal/common"
	"testseries/internal/domain/model"
)

type SettingsRepository interface {
	ListSettings(ctx context.Context, publicOnly bool, category string) ([]model.Setting, error)
	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	UpsertSetting(ctx context.Context, s *model.Setting) error
	DeleteSetting(ctx context.Context, key string) error
}

type pgSettingsRepository struct {
	db *sql.DB
}

func NewPgSettingsRepository(db *sql.DB) SettingsRepository {
	return &pgSettingsRepository{db: db}
}

func (r *pgSettingsRepository) ListSettings(ctx context.Context, publicOnly bool, category string) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value, category, description, is_public, updated_by, updated_at FROM settings
		 WHERE (NOT $1 OR is_public) AND ($2 = '' OR category = $2)
		 ORDER BY category, key`, publicOnly, category)
	if err != nil {
		return nil, fmt.Errorf("pgSettingsRepository.ListSettings query: %w", err)
	}
	defer rows.Close()

	settings := []model.Setting{}
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Category, &s.Description, &s.IsPublic, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgSettingsRepository.ListSettings scan: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *pgSettingsRepository) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	s := &model.Setting{}
	err := r.db.QueryRowContext(ctx,
		`SELECT key, value, category, description, is_public, updated_by, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&s.Key, &s.Value, &s.Category, &s.Description, &s.IsPublic, &s.UpdatedBy, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSettingsRepository.GetSetting: %w", err)
	}
	return s, nil
}

func (r *pgSettingsRepository) UpsertSetting(ctx context.Context, s *model.Setting) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO settings (key, value, category, description, is_public, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, category = EXCLUDED.category,
		     description = EXCLUDED.description, is_public = EXCLUDED.is_public,
		     updated_by = EXCLUDED.updated_by, updated_at = CURRENT_TIMESTAMP
		 RETURNING updated_at`,
		s.Key, s.Value, s.Category, s.Description, s.IsPublic, s.UpdatedBy).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgSettingsRepository.UpsertSetting: %w", err)
	}
	return nil
}

func (r *pgSettingsRepository) DeleteSetting(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("pgSettingsRepository.DeleteSetting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
