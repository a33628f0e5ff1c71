package database

import (
	"context"
	"database/sql"
	"fmt"
)

type defaultSetting struct {
	key, value, category, description string
	public                            bool
}

var defaultSettings = []defaultSetting{
	{"site_name", "Test Series", "general", "Name shown in the header", true},
	{"support_email", "support@example.com", "general", "Contact address shown to students", true},
	{"maintenance_mode", "false", "system", "Blocks test starts when true", true},
	{"default_passing_score", "60", "tests", "Passing percentage used when a test has none", false},
}

// Seed inserts default settings without overwriting edited values.
func Seed(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range defaultSettings {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, category, description, is_public)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (key) DO NOTHING`,
			s.key, s.value, s.category, s.description, s.public)
		if err != nil {
			return fmt.Errorf("error seeding setting %s: %w", s.key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}
