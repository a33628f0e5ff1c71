package database

import (
	"context"
	"database/sql"
	"fmt"
)

const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    external_auth_id TEXT UNIQUE,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    hashed_password TEXT,
    auth_provider TEXT NOT NULL DEFAULT 'password',
    role TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'teacher', 'admin')),
    grade TEXT NOT NULL DEFAULT '',
    subjects TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tests (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    grade TEXT NOT NULL DEFAULT '',
    duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
    passing_score INTEGER,
    is_paid BOOLEAN NOT NULL DEFAULT FALSE,
    price NUMERIC(12, 2) NOT NULL DEFAULT 0,
    is_published BOOLEAN NOT NULL DEFAULT FALSE,
    tags TEXT[] NOT NULL DEFAULT '{}',
    questions JSONB NOT NULL DEFAULT '[]',
    created_by TEXT REFERENCES users(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tests_subject ON tests (subject) WHERE is_published;

CREATE TABLE IF NOT EXISTS test_attempts (
    id TEXT PRIMARY KEY,
    test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id),
    answers JSONB NOT NULL DEFAULT '{}',
    status TEXT NOT NULL CHECK (status IN ('in_progress', 'completed')),
    score INTEGER NOT NULL DEFAULT 0,
    total_marks INTEGER NOT NULL DEFAULT 0,
    percentage INTEGER NOT NULL DEFAULT 0,
    correct_answers INTEGER NOT NULL DEFAULT 0,
    time_taken_seconds INTEGER NOT NULL DEFAULT 0,
    time_remaining_seconds INTEGER,
    is_passed BOOLEAN NOT NULL DEFAULT FALSE,
    started_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
-- At most one open and one finished attempt per (test, user).
CREATE UNIQUE INDEX IF NOT EXISTS uq_attempt_in_progress ON test_attempts (test_id, user_id) WHERE status = 'in_progress';
CREATE UNIQUE INDEX IF NOT EXISTS uq_attempt_completed ON test_attempts (test_id, user_id) WHERE status = 'completed';
CREATE INDEX IF NOT EXISTS idx_attempts_user ON test_attempts (user_id, completed_at DESC);

CREATE TABLE IF NOT EXISTS test_series (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    grade TEXT NOT NULL DEFAULT '',
    price NUMERIC(12, 2) NOT NULL DEFAULT 0,
    discount_percent NUMERIC(5, 2) NOT NULL DEFAULT 0 CHECK (discount_percent >= 0 AND discount_percent <= 100),
    validity_days INTEGER NOT NULL DEFAULT 0,
    is_published BOOLEAN NOT NULL DEFAULT FALSE,
    created_by TEXT REFERENCES users(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS series_tests (
    series_id TEXT NOT NULL REFERENCES test_series(id) ON DELETE CASCADE,
    test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (series_id, test_id)
);
CREATE INDEX IF NOT EXISTS idx_series_tests_test ON series_tests (test_id);

CREATE TABLE IF NOT EXISTS series_subscriptions (
    user_id TEXT NOT NULL REFERENCES users(id),
    series_id TEXT NOT NULL REFERENCES test_series(id) ON DELETE CASCADE,
    subscribed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, series_id)
);

CREATE TABLE IF NOT EXISTS series_progress (
    user_id TEXT NOT NULL REFERENCES users(id),
    series_id TEXT NOT NULL REFERENCES test_series(id) ON DELETE CASCADE,
    test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
    attempt_id TEXT NOT NULL REFERENCES test_attempts(id) ON DELETE CASCADE,
    percentage INTEGER NOT NULL,
    is_passed BOOLEAN NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, series_id, test_id)
);

CREATE TABLE IF NOT EXISTS purchases (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    series_id TEXT REFERENCES test_series(id),
    test_id TEXT REFERENCES tests(id),
    amount NUMERIC(12, 2) NOT NULL,
    currency TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed', 'refunded')),
    access_granted BOOLEAN NOT NULL DEFAULT FALSE,
    payment_reference TEXT NOT NULL UNIQUE,
    transaction_id TEXT,
    expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK ((series_id IS NULL) <> (test_id IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases (user_id, status);

CREATE TABLE IF NOT EXISTS leaderboard_entries (
    user_id TEXT NOT NULL REFERENCES users(id),
    scope_type TEXT NOT NULL CHECK (scope_type IN ('test', 'series')),
    scope_id TEXT NOT NULL,
    time_range TEXT NOT NULL CHECK (time_range IN ('all', 'week', 'month')),
    period_start TIMESTAMPTZ NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    average_time DOUBLE PRECISION NOT NULL,
    attempts INTEGER NOT NULL,
    best_score INTEGER NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, scope_type, scope_id, time_range, period_start)
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON leaderboard_entries (scope_type, scope_id, time_range, period_start, score DESC);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT 'general',
    description TEXT NOT NULL DEFAULT '',
    is_public BOOLEAN NOT NULL DEFAULT FALSE,
    updated_by TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS maintenance_jobs (
    id TEXT PRIMARY KEY,
    job_type TEXT NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}',
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
