package store

import (
	"context"
	"database/sql"
)

// Migrate bootstraps the schema. Every statement is idempotent so the API
// and worker can both run it at startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			reg_no TEXT NOT NULL DEFAULT '',
			is_fresher BOOLEAN NOT NULL DEFAULT FALSE,
			is_eliminated BOOLEAN NOT NULL DEFAULT FALSE,
			current_round INT NOT NULL DEFAULT 0 CHECK (current_round BETWEEN 0 AND 3),
			round0_status TEXT NOT NULL DEFAULT 'pending',
			contact_no TEXT,
			branch TEXT,
			github_profile TEXT,
			project_link TEXT,
			project_text TEXT,
			domains TEXT[] NOT NULL DEFAULT '{}',
			answers TEXT[] NOT NULL DEFAULT '{}',
			management_question INT,
			management_answer TEXT,
			refresh_token TEXT,
			refresh_token_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS candidate_rounds (
			candidate_id UUID NOT NULL REFERENCES candidates(id),
			round INT NOT NULL CHECK (round BETWEEN 1 AND 3),
			status TEXT NOT NULL DEFAULT 'upcoming',
			review TEXT,
			task_title TEXT,
			task_description TEXT,
			task_deadline TIMESTAMPTZ,
			task_link TEXT,
			task_submitted BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (candidate_id, round)
		)`,
		`CREATE TABLE IF NOT EXISTS slots (
			id UUID PRIMARY KEY,
			round INT NOT NULL CHECK (round BETWEEN 1 AND 3),
			scheduled_at TIMESTAMPTZ NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			is_ready BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT 'upcoming',
			meet_link TEXT,
			users UUID[] NOT NULL DEFAULT '{}',
			admins UUID[] NOT NULL DEFAULT '{}',
			reviewer_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			meet_link TEXT,
			access BOOLEAN NOT NULL DEFAULT FALSE,
			refresh_token TEXT,
			refresh_token_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_round_available ON slots (round, scheduled_at) WHERE is_available`,
		`CREATE INDEX IF NOT EXISTS idx_slots_reviewer ON slots (reviewer_id) WHERE reviewer_id IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
