package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is valid for both SQLite and PostgreSQL.
// Times are stored as UTC unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		nickname TEXT NOT NULL,
		nickname_key TEXT NOT NULL UNIQUE,
		is_guest BOOLEAN NOT NULL,
		session_code TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS registered_players (
		player_id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		code TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		session_code TEXT NOT NULL,
		player_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		texts TEXT NOT NULL,
		selected BOOLEAN NOT NULL,
		total_points INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_session ON submissions (session_code, round)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id TEXT PRIMARY KEY,
		session_code TEXT NOT NULL,
		round INTEGER NOT NULL,
		voter_id TEXT NOT NULL,
		submission_id TEXT NOT NULL,
		category TEXT NOT NULL,
		points INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE (voter_id, submission_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_session ON votes (session_code, round)`,
}

// CreateSchema creates all tables if they don't exist
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
