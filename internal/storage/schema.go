package storage

import (
	"context"
	"errors"
	"fmt"
)

var errMissingDB = errors.New("storage: missing database connection")

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);`

const schemaVideoProgress = `
CREATE TABLE IF NOT EXISTS video_progress (
	video_id TEXT PRIMARY KEY,
	intervals TEXT NOT NULL DEFAULT '[]',
	last_position REAL NOT NULL DEFAULT 0,
	total_duration REAL NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0
);`

const schemaUserProgress = `
CREATE TABLE IF NOT EXISTS user_progress (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	total_watch_time REAL NOT NULL,
	completed_videos INTEGER NOT NULL,
	average_progress INTEGER NOT NULL CHECK (average_progress >= 0 AND average_progress <= 100),
	weekly_progress TEXT NOT NULL
);`

const schemaUserSettings = `
CREATE TABLE IF NOT EXISTS user_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	theme TEXT NOT NULL,
	autoplay INTEGER NOT NULL,
	playback_speed REAL NOT NULL CHECK (playback_speed > 0),
	notifications INTEGER NOT NULL,
	subtitle TEXT NOT NULL
);`

type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			schemaVideoProgress,
			schemaUserProgress,
			schemaUserSettings,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_video_progress_updated_at ON video_progress(updated_at DESC);`,
		},
	},
}

// MigrateSchema applies every migration newer than the recorded version.
func (s *Store) MigrateSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errMissingDB
	}

	if _, err := s.db.ExecContext(ctx, schemaMigrations); err != nil {
		return fmt.Errorf("storage: create schema_migrations table: %w", err)
	}

	current, err := s.currentSchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
		current = m.version
	}
	return nil
}

func (s *Store) currentSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("storage: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: start migration %d: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, statement := range m.statements {
		if _, err = tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("storage: migration %d failed: %w", m.version, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return fmt.Errorf("storage: record migration %d: %w", m.version, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit migration %d: %w", m.version, err)
	}
	return nil
}
