package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          string
}

// MigrationManager handles database schema migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// GetMigrations returns all available migrations in order
func (m *MigrationManager) GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Core football schema",
			Up: `
				CREATE TABLE IF NOT EXISTS teams (
					id INTEGER PRIMARY KEY,
					name VARCHAR UNIQUE NOT NULL,
					short_name VARCHAR,
					stadium VARCHAR,
					founded INTEGER
				);

				CREATE TABLE IF NOT EXISTS players (
					id INTEGER PRIMARY KEY,
					name VARCHAR NOT NULL,
					position VARCHAR,
					team VARCHAR,
					nation VARCHAR,
					age INTEGER
				);

				CREATE TABLE IF NOT EXISTS matches (
					id INTEGER PRIMARY KEY,
					home_team VARCHAR NOT NULL,
					away_team VARCHAR NOT NULL,
					home_score INTEGER,
					away_score INTEGER,
					season VARCHAR,
					gameweek INTEGER,
					played_at DATE
				);
			`,
		},
		{
			Version:     2,
			Description: "Per-season player statistics",
			Up: `
				CREATE TABLE IF NOT EXISTS player_stats (
					player_id INTEGER NOT NULL,
					season VARCHAR NOT NULL,
					goals_scored INTEGER DEFAULT 0,
					assists INTEGER DEFAULT 0,
					minutes INTEGER DEFAULT 0,
					goals_conceded INTEGER DEFAULT 0,
					expected_goals DOUBLE DEFAULT 0,
					form DOUBLE DEFAULT 0,
					PRIMARY KEY (player_id, season)
				);
			`,
		},
	}
}

// GetCurrentVersion returns the current schema version
func (m *MigrationManager) GetCurrentVersion(ctx context.Context) (int, error) {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description VARCHAR,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version sql.NullInt64

	err = m.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	return int(version.Int64), nil
}

// MigrateUp applies all pending migrations in order
func (m *MigrationManager) MigrateUp(ctx context.Context) error {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}

	migrations := m.GetMigrations()
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		if _, err := m.db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("migration v%d failed: %w", migration.Version, err)
		}

		_, err = m.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			migration.Version, migration.Description)
		if err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", migration.Version, err)
		}
	}

	return nil
}
