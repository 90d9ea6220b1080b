package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations and sites tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS sites (
					id VARCHAR(64) PRIMARY KEY,
					organization_id VARCHAR(64) REFERENCES organizations(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_sites_organization_id ON sites(organization_id);
			`,
		},
		{
			Version:     2,
			Description: "Create profiles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS profiles (
					id VARCHAR(64) PRIMARY KEY,
					email VARCHAR(320) NOT NULL UNIQUE,
					role VARCHAR(32) NOT NULL DEFAULT 'worker',
					organization_id VARCHAR(64) REFERENCES organizations(id) ON DELETE SET NULL,
					site_id VARCHAR(64) REFERENCES sites(id) ON DELETE SET NULL,
					status VARCHAR(32) NOT NULL DEFAULT 'active',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_profiles_site_id ON profiles(site_id);
				CREATE INDEX idx_profiles_organization_id ON profiles(organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create markup_documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS markup_documents (
					id VARCHAR(64) PRIMARY KEY,
					title VARCHAR(512) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					original_blueprint_url TEXT NOT NULL,
					original_blueprint_filename VARCHAR(512) NOT NULL,
					markup_data JSONB NOT NULL DEFAULT '[]',
					location VARCHAR(16) NOT NULL DEFAULT 'personal',
					created_by VARCHAR(64) NOT NULL,
					site_id VARCHAR(64) REFERENCES sites(id) ON DELETE SET NULL,
					is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
					preview_image_url TEXT NOT NULL DEFAULT '',
					markup_count INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ
				);

				CREATE INDEX idx_markup_documents_created_by ON markup_documents(created_by);
				CREATE INDEX idx_markup_documents_site_id ON markup_documents(site_id);
				CREATE INDEX idx_markup_documents_is_deleted ON markup_documents(is_deleted);
				CREATE INDEX idx_markup_documents_location ON markup_documents(location);
				CREATE INDEX idx_markup_documents_created_at ON markup_documents(created_at);
			`,
		},
		{
			Version:     4,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id VARCHAR(64) PRIMARY KEY,
					profile_id VARCHAR(64) NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ,
					last_used_at TIMESTAMPTZ,
					revoked_at TIMESTAMPTZ
				);

				CREATE INDEX idx_api_tokens_profile_id ON api_tokens(profile_id);
				CREATE INDEX idx_api_tokens_token_hash ON api_tokens(token_hash);
				CREATE INDEX idx_api_tokens_expires_at ON api_tokens(expires_at);
			`,
		},
		{
			Version:     5,
			Description: "Create audit_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_log (
					id BIGSERIAL PRIMARY KEY,
					action VARCHAR(64) NOT NULL,
					actor_id VARCHAR(64) NOT NULL,
					document_id VARCHAR(64) NOT NULL,
					status VARCHAR(16) NOT NULL,
					recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_log_actor_id ON audit_log(actor_id);
				CREATE INDEX idx_audit_log_document_id ON audit_log(document_id);
				CREATE INDEX idx_audit_log_recorded_at ON audit_log(recorded_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own
// transaction, recording applied versions in schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
