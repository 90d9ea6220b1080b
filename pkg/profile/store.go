package profile

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Lookup against the profiles table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetProfile retrieves a profile by principal id. Returns (nil, nil) when the
// profile does not exist.
func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	query := `
		SELECT id, email, role, organization_id, site_id, status, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	p := &Profile{}
	var orgID, siteID sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.Role, &orgID, &siteID, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if orgID.Valid {
		v := orgID.String
		p.OrganizationID = &v
	}
	if siteID.Valid {
		v := siteID.String
		p.SiteID = &v
	}

	return p, nil
}

// UpsertProfile creates or replaces a profile row. Used by onboarding tooling
// and tests; the request path never writes profiles.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (id, email, role, organization_id, site_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET email = EXCLUDED.email, role = EXCLUDED.role,
		              organization_id = EXCLUDED.organization_id,
		              site_id = EXCLUDED.site_id, status = EXCLUDED.status,
		              updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Email, p.Role,
		nullable(p.OrganizationID), nullable(p.SiteID), p.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
