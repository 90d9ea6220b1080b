package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenStore persists API tokens in PostgreSQL. Only the SHA256 hash of a
// token ever reaches a row.
type TokenStore struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewTokenStore creates a token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, generator: NewTokenGenerator()}
}

// CreateToken issues a new token for a profile and returns the plaintext
// exactly once.
func (s *TokenStore) CreateToken(ctx context.Context, profileID, name string, expiresAt *time.Time) (*APIToken, string, error) {
	plaintext, hash, err := s.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := &APIToken{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}

	query := `
		INSERT INTO api_tokens (id, profile_id, name, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.db.ExecContext(ctx, query,
		token.ID, token.ProfileID, token.Name, hash, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to insert token: %w", err)
	}

	return token, plaintext, nil
}

// LookupToken resolves a plaintext token to its live record. Unknown,
// revoked, and expired tokens all return ErrInvalidCredentials.
func (s *TokenStore) LookupToken(ctx context.Context, plaintext string) (*APIToken, error) {
	if err := s.generator.ValidateTokenFormat(plaintext); err != nil {
		return nil, ErrInvalidCredentials
	}

	query := `
		SELECT id, profile_id, name, created_at, expires_at, last_used_at
		FROM api_tokens
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())`

	var token APIToken
	var expiresAt, lastUsedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, s.generator.HashToken(plaintext)).Scan(
		&token.ID, &token.ProfileID, &token.Name, &token.CreatedAt, &expiresAt, &lastUsedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		token.LastUsedAt = &lastUsedAt.Time
	}

	// Best effort; a failed touch never blocks authentication.
	_, _ = s.db.ExecContext(ctx,
		"UPDATE api_tokens SET last_used_at = NOW() WHERE id = $1", token.ID)

	return &token, nil
}

// ListTokens returns every token a profile has issued, including revoked
// ones, newest first.
func (s *TokenStore) ListTokens(ctx context.Context, profileID string) ([]*APIToken, error) {
	query := `
		SELECT id, profile_id, name, created_at, expires_at, last_used_at, revoked_at
		FROM api_tokens
		WHERE profile_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		var token APIToken
		var expiresAt, lastUsedAt, revokedAt sql.NullTime
		err := rows.Scan(&token.ID, &token.ProfileID, &token.Name,
			&token.CreatedAt, &expiresAt, &lastUsedAt, &revokedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		if expiresAt.Valid {
			token.ExpiresAt = &expiresAt.Time
		}
		if lastUsedAt.Valid {
			token.LastUsedAt = &lastUsedAt.Time
		}
		if revokedAt.Valid {
			token.RevokedAt = &revokedAt.Time
		}
		tokens = append(tokens, &token)
	}
	return tokens, rows.Err()
}

// RevokeToken revokes one of the profile's own tokens. Revoking someone
// else's token id reports not-found rather than touching the row.
func (s *TokenStore) RevokeToken(ctx context.Context, profileID, tokenID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND profile_id = $2 AND revoked_at IS NULL`,
		tokenID, profileID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revocation: %w", err)
	}
	if affected == 0 {
		return ErrInvalidCredentials
	}
	return nil
}

// DeleteExpired removes tokens past their expiry. Used by the retention
// sweeper.
func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}
