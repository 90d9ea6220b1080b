package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockTokenStore(t *testing.T) (*TokenStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTokenStore(db), mock
}

func TestTokenStoreCreateToken(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectExec("INSERT INTO api_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, plaintext, err := store.CreateToken(context.Background(), "p1", "ci-runner", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plaintext, TokenPrefix))
	assert.NotEmpty(t, token.ID)
	assert.Equal(t, "p1", token.ProfileID)
	assert.Equal(t, "ci-runner", token.Name)
	assert.Nil(t, token.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStoreLookupToken(t *testing.T) {
	store, mock := newMockTokenStore(t)
	now := time.Now().UTC()

	plaintext := "bln_dGVzdHRva2VuMTIzNDU2Nzg"
	hash := NewTokenGenerator().HashToken(plaintext)

	mock.ExpectQuery("SELECT (.+) FROM api_tokens").
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "profile_id", "name", "created_at", "expires_at", "last_used_at"}).
			AddRow("t1", "p1", "ci-runner", now, nil, nil))
	mock.ExpectExec("UPDATE api_tokens SET last_used_at").
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, err := store.LookupToken(context.Background(), plaintext)
	require.NoError(t, err)
	assert.Equal(t, "t1", token.ID)
	assert.Equal(t, "p1", token.ProfileID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStoreLookupToken_MalformedSkipsDatabase(t *testing.T) {
	store, mock := newMockTokenStore(t)

	_, err := store.LookupToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query for malformed tokens")
}

func TestTokenStoreLookupToken_UnknownHash(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectQuery("SELECT (.+) FROM api_tokens").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "profile_id", "name", "created_at", "expires_at", "last_used_at"}))

	_, err := store.LookupToken(context.Background(), "bln_dGVzdHRva2VuMTIzNDU2Nzg")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStoreRevokeToken(t *testing.T) {
	store, mock := newMockTokenStore(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE api_tokens").
		WithArgs("t1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.RevokeToken(ctx, "p1", "t1"))

	// Someone else's token id revokes nothing.
	mock.ExpectExec("UPDATE api_tokens").
		WithArgs("t1", "p2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.RevokeToken(ctx, "p2", "t1"), ErrInvalidCredentials)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStoreListTokens(t *testing.T) {
	store, mock := newMockTokenStore(t)
	now := time.Now().UTC()
	revoked := now.Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM api_tokens").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "profile_id", "name", "created_at", "expires_at", "last_used_at", "revoked_at"}).
			AddRow("t2", "p1", "laptop", now, nil, nil, nil).
			AddRow("t1", "p1", "old", now.Add(-48*time.Hour), nil, nil, revoked))

	tokens, err := store.ListTokens(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Nil(t, tokens[0].RevokedAt)
	require.NotNil(t, tokens[1].RevokedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStoreDeleteExpired(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectExec("DELETE FROM api_tokens").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
