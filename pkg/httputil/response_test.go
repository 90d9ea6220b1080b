package httputil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteSuccess(w, map[string]string{"id": "d1"}))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
}

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNotFound(w, "document not found")

	assert.Equal(t, 404, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
	assert.Equal(t, "document not found", env.Error.Message)
}

func TestWriteValidationErrorCarriesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteValidationError(w, "validation failed", []map[string]string{
		{"field": "title", "message": "is required"},
	})

	assert.Equal(t, 400, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_failed", env.Error.Code)
	assert.NotNil(t, env.Error.Details)
}

func TestWriteInternalErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalError(w)

	assert.Equal(t, 500, w.Code)
	assert.NotContains(t, w.Body.String(), "sql")
	assert.Contains(t, w.Body.String(), "internal server error")
}
