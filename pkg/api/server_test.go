package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueline/blueline/pkg/audit"
	"github.com/blueline/blueline/pkg/blueprints"
	"github.com/blueline/blueline/pkg/documents"
	"github.com/blueline/blueline/pkg/httputil"
	"github.com/blueline/blueline/pkg/identity"
	"github.com/blueline/blueline/pkg/middleware"
	"github.com/blueline/blueline/pkg/observability"
	"github.com/blueline/blueline/pkg/profile"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, credential string) (*identity.Principal, error) {
	if credential == "good" {
		return &identity.Principal{ID: "alice"}, nil
	}
	return nil, identity.ErrInvalidCredentials
}

type stubProfiles struct{}

func (stubProfiles) GetProfile(_ context.Context, id string) (*profile.Profile, error) {
	if id != "alice" {
		return nil, nil
	}
	site := "site-1"
	return &profile.Profile{ID: "alice", Role: profile.RoleWorker, SiteID: &site, Status: profile.StatusActive}, nil
}

type stubDocuments struct {
	docs map[string]*documents.MarkupDocument
}

func (s *stubDocuments) List(_ context.Context, p *profile.Profile, _ documents.ListQuery) (*documents.Page, error) {
	if !p.Active() {
		return nil, documents.ErrUnauthenticated
	}
	items := make([]*documents.MarkupDocument, 0, len(s.docs))
	for _, d := range s.docs {
		items = append(items, d)
	}
	return &documents.Page{Items: items, TotalCount: len(items), Page: 1, Limit: 20}, nil
}

func (s *stubDocuments) Get(_ context.Context, p *profile.Profile, id string) (*documents.MarkupDocument, error) {
	if !p.Active() {
		return nil, documents.ErrUnauthenticated
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	return doc, nil
}

func (s *stubDocuments) Create(_ context.Context, p *profile.Profile, req *documents.CreateRequest) (*documents.MarkupDocument, error) {
	if !p.Active() {
		return nil, documents.ErrUnauthenticated
	}
	if req.Title == "" {
		verr := &documents.ValidationError{Violations: []documents.FieldViolation{{Field: "title", Message: "is required"}}}
		return nil, verr
	}
	doc := &documents.MarkupDocument{ID: "new-doc", Title: req.Title, CreatedBy: p.ID}
	s.docs[doc.ID] = doc
	return doc, nil
}

func (s *stubDocuments) Update(_ context.Context, p *profile.Profile, id string, req *documents.UpdateRequest) (*documents.MarkupDocument, error) {
	doc, err := s.Get(context.Background(), p, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		doc.Title = *req.Title
	}
	return doc, nil
}

func (s *stubDocuments) SoftDelete(_ context.Context, p *profile.Profile, id string) error {
	if _, err := s.Get(context.Background(), p, id); err != nil {
		return err
	}
	delete(s.docs, id)
	return nil
}

type stubTokens struct {
	tokens map[string]*identity.APIToken
}

func (s *stubTokens) CreateToken(_ context.Context, profileID, name string, expiresAt *time.Time) (*identity.APIToken, string, error) {
	token := &identity.APIToken{ID: "tok-1", ProfileID: profileID, Name: name, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC()}
	s.tokens[token.ID] = token
	return token, "bln_secret", nil
}

func (s *stubTokens) ListTokens(_ context.Context, profileID string) ([]*identity.APIToken, error) {
	var out []*identity.APIToken
	for _, t := range s.tokens {
		if t.ProfileID == profileID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubTokens) RevokeToken(_ context.Context, profileID, tokenID string) error {
	t, ok := s.tokens[tokenID]
	if !ok || t.ProfileID != profileID {
		return identity.ErrInvalidCredentials
	}
	delete(s.tokens, tokenID)
	return nil
}

type stubBlueprints struct{}

func (stubBlueprints) CreateUpload(_ context.Context, req blueprints.UploadRequest) (*blueprints.Upload, error) {
	if req.ContentType != "application/pdf" {
		return nil, blueprints.ErrUnsupportedContentType
	}
	return &blueprints.Upload{Key: "blueprints/u1.pdf", URL: "https://s3.test/u1", Method: "PUT"}, nil
}

func (stubBlueprints) DownloadURL(_ context.Context, key string) (string, error) {
	return "https://s3.test/" + key + "?signed", nil
}

type stubAuditTrail struct{}

func (stubAuditTrail) ListByDocument(_ context.Context, documentID string, _ int) ([]audit.Event, error) {
	return []audit.Event{{ID: 1, Action: "document.create", ActorID: "alice", DocumentID: documentID, Status: "success"}}, nil
}

func testServer(t *testing.T) (*Server, *stubDocuments) {
	t.Helper()

	docs := &stubDocuments{docs: map[string]*documents.MarkupDocument{
		"d1": {ID: "d1", Title: "Site plan", CreatedBy: "alice"},
	}}

	srv := NewServer(Deps{
		Logger:     observability.NewLogger(observability.ErrorLevel, io.Discard),
		Documents:  docs,
		Tokens:     &stubTokens{tokens: map[string]*identity.APIToken{}},
		Blueprints: stubBlueprints{},
		AuditTrail: stubAuditTrail{},
		Auth:       middleware.NewAuthMiddleware(stubResolver{}, stubProfiles{}),
	})
	return srv, docs
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}

	router := mux.NewRouter()
	srv.RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Envelope {
	t.Helper()
	var env httputil.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRoutesRequireAuth(t *testing.T) {
	srv, _ := testServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/documents"},
		{http.MethodGet, "/api/v1/documents/d1"},
		{http.MethodPost, "/api/v1/documents"},
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/tokens"},
	} {
		rec := doRequest(t, srv, tc.method, tc.path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestListDocuments(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/documents?page=1&limit=10", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
}

func TestListDocumentsBadPage(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/documents?page=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeEnvelope(t, rec).Error.Code)
}

func TestGetDocument(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/d1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/documents/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeEnvelope(t, rec).Error.Code)
}

func TestCreateDocument(t *testing.T) {
	srv, docs := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/documents", map[string]string{"title": "New plan"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, docs.docs, "new-doc")
}

func TestCreateDocumentValidation(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/documents", map[string]string{"description": "no title"}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_failed", env.Error.Code)
	assert.NotNil(t, env.Error.Details)
}

func TestUpdateDocument(t *testing.T) {
	srv, docs := testServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/documents/d1", map[string]string{"title": "Revised"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Revised", docs.docs["d1"].Title)
}

func TestDeleteDocument(t *testing.T) {
	srv, docs := testServer(t)

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/documents/d1", nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, docs.docs, "d1")

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/documents/d1", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentAudit(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/documents/d1/audit", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)

	// Audit visibility follows document visibility.
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/documents/missing/audit", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/tokens", map[string]string{"name": "ci"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data createTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "bln_secret", created.Data.Plaintext)
	assert.Equal(t, "tok-1", created.Data.Token.ID)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/tokens", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/tokens/tok-1", nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/tokens/tok-1", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTokenValidation(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/tokens", map[string]string{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	past := time.Now().Add(-time.Hour)
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/tokens", createTokenRequest{Name: "old", ExpiresAt: &past}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlueprintUpload(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/blueprints/uploads",
		blueprints.UploadRequest{FileName: "plan.pdf", ContentType: "application/pdf"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/blueprints/uploads",
		blueprints.UploadRequest{FileName: "plan.exe", ContentType: "application/octet-stream"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlueprintDownload(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/blueprints/download?key=blueprints/u1.pdf", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/blueprints/download", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/me", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data meResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Data.Principal.ID)
	require.NotNil(t, body.Data.Profile)
	assert.Equal(t, profile.RoleWorker, body.Data.Profile.Role)
}
