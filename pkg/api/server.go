package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/blueline/blueline/pkg/audit"
	"github.com/blueline/blueline/pkg/httputil"
	"github.com/blueline/blueline/pkg/middleware"
	"github.com/blueline/blueline/pkg/observability"
)

// AuditTrail reads back persisted audit events.
type AuditTrail interface {
	ListByDocument(ctx context.Context, documentID string, limit int) ([]audit.Event, error)
}

// Deps carries everything the HTTP server needs. Auth is required; the rate
// limiter, metrics, and tracing are optional.
type Deps struct {
	Logger     *observability.Logger
	Documents  DocumentService
	Tokens     TokenService
	Blueprints BlueprintService
	AuditTrail AuditTrail

	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
	Metrics   *observability.Metrics

	CORSOrigins  []string
	MaxBodyBytes int64
	OTelEnabled  bool
}

// Server is the HTTP API server.
type Server struct {
	logger     *observability.Logger
	documents  DocumentService
	tokens     TokenService
	blueprints BlueprintService
	auditTrail AuditTrail

	auth      *middleware.AuthMiddleware
	rateLimit *middleware.RateLimitMiddleware
	metrics   *observability.Metrics

	corsOrigins  []string
	maxBodyBytes int64
	otelEnabled  bool
}

// NewServer creates the API server.
func NewServer(deps Deps) *Server {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}
	return &Server{
		logger:       deps.Logger,
		documents:    deps.Documents,
		tokens:       deps.Tokens,
		blueprints:   deps.Blueprints,
		auditTrail:   deps.AuditTrail,
		auth:         deps.Auth,
		rateLimit:    deps.RateLimit,
		metrics:      deps.Metrics,
		corsOrigins:  deps.CORSOrigins,
		maxBodyBytes: deps.MaxBodyBytes,
		otelEnabled:  deps.OTelEnabled,
	}
}

// Router builds the full HTTP handler with its middleware chain.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	s.RegisterRoutes(router)

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger.Slog()),
		httputil.LoggingMiddleware(s.logger.Slog()),
	}
	if s.metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(s.metrics))
	}
	if len(s.corsOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(s.corsOrigins))
	}
	chain = append(chain, httputil.MaxBytesMiddleware(s.maxBodyBytes))

	handler := httputil.Chain(chain...)(router)
	if s.otelEnabled {
		handler = otelhttp.NewHandler(handler, "blueline-api")
	}
	return handler
}

// RegisterRoutes mounts the API routes on the router. Every route sits behind
// authentication; rate limiting applies when configured.
func (s *Server) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(mux.MiddlewareFunc(s.auth.Handler))
	if s.rateLimit != nil {
		api.Use(mux.MiddlewareFunc(s.rateLimit.Handler))
	}

	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	api.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents", s.handleCreateDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleUpdateDocument).Methods(http.MethodPut)
	api.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/audit", s.handleDocumentAudit).Methods(http.MethodGet)

	api.HandleFunc("/tokens", s.handleCreateToken).Methods(http.MethodPost)
	api.HandleFunc("/tokens", s.handleListTokens).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{id}", s.handleRevokeToken).Methods(http.MethodDelete)

	api.HandleFunc("/blueprints/uploads", s.handleCreateBlueprintUpload).Methods(http.MethodPost)
	api.HandleFunc("/blueprints/download", s.handleBlueprintDownload).Methods(http.MethodGet)
}
