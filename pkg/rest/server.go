// Package rest exposes the corpus, document and query API over HTTP.
package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/httputil"
	mw "github.com/finrag/finrag/pkg/httputil/middleware"
	"github.com/finrag/finrag/pkg/rag"
	"go.uber.org/zap"
)

// Store is the slice of the corpus store the API serves.
type Store interface {
	CreateCorpus(ctx context.Context, c corpus.Corpus) (corpus.Corpus, error)
	GetCorpus(ctx context.Context, key string) (corpus.Corpus, error)
	ListCorpora(ctx context.Context) ([]corpus.Corpus, error)
	DeleteCorpus(ctx context.Context, key string) error
	ListDocuments(ctx context.Context, corpusKey string) ([]corpus.Document, error)
	DeleteDocument(ctx context.Context, corpusKey, id string) error
}

// Engine indexes documents and answers queries.
type Engine interface {
	IndexDocument(ctx context.Context, doc corpus.Document, text string) (corpus.Document, error)
	Query(ctx context.Context, corpusKey, question string, opts rag.QueryOptions) (rag.Answer, error)
}

// Options configures the API server.
type Options struct {
	// APIKeys maps accepted keys to principal names. Empty disables auth.
	APIKeys map[string]string
	// MaxUploadBytes caps multipart uploads. Zero means 32 MiB.
	MaxUploadBytes int64
	// LogRequests enables the request logging middleware.
	LogRequests bool
	Logger      *zap.Logger
}

// Server handles the /v2 API.
type Server struct {
	store          Store
	engine         Engine
	router         *httputil.Router
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewServer wires routes and middleware. Health is served unauthenticated;
// everything under /v2 requires an API key when keys are configured.
func NewServer(store Store, engine Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}

	s := &Server{
		store:          store,
		engine:         engine,
		router:         httputil.NewRouter(),
		logger:         logger,
		maxUploadBytes: maxUpload,
	}

	s.router.Use(mw.RequestID, mw.CORSWithOptions(nil))
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	v2 := s.router.Group("/v2")
	if len(opts.APIKeys) > 0 {
		v2.Use(mw.VerifyAPIKey(&mw.APIKeyConfig{Keys: opts.APIKeys}))
	}
	if opts.LogRequests {
		v2.Use(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	}

	v2.HandleFunc("GET /corpora", s.handleListCorpora)
	v2.HandleFunc("POST /corpora", s.handleCreateCorpus)
	v2.HandleFunc("GET /corpora/{key}", s.handleGetCorpus)
	v2.HandleFunc("DELETE /corpora/{key}", s.handleDeleteCorpus)
	v2.HandleFunc("POST /corpora/{key}/upload_file", s.handleUploadFile)
	v2.HandleFunc("GET /corpora/{key}/documents", s.handleListDocuments)
	v2.HandleFunc("DELETE /corpora/{key}/documents/{id}", s.handleDeleteDocument)
	v2.HandleFunc("POST /query", s.handleQuery)
	v2.HandleFunc("POST /metrics", s.handleMetricsTable)

	return s
}

// Handler exposes the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router.Handler()
}

// ListenAndServe starts the API server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.router.ListenAndServe(addr)
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// storeError maps domain errors onto API status codes.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, corpus.ErrCorpusNotFound), errors.Is(err, corpus.ErrDocumentNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, corpus.ErrCorpusExists):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.Error(w, http.StatusInternalServerError, err.Error())
	}
}
