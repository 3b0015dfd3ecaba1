package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/metrics"
	"github.com/finrag/finrag/pkg/rag"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	corpora map[string]corpus.Corpus
	docs    map[string][]corpus.Document
}

func newStubStore() *stubStore {
	return &stubStore{
		corpora: map[string]corpus.Corpus{},
		docs:    map[string][]corpus.Document{},
	}
}

func (s *stubStore) CreateCorpus(_ context.Context, c corpus.Corpus) (corpus.Corpus, error) {
	if _, ok := s.corpora[c.Key]; ok {
		return corpus.Corpus{}, corpus.ErrCorpusExists
	}
	s.corpora[c.Key] = c
	return c, nil
}

func (s *stubStore) GetCorpus(_ context.Context, key string) (corpus.Corpus, error) {
	c, ok := s.corpora[key]
	if !ok {
		return corpus.Corpus{}, corpus.ErrCorpusNotFound
	}
	return c, nil
}

func (s *stubStore) ListCorpora(_ context.Context) ([]corpus.Corpus, error) {
	var out []corpus.Corpus
	for _, c := range s.corpora {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubStore) DeleteCorpus(_ context.Context, key string) error {
	if _, ok := s.corpora[key]; !ok {
		return corpus.ErrCorpusNotFound
	}
	delete(s.corpora, key)
	return nil
}

func (s *stubStore) ListDocuments(_ context.Context, corpusKey string) ([]corpus.Document, error) {
	if _, ok := s.corpora[corpusKey]; !ok {
		return nil, corpus.ErrCorpusNotFound
	}
	return s.docs[corpusKey], nil
}

func (s *stubStore) DeleteDocument(_ context.Context, corpusKey, id string) error {
	for i, d := range s.docs[corpusKey] {
		if d.ID == id {
			s.docs[corpusKey] = append(s.docs[corpusKey][:i], s.docs[corpusKey][i+1:]...)
			return nil
		}
	}
	return corpus.ErrDocumentNotFound
}

type stubEngine struct {
	indexed     []corpus.Document
	indexedText []string
	lastQuery   string
	lastCorpus  string
	lastOpts    rag.QueryOptions
	answer      rag.Answer
	err         error
}

func (e *stubEngine) IndexDocument(_ context.Context, doc corpus.Document, text string) (corpus.Document, error) {
	if e.err != nil {
		return corpus.Document{}, e.err
	}
	e.indexed = append(e.indexed, doc)
	e.indexedText = append(e.indexedText, text)
	return doc, nil
}

func (e *stubEngine) Query(_ context.Context, corpusKey, question string, opts rag.QueryOptions) (rag.Answer, error) {
	e.lastCorpus = corpusKey
	e.lastQuery = question
	e.lastOpts = opts
	return e.answer, e.err
}

func newTestServer(t *testing.T, apiKeys map[string]string) (*Server, *stubStore, *stubEngine) {
	t.Helper()
	store := newStubStore()
	engine := &stubEngine{}
	server := NewServer(store, engine, Options{APIKeys: apiKeys, Logger: zap.NewNop()})
	return server, store, engine
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	server, _, _ := newTestServer(t, map[string]string{"secret": "analyst"})

	t.Run("missing key is unauthorized", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodGet, "/v2/corpora", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong key is forbidden", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodGet, "/v2/corpora", nil, map[string]string{"X-Api-Key": "nope"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("valid key is accepted", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodGet, "/v2/corpora", nil, map[string]string{"X-Api-Key": "secret"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health needs no key", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodGet, "/healthz", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCorporaHandlers(t *testing.T) {
	server, store, _ := newTestServer(t, nil)

	t.Run("create", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/corpora",
			map[string]string{"key": "fin", "name": "Financials"}, nil)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, store.corpora, "fin")
	})

	t.Run("create duplicate conflicts", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/corpora",
			map[string]string{"key": "fin"}, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("create rejects malformed key", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/corpora",
			map[string]string{"key": "bad key!"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get missing corpus is 404", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodGet, "/v2/corpora/none", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodDelete, "/v2/corpora/fin", nil, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.NotContains(t, store.corpora, "fin")
	})
}

func multipartUpload(t *testing.T, filename string, content []byte, metadata string, metadataType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)

	if metadata != "" {
		mh := textproto.MIMEHeader{}
		mh.Set("Content-Disposition", `form-data; name="metadata"; filename="metadata"`)
		mh.Set("Content-Type", metadataType)
		mw, err := w.CreatePart(mh)
		require.NoError(t, err)
		_, err = mw.Write([]byte(metadata))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadFile(t *testing.T) {
	server, store, engine := newTestServer(t, nil)
	store.corpora["fin"] = corpus.Corpus{Key: "fin"}

	t.Run("uploads and indexes a text file", func(t *testing.T) {
		body, contentType := multipartUpload(t, "report.txt", []byte("Revenue: $100."), `{"quarter":"Q1"}`, "application/json")
		req := httptest.NewRequest(http.MethodPost, "/v2/corpora/fin/upload_file", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Len(t, engine.indexed, 1)
		doc := engine.indexed[0]
		assert.Equal(t, "fin", doc.CorpusKey)
		assert.Equal(t, "report.txt", doc.Filename)
		assert.NotEmpty(t, doc.ID)
		assert.JSONEq(t, `{"quarter":"Q1"}`, string(doc.Metadata))
		assert.Equal(t, "Revenue: $100.", engine.indexedText[0])
	})

	t.Run("rejects metadata that is not application/json", func(t *testing.T) {
		body, contentType := multipartUpload(t, "report.txt", []byte("text"), `{"a":1}`, "text/plain")
		req := httptest.NewRequest(http.MethodPost, "/v2/corpora/fin/upload_file", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "application/json")
	})

	t.Run("rejects missing file part", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/v2/corpora/fin/upload_file", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects uploads over the size cap", func(t *testing.T) {
		capped := NewServer(store, engine, Options{MaxUploadBytes: 1024, Logger: zap.NewNop()})
		indexedBefore := len(engine.indexed)

		body, contentType := multipartUpload(t, "big.txt", bytes.Repeat([]byte("a"), 4096), "", "")
		req := httptest.NewRequest(http.MethodPost, "/v2/corpora/fin/upload_file", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		capped.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Len(t, engine.indexed, indexedBefore)
	})

	t.Run("corrupt pdf counts as extract failure", func(t *testing.T) {
		extractBefore := promtestutil.ToFloat64(metrics.UploadErrors.WithLabelValues("extract"))
		unsupportedBefore := promtestutil.ToFloat64(metrics.UploadErrors.WithLabelValues("unsupported_type"))

		body, contentType := multipartUpload(t, "bad.pdf", []byte("%PDF-1.7 garbage"), "", "")
		req := httptest.NewRequest(http.MethodPost, "/v2/corpora/fin/upload_file", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, extractBefore+1, promtestutil.ToFloat64(metrics.UploadErrors.WithLabelValues("extract")))
		assert.Equal(t, unsupportedBefore, promtestutil.ToFloat64(metrics.UploadErrors.WithLabelValues("unsupported_type")))
	})

	t.Run("unknown corpus is 404", func(t *testing.T) {
		engine.err = corpus.ErrCorpusNotFound
		defer func() { engine.err = nil }()

		body, contentType := multipartUpload(t, "x.txt", []byte("text"), "", "")
		req := httptest.NewRequest(http.MethodPost, "/v2/corpora/ghost/upload_file", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestQueryHandler(t *testing.T) {
	server, _, engine := newTestServer(t, nil)
	engine.answer = rag.Answer{
		SearchResults: []corpus.SearchResult{{DocumentID: "d1", Filename: "q1.pdf", Text: "Revenue: $1,000", Score: 0.9}},
		Summary:       "revenue was $1,000",
	}

	queryBody := func(generation bool) map[string]any {
		body := map[string]any{
			"query": "what was the revenue?",
			"search": map[string]any{
				"corpora": []map[string]string{{"corpus_key": "fin"}},
				"limit":   7,
			},
		}
		if generation {
			body["generation"] = map[string]any{"max_used_search_results": 3}
		}
		return body
	}

	t.Run("returns answer with generation enabled", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/query", queryBody(true), nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "fin", engine.lastCorpus)
		assert.Equal(t, "what was the revenue?", engine.lastQuery)
		assert.True(t, engine.lastOpts.GenerationEnabled)
		assert.Equal(t, 3, engine.lastOpts.MaxUsedSearchResults)
		assert.Equal(t, 7, engine.lastOpts.Limit)

		var answer rag.Answer
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
		assert.Equal(t, "revenue was $1,000", answer.Summary)
		require.Len(t, answer.SearchResults, 1)
	})

	t.Run("omitting generation disables it", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/query", queryBody(false), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, engine.lastOpts.GenerationEnabled)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		body := queryBody(false)
		body["query"] = "  "
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/query", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects zero or multiple corpora", func(t *testing.T) {
		body := queryBody(false)
		body["search"] = map[string]any{"corpora": []map[string]string{}}
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/query", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMetricsTableHandler(t *testing.T) {
	server, _, engine := newTestServer(t, nil)
	engine.answer = rag.Answer{
		SearchResults: []corpus.SearchResult{
			{Filename: "q1.pdf", Text: "Revenue: $1,000 and Net Profit: 300"},
			{Filename: "q2.pdf", Text: "Revenue: $2,000"},
		},
	}

	t.Run("builds a per-document table", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/metrics",
			map[string]any{"corpus_key": "fin", "metrics": []string{"Revenue", "Net Profit"}}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, engine.lastQuery, "financial statements showing:")

		var table struct {
			Documents []string                     `json:"documents"`
			Values    map[string]map[string]string `json:"values"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &table))
		assert.Equal(t, []string{"q1.pdf", "q2.pdf"}, table.Documents)
		assert.Equal(t, "1000", table.Values["q1.pdf"]["Revenue"])
		assert.Equal(t, "N/A", table.Values["q2.pdf"]["Net Profit"])
	})

	t.Run("csv format sets download headers", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/metrics",
			map[string]any{"corpus_key": "fin", "metrics": []string{"Revenue"}, "format": "csv"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "financial_comparison.csv")
		assert.True(t, strings.HasPrefix(w.Body.String(), "Metric,"))
	})

	t.Run("requires corpus_key", func(t *testing.T) {
		w := doJSON(t, server.Handler(), http.MethodPost, "/v2/metrics", map[string]any{}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
