package rest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finrag/finrag/pkg/extract"
	"github.com/finrag/finrag/pkg/httputil"
	"github.com/finrag/finrag/pkg/metrics"
	"github.com/finrag/finrag/pkg/rag"
)

// QueryRequest mirrors the wire shape the dashboard client sends.
type QueryRequest struct {
	Query  string `json:"query"`
	Search struct {
		Corpora []struct {
			CorpusKey string `json:"corpus_key"`
		} `json:"corpora"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"search"`
	Generation *struct {
		MaxUsedSearchResults int `json:"max_used_search_results"`
	} `json:"generation"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		httputil.Error(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if len(req.Search.Corpora) != 1 {
		httputil.Error(w, http.StatusBadRequest, "search.corpora must name exactly one corpus_key")
		return
	}
	corpusKey := req.Search.Corpora[0].CorpusKey

	opts := rag.QueryOptions{
		Limit:  req.Search.Limit,
		Offset: req.Search.Offset,
	}
	if req.Generation != nil {
		opts.GenerationEnabled = true
		opts.MaxUsedSearchResults = req.Generation.MaxUsedSearchResults
	}

	start := time.Now()
	answer, err := s.engine.Query(r.Context(), corpusKey, req.Query, opts)
	metrics.QueryDuration.WithLabelValues(corpusKey).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Queries.WithLabelValues(corpusKey, "error").Inc()
		storeError(w, err)
		return
	}

	outcome := "ok"
	if len(answer.SearchResults) == 0 {
		outcome = "empty"
	}
	metrics.Queries.WithLabelValues(corpusKey, outcome).Inc()
	httputil.JSON(w, http.StatusOK, answer)
}

// MetricsTableRequest asks for a per-document comparison of named metrics.
// With an empty Query the retrieval query is derived from the metric names
// the way the dashboard did it.
type MetricsTableRequest struct {
	CorpusKey string   `json:"corpus_key"`
	Query     string   `json:"query"`
	Metrics   []string `json:"metrics"`
	Limit     int      `json:"limit"`
	Format    string   `json:"format"` // "json" (default) or "csv"
}

func (s *Server) handleMetricsTable(w http.ResponseWriter, r *http.Request) {
	var req MetricsTableRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	if req.CorpusKey == "" {
		httputil.Error(w, http.StatusBadRequest, "corpus_key must not be empty")
		return
	}

	names := req.Metrics
	if len(names) == 0 {
		names = extract.DefaultMetrics()
	}
	query := req.Query
	if strings.TrimSpace(query) == "" {
		query = fmt.Sprintf("financial statements showing: %s", strings.Join(names, ", "))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	answer, err := s.engine.Query(r.Context(), req.CorpusKey, query, rag.QueryOptions{Limit: limit})
	if err != nil {
		metrics.Queries.WithLabelValues(req.CorpusKey, "error").Inc()
		storeError(w, err)
		return
	}
	metrics.Queries.WithLabelValues(req.CorpusKey, "ok").Inc()

	table := extract.BuildTable(answer.SearchResults, names)
	if strings.EqualFold(req.Format, "csv") {
		data, err := table.CSV()
		if err != nil {
			httputil.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="financial_comparison.csv"`)
		httputil.Blob(w, http.StatusOK, data, "text/csv")
		return
	}
	httputil.JSON(w, http.StatusOK, table)
}
