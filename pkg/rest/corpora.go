package rest

import (
	"net/http"
	"regexp"

	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/httputil"
)

// corpus keys end up in URLs and NATS subjects, so keep them tame
var corpusKeyRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

type createCorpusRequest struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateCorpus(w http.ResponseWriter, r *http.Request) {
	var req createCorpusRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	if !corpusKeyRe.MatchString(req.Key) {
		httputil.Error(w, http.StatusBadRequest, "corpus key must match [a-zA-Z0-9_-]{1,64}")
		return
	}
	if req.Name == "" {
		req.Name = req.Key
	}

	created, err := s.store.CreateCorpus(r.Context(), corpus.Corpus{
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, created)
}

func (s *Server) handleListCorpora(w http.ResponseWriter, r *http.Request) {
	corpora, err := s.store.ListCorpora(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	if corpora == nil {
		corpora = []corpus.Corpus{}
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"corpora": corpora})
}

func (s *Server) handleGetCorpus(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCorpus(r.Context(), r.PathValue("key"))
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCorpus(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCorpus(r.Context(), r.PathValue("key")); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
