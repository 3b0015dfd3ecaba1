package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/httputil"
	"github.com/finrag/finrag/pkg/metrics"
	"github.com/finrag/finrag/pkg/pdf"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handleUploadFile accepts a multipart upload with a required "file" part
// and an optional "metadata" part. Metadata must be sent as
// application/json; other content types are rejected.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	corpusKey := r.PathValue("key")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.UploadErrors.WithLabelValues("too_large").Inc()
			httputil.Error(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		metrics.UploadErrors.WithLabelValues("bad_multipart").Inc()
		httputil.Error(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadErrors.WithLabelValues("missing_file").Inc()
		httputil.Error(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		metrics.UploadErrors.WithLabelValues("read").Inc()
		httputil.Error(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}
	if len(content) == 0 {
		metrics.UploadErrors.WithLabelValues("empty").Inc()
		httputil.Error(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	metadata, err := readMetadataPart(r)
	if err != nil {
		metrics.UploadErrors.WithLabelValues("bad_metadata").Inc()
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	declared := header.Header.Get("Content-Type")
	text, err := pdf.Extract(content, declared)
	if err != nil {
		if errors.Is(err, pdf.ErrUnsupportedType) {
			metrics.UploadErrors.WithLabelValues("unsupported_type").Inc()
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		metrics.UploadErrors.WithLabelValues("extract").Inc()
		httputil.Error(w, http.StatusBadRequest, "failed to extract text: "+err.Error())
		return
	}

	doc := corpus.Document{
		ID:          uuid.New().String(),
		CorpusKey:   corpusKey,
		Filename:    header.Filename,
		ContentType: pdf.Sniff(content, declared),
		Metadata:    metadata,
		ByteSize:    int64(len(content)),
	}

	doc, err = s.engine.IndexDocument(r.Context(), doc, text)
	if err != nil {
		metrics.UploadErrors.WithLabelValues("index").Inc()
		s.logger.Error("failed to index document",
			zap.String("corpus", corpusKey), zap.String("filename", header.Filename), zap.Error(err))
		storeError(w, err)
		return
	}

	metrics.DocumentsIngested.WithLabelValues(corpusKey).Inc()
	httputil.JSON(w, http.StatusCreated, doc)
}

// readMetadataPart returns the raw metadata JSON, or nil if absent.
func readMetadataPart(r *http.Request) (json.RawMessage, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	parts := r.MultipartForm.File["metadata"]
	if len(parts) == 0 {
		// metadata may also arrive as a plain form value
		if v := r.FormValue("metadata"); v != "" {
			if !json.Valid([]byte(v)) {
				return nil, errors.New("metadata must be valid JSON")
			}
			return json.RawMessage(v), nil
		}
		return nil, nil
	}

	part := parts[0]
	mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, "application/json") {
		return nil, errors.New("metadata part must be application/json")
	}

	f, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("metadata must be valid JSON")
	}
	return json.RawMessage(raw), nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context(), r.PathValue("key"))
	if err != nil {
		storeError(w, err)
		return
	}
	if docs == nil {
		docs = []corpus.Document{}
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDocument(r.Context(), r.PathValue("key"), r.PathValue("id")); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
