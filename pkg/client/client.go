// Package client is the Go SDK for the finrag API, used by the CLI and by
// dashboard backends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/extract"
	"github.com/finrag/finrag/pkg/httputil"
	"github.com/finrag/finrag/pkg/rag"
	"go.uber.org/zap"
)

// Client talks to a finrag server about a single corpus.
type Client struct {
	BaseURL   string
	APIKey    string
	CorpusKey string
	logger    *zap.Logger
}

// New creates a Client. baseURL is e.g. "http://localhost:8080".
func New(baseURL, apiKey, corpusKey string, loggers ...*zap.Logger) *Client {
	var logger *zap.Logger
	if len(loggers) > 0 && loggers[0] != nil {
		logger = loggers[0]
	} else {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APIKey:    apiKey,
		CorpusKey: corpusKey,
		logger:    logger,
	}
}

func (c *Client) headers() map[string][]string {
	return map[string][]string{
		"X-Api-Key": {c.APIKey},
	}
}

// Ping probes the configured corpus and reports a human-readable
// diagnosis for the common failure modes.
func (c *Client) Ping(ctx context.Context) error {
	config := httputil.DefaultRequestConfig(http.MethodGet,
		fmt.Sprintf("%s/v2/corpora/%s", c.BaseURL, c.CorpusKey))
	config.Headers = c.headers()
	config.RetryEnabled = false
	config.Logger = c.logger

	resp, err := httputil.Request(ctx, config, nil)
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusOK:
			return nil
		case http.StatusUnauthorized:
			return fmt.Errorf("401 Unauthorized - invalid API key")
		case http.StatusForbidden:
			return fmt.Errorf("403 Forbidden - check your API key and permissions")
		case http.StatusNotFound:
			return fmt.Errorf("404 Not Found - invalid corpus key %q", c.CorpusKey)
		}
	}
	return fmt.Errorf("connection failed: %w", err)
}

// CreateCorpus creates the client's corpus on the server.
func (c *Client) CreateCorpus(ctx context.Context, name, description string) (corpus.Corpus, error) {
	config := httputil.DefaultRequestConfig(http.MethodPost, c.BaseURL+"/v2/corpora")
	config.Headers = c.headers()
	config.Logger = c.logger

	body := map[string]string{"key": c.CorpusKey, "name": name, "description": description}
	resp, err := httputil.Request(ctx, config, body)
	if err != nil {
		return corpus.Corpus{}, fmt.Errorf("failed to create corpus: %w", err)
	}
	var created corpus.Corpus
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return corpus.Corpus{}, fmt.Errorf("failed to unmarshal corpus: %w", err)
	}
	return created, nil
}

// ListCorpora returns all corpora on the server.
func (c *Client) ListCorpora(ctx context.Context) ([]corpus.Corpus, error) {
	config := httputil.DefaultRequestConfig(http.MethodGet, c.BaseURL+"/v2/corpora")
	config.Headers = c.headers()
	config.Logger = c.logger

	resp, err := httputil.Request(ctx, config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpora: %w", err)
	}
	var out struct {
		Corpora []corpus.Corpus `json:"corpora"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal corpora: %w", err)
	}
	return out.Corpora, nil
}

// UploadFile uploads a document as multipart/form-data: a "file" part plus
// a "metadata" part carrying upload metadata as application/json.
func (c *Client) UploadFile(ctx context.Context, filename string, content []byte) (corpus.Document, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return corpus.Document{}, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return corpus.Document{}, fmt.Errorf("failed to write file part: %w", err)
	}

	metadata, err := json.Marshal(map[string]string{
		"filename":    filename,
		"upload_date": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return corpus.Document{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	// the server rejects metadata that is not application/json
	mh := textproto.MIMEHeader{}
	mh.Set("Content-Disposition", `form-data; name="metadata"; filename="metadata"`)
	mh.Set("Content-Type", "application/json")
	mw, err := w.CreatePart(mh)
	if err != nil {
		return corpus.Document{}, fmt.Errorf("failed to create metadata part: %w", err)
	}
	if _, err := mw.Write(metadata); err != nil {
		return corpus.Document{}, fmt.Errorf("failed to write metadata part: %w", err)
	}
	if err := w.Close(); err != nil {
		return corpus.Document{}, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	config := httputil.DefaultRequestConfig(http.MethodPost,
		fmt.Sprintf("%s/v2/corpora/%s/upload_file", c.BaseURL, c.CorpusKey))
	config.Headers = c.headers()
	config.Headers["Content-Type"] = []string{w.FormDataContentType()}
	config.Timeout = 2 * time.Minute
	config.Logger = c.logger

	resp, err := httputil.Request(ctx, config, buf.Bytes())
	if err != nil {
		return corpus.Document{}, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	var doc corpus.Document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return corpus.Document{}, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// ListDocuments lists the documents of the client's corpus.
func (c *Client) ListDocuments(ctx context.Context) ([]corpus.Document, error) {
	config := httputil.DefaultRequestConfig(http.MethodGet,
		fmt.Sprintf("%s/v2/corpora/%s/documents", c.BaseURL, c.CorpusKey))
	config.Headers = c.headers()
	config.Logger = c.logger

	resp, err := httputil.Request(ctx, config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	var out struct {
		Documents []corpus.Document `json:"documents"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
	}
	return out.Documents, nil
}

// Query asks a question against the corpus with generation enabled.
func (c *Client) Query(ctx context.Context, query string, numResults int) (rag.Answer, error) {
	if numResults <= 0 {
		numResults = 10
	}
	payload := map[string]any{
		"query": query,
		"search": map[string]any{
			"corpora": []map[string]string{{"corpus_key": c.CorpusKey}},
			"limit":   numResults,
			"offset":  0,
		},
		"generation": map[string]any{
			"max_used_search_results": 5,
		},
	}

	config := httputil.DefaultRequestConfig(http.MethodPost, c.BaseURL+"/v2/query")
	config.Headers = c.headers()
	config.Timeout = 2 * time.Minute
	config.Logger = c.logger

	resp, err := httputil.Request(ctx, config, payload)
	if err != nil {
		return rag.Answer{}, fmt.Errorf("query failed: %w", err)
	}
	var answer rag.Answer
	if err := json.Unmarshal(resp.Body, &answer); err != nil {
		return rag.Answer{}, fmt.Errorf("failed to unmarshal answer: %w", err)
	}
	return answer, nil
}

// MetricsTable requests a per-document comparison of the named metrics.
func (c *Client) MetricsTable(ctx context.Context, names []string) (extract.Table, error) {
	payload := map[string]any{"corpus_key": c.CorpusKey, "metrics": names}

	config := httputil.DefaultRequestConfig(http.MethodPost, c.BaseURL+"/v2/metrics")
	config.Headers = c.headers()
	config.Timeout = 2 * time.Minute
	config.Logger = c.logger

	resp, err := httputil.Request(ctx, config, payload)
	if err != nil {
		return extract.Table{}, fmt.Errorf("metrics request failed: %w", err)
	}
	var table extract.Table
	if err := json.Unmarshal(resp.Body, &table); err != nil {
		return extract.Table{}, fmt.Errorf("failed to unmarshal table: %w", err)
	}
	return table, nil
}

// MetricsCSV requests the comparison table as CSV bytes.
func (c *Client) MetricsCSV(ctx context.Context, names []string) ([]byte, error) {
	payload := map[string]any{"corpus_key": c.CorpusKey, "metrics": names, "format": "csv"}

	config := httputil.DefaultRequestConfig(http.MethodPost, c.BaseURL+"/v2/metrics")
	config.Headers = c.headers()
	config.Timeout = 2 * time.Minute
	config.Logger = c.logger

	resp, err := httputil.Request(ctx, config, payload)
	if err != nil {
		return nil, fmt.Errorf("metrics request failed: %w", err)
	}
	return resp.Body, nil
}
