// Package corpus manages named document collections and their chunk
// embeddings in PostgreSQL (pgvector).
package corpus

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
)

var (
	// ErrCorpusNotFound is returned when a corpus key does not exist.
	ErrCorpusNotFound = errors.New("corpus not found")
	// ErrDocumentNotFound is returned when a document id does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrCorpusExists is returned when creating a corpus with a taken key.
	ErrCorpusExists = errors.New("corpus already exists")
)

// Corpus is a named collection of documents.
type Corpus struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is an uploaded file that has been extracted and indexed into a corpus.
type Document struct {
	ID          string          `json:"id"`
	CorpusKey   string          `json:"corpus_key"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	ByteSize    int64           `json:"byte_size"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Chunk is a contiguous span of a document's extracted text together with
// its embedding. Seq orders chunks within a document.
type Chunk struct {
	DocumentID string
	Seq        int
	Text       string
	Embedding  pgvector.Vector
}

// SearchResult is a chunk returned from nearest-neighbor search.
// Score is cosine similarity in [-1, 1]; higher is more relevant.
type SearchResult struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Seq        int     `json:"seq"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}
