package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
)

// Store persists corpora, documents and chunk embeddings in PostgreSQL.
type Store struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	dimensions int
}

// NewStore connects a pool to connString and ensures the schema exists.
// dimensions is the embedding vector width and must match the embedding
// model configured for the RAG engine.
func NewStore(ctx context.Context, connString string, dimensions int, logger *zap.Logger) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions: %d", dimensions)
	}
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	s := &Store{pool: pool, logger: logger, dimensions: dimensions}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS corpora (
			key TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			corpus_key TEXT NOT NULL REFERENCES corpora(key) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			metadata JSONB,
			byte_size BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d),
			PRIMARY KEY (document_id, seq)
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS documents_corpus_key_idx ON documents (corpus_key)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	s.logger.Info("schema ensured", zap.Int("dimensions", s.dimensions))
	return nil
}

// CreateCorpus inserts a corpus. Returns ErrCorpusExists if the key is taken.
func (s *Store) CreateCorpus(ctx context.Context, c Corpus) (Corpus, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO corpora (key, name, description) VALUES ($1, $2, $3) RETURNING created_at`,
		c.Key, c.Name, c.Description)
	if err := row.Scan(&c.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Corpus{}, ErrCorpusExists
		}
		return Corpus{}, fmt.Errorf("failed to insert corpus: %w", err)
	}
	return c, nil
}

// GetCorpus fetches a corpus by key.
func (s *Store) GetCorpus(ctx context.Context, key string) (Corpus, error) {
	var c Corpus
	row := s.pool.QueryRow(ctx,
		`SELECT key, name, description, created_at FROM corpora WHERE key = $1`, key)
	if err := row.Scan(&c.Key, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Corpus{}, ErrCorpusNotFound
		}
		return Corpus{}, fmt.Errorf("failed to query corpus: %w", err)
	}
	return c, nil
}

// ListCorpora returns all corpora ordered by creation time.
func (s *Store) ListCorpora(ctx context.Context) ([]Corpus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, name, description, created_at FROM corpora ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query corpora: %w", err)
	}
	defer rows.Close()

	var out []Corpus
	for rows.Next() {
		var c Corpus
		if err := rows.Scan(&c.Key, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan corpus row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCorpus removes a corpus and, via FK cascade, its documents and chunks.
func (s *Store) DeleteCorpus(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM corpora WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete corpus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCorpusNotFound
	}
	return nil
}

// InsertDocument records an uploaded document against a corpus.
func (s *Store) InsertDocument(ctx context.Context, d Document) (Document, error) {
	if _, err := s.GetCorpus(ctx, d.CorpusKey); err != nil {
		return Document{}, err
	}
	var meta any
	if len(d.Metadata) > 0 {
		meta = d.Metadata
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, corpus_key, filename, content_type, metadata, byte_size)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		d.ID, d.CorpusKey, d.Filename, d.ContentType, meta, d.ByteSize)
	if err := row.Scan(&d.CreatedAt); err != nil {
		return Document{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return d, nil
}

// ListDocuments returns the documents of a corpus, newest first.
func (s *Store) ListDocuments(ctx context.Context, corpusKey string) ([]Document, error) {
	if _, err := s.GetCorpus(ctx, corpusKey); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, corpus_key, filename, content_type, COALESCE(metadata, 'null'::jsonb), byte_size, created_at
		 FROM documents WHERE corpus_key = $1 ORDER BY created_at DESC`, corpusKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var meta []byte
		if err := rows.Scan(&d.ID, &d.CorpusKey, &d.Filename, &d.ContentType, &meta, &d.ByteSize, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		if string(meta) != "null" {
			d.Metadata = json.RawMessage(meta)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, corpusKey, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND corpus_key = $2`, id, corpusKey)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// UpsertChunks replaces the chunks of a document in a single transaction.
func (s *Store) UpsertChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %w", err)
	}
	for _, ch := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (document_id, seq, text, embedding) VALUES ($1, $2, $3, $4)`,
			documentID, ch.Seq, ch.Text, ch.Embedding)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", ch.Seq, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	s.logger.Debug("chunks upserted", zap.String("document_id", documentID), zap.Int("count", len(chunks)))
	return nil
}

// Search returns the corpus chunks nearest to the query embedding, scored
// by cosine similarity. limit <= 0 falls back to 10.
func (s *Store) Search(ctx context.Context, corpusKey string, embedding []float32, limit, offset int) ([]SearchResult, error) {
	if _, err := s.GetCorpus(ctx, corpusKey); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT c.document_id, d.filename, c.seq, c.text, 1 - (c.embedding <=> $2) AS score
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 WHERE d.corpus_key = $1
		 ORDER BY c.embedding <=> $2
		 LIMIT $3 OFFSET $4`,
		corpusKey, pgvector.NewVector(embedding), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocumentID, &r.Filename, &r.Seq, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
