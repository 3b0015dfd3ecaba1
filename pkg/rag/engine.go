package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/events"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// LLM is the slice of the LLM API the engine needs.
type LLM interface {
	FetchEmbedding(ctx context.Context, input []string) ([][]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Store is the slice of the corpus store the engine needs.
type Store interface {
	InsertDocument(ctx context.Context, d corpus.Document) (corpus.Document, error)
	UpsertChunks(ctx context.Context, documentID string, chunks []corpus.Chunk) error
	Search(ctx context.Context, corpusKey string, embedding []float32, limit, offset int) ([]corpus.SearchResult, error)
}

// Answer is the result of a RAG query: the ranked snippets plus an
// optional generated summary.
type Answer struct {
	SearchResults []corpus.SearchResult `json:"search_results"`
	Summary       string                `json:"summary,omitempty"`
}

// QueryOptions controls retrieval and generation for a single query.
type QueryOptions struct {
	Limit                int
	Offset               int
	GenerationEnabled    bool
	MaxUsedSearchResults int
}

// Engine ties chunking, embedding, storage and generation together.
type Engine struct {
	store     Store
	llm       LLM
	chunker   *corpus.Chunker
	publisher events.Publisher
	logger    *zap.Logger
}

// NewEngine creates an Engine. publisher may be nil, in which case events
// are discarded.
func NewEngine(store Store, llm LLM, chunker *corpus.Chunker, publisher events.Publisher, logger *zap.Logger) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if chunker == nil {
		chunker = corpus.NewChunker(5, 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, llm: llm, chunker: chunker, publisher: publisher, logger: logger}
}

// IndexDocument records the document, chunks its extracted text, embeds
// the chunks and stores them. Documents whose text yields no chunks are
// stored without embeddings and are not retrievable.
func (e *Engine) IndexDocument(ctx context.Context, doc corpus.Document, text string) (corpus.Document, error) {
	doc, err := e.store.InsertDocument(ctx, doc)
	if err != nil {
		return corpus.Document{}, err
	}

	texts := e.chunker.Split(text)
	if len(texts) == 0 {
		e.logger.Warn("document produced no chunks",
			zap.String("document_id", doc.ID), zap.String("filename", doc.Filename))
		return doc, nil
	}

	vectors, err := e.llm.FetchEmbedding(ctx, texts)
	if err != nil {
		return corpus.Document{}, fmt.Errorf("failed to fetch embeddings: %w", err)
	}

	chunks := make([]corpus.Chunk, len(texts))
	for i := range texts {
		chunks[i] = corpus.Chunk{
			DocumentID: doc.ID,
			Seq:        i,
			Text:       texts[i],
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}
	if err := e.store.UpsertChunks(ctx, doc.ID, chunks); err != nil {
		return corpus.Document{}, err
	}

	e.logger.Info("document indexed",
		zap.String("corpus", doc.CorpusKey),
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("chunks", len(chunks)))

	if err := e.publisher.Publish(events.Event{
		Subject:    events.SubjectDocumentIndexed,
		CorpusKey:  doc.CorpusKey,
		DocumentID: doc.ID,
		Detail:     map[string]any{"filename": doc.Filename, "chunks": len(chunks)},
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		e.logger.Warn("failed to publish event", zap.Error(err))
	}

	return doc, nil
}

// Query embeds the question, retrieves the nearest chunks in the corpus
// and, when generation is enabled and anything was retrieved, generates a
// summary answer grounded in the top results. An empty retrieval returns
// an empty Answer without calling the generator.
func (e *Engine) Query(ctx context.Context, corpusKey, question string, opts QueryOptions) (Answer, error) {
	vectors, err := e.llm.FetchEmbedding(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to fetch embedding for query: %w", err)
	}

	results, err := e.store.Search(ctx, corpusKey, vectors[0], opts.Limit, opts.Offset)
	if err != nil {
		return Answer{}, err
	}

	answer := Answer{SearchResults: results}
	if opts.GenerationEnabled && len(results) > 0 {
		used := results
		maxUsed := opts.MaxUsedSearchResults
		if maxUsed <= 0 {
			maxUsed = 5
		}
		if len(used) > maxUsed {
			used = used[:maxUsed]
		}
		summary, err := e.llm.Generate(ctx, buildAugmentedPrompt(question, used))
		if err != nil {
			return Answer{}, fmt.Errorf("failed to generate summary: %w", err)
		}
		answer.Summary = summary
	}

	if err := e.publisher.Publish(events.Event{
		Subject:   events.SubjectQueryAnswered,
		CorpusKey: corpusKey,
		Detail:    map[string]any{"results": len(results), "generated": answer.Summary != ""},
		Timestamp: time.Now().UTC(),
	}); err != nil {
		e.logger.Warn("failed to publish event", zap.Error(err))
	}

	return answer, nil
}
