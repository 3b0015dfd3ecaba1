package corpus

import (
	"context"
	"testing"

	"github.com/finrag/finrag/internal/testutil"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDimensions = 3

func newTestStore(t *testing.T) *Store {
	t.Helper()
	connString := testutil.PostgresConnString(t)

	store, err := NewStore(context.Background(), connString, testDimensions, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestStoreCorpora(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateCorpus(ctx, Corpus{Key: "test-corpora", Name: "Test"})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())
	t.Cleanup(func() { store.DeleteCorpus(ctx, "test-corpora") })

	t.Run("duplicate key is rejected", func(t *testing.T) {
		_, err := store.CreateCorpus(ctx, Corpus{Key: "test-corpora", Name: "Again"})
		assert.ErrorIs(t, err, ErrCorpusExists)
	})

	t.Run("get returns the corpus", func(t *testing.T) {
		got, err := store.GetCorpus(ctx, "test-corpora")
		require.NoError(t, err)
		assert.Equal(t, "Test", got.Name)
	})

	t.Run("unknown key yields ErrCorpusNotFound", func(t *testing.T) {
		_, err := store.GetCorpus(ctx, "no-such-corpus")
		assert.ErrorIs(t, err, ErrCorpusNotFound)
	})
}

func TestStoreDocumentsAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateCorpus(ctx, Corpus{Key: "test-search", Name: "Search"})
	require.NoError(t, err)
	t.Cleanup(func() { store.DeleteCorpus(ctx, "test-search") })

	doc, err := store.InsertDocument(ctx, Document{
		ID:          "doc-1",
		CorpusKey:   "test-search",
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		ByteSize:    42,
	})
	require.NoError(t, err)

	chunks := []Chunk{
		{DocumentID: doc.ID, Seq: 0, Text: "Revenue: $1,000", Embedding: pgvector.NewVector([]float32{1, 0, 0})},
		{DocumentID: doc.ID, Seq: 1, Text: "Net Profit: $200", Embedding: pgvector.NewVector([]float32{0, 1, 0})},
	}
	require.NoError(t, store.UpsertChunks(ctx, doc.ID, chunks))

	t.Run("search ranks by cosine similarity", func(t *testing.T) {
		results, err := store.Search(ctx, "test-search", []float32{1, 0, 0}, 10, 0)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Revenue: $1,000", results[0].Text)
		assert.Equal(t, "report.pdf", results[0].Filename)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("upsert replaces existing chunks", func(t *testing.T) {
		require.NoError(t, store.UpsertChunks(ctx, doc.ID, chunks[:1]))
		results, err := store.Search(ctx, "test-search", []float32{0, 1, 0}, 10, 0)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("delete document removes its chunks", func(t *testing.T) {
		require.NoError(t, store.DeleteDocument(ctx, "test-search", doc.ID))
		results, err := store.Search(ctx, "test-search", []float32{1, 0, 0}, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("delete unknown document yields ErrDocumentNotFound", func(t *testing.T) {
		err := store.DeleteDocument(ctx, "test-search", "missing")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}
