package finrag

import (
	"testing"

	"github.com/finrag/finrag/pkg/config"
	"github.com/finrag/finrag/pkg/rag"
	"github.com/stretchr/testify/assert"
)

func TestLLMConfig(t *testing.T) {
	defaults := rag.DefaultConfig()

	t.Run("empty file config keeps defaults", func(t *testing.T) {
		got := llmConfig(config.LLMConfig{})
		assert.Equal(t, defaults, got)
	})

	t.Run("generation model does not override embedding model", func(t *testing.T) {
		got := llmConfig(config.LLMConfig{ModelID: "mistral:7b"})

		assert.Equal(t, "mistral:7b", got.ModelID)
		assert.Equal(t, defaults.EmbeddingModel, got.EmbeddingModel)
	})

	t.Run("embedding model is set independently", func(t *testing.T) {
		got := llmConfig(config.LLMConfig{
			ModelID:        "mistral:7b",
			EmbeddingModel: "nomic-embed-text",
			Dimensions:     768,
		})

		assert.Equal(t, "mistral:7b", got.ModelID)
		assert.Equal(t, "nomic-embed-text", got.EmbeddingModel)
		assert.Equal(t, 768, got.Dimensions)
	})
}
