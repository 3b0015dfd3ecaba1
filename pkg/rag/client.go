// Package rag implements retrieval-augmented question answering over a
// corpus store, using an OpenAI-compatible LLM API for embeddings and
// answer generation.
package rag

import (
	"cmp"
	"os"

	"go.uber.org/zap"
)

// Config holds the configuration for the LLM client.
type Config struct {
	ModelID        string
	EmbeddingModel string
	APIURL         string
	APIKey         string
	EmbeddingsPath string
	GeneratePath   string
	Dimensions     int
	BatchSize      int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ModelID:        "llama3.2:3b",
		EmbeddingModel: "llama3.2:3b",
		APIKey:         cmp.Or(os.Getenv("LLM_API_KEY"), ""),
		Dimensions:     3072, // for llama3.2:3b, 1536 for OpenAI text-embedding-3-small
		APIURL:         cmp.Or(os.Getenv("LLM_API_URL"), "http://127.0.0.1:11434"),
		EmbeddingsPath: "/v1/embeddings",
		GeneratePath:   "/api/generate",
		BatchSize:      100,
	}
}

// Client calls the LLM API for embeddings and generation.
type Client struct {
	logger *zap.Logger
	Config Config
}

// NewClient creates a new LLM API client.
func NewClient(config Config, loggers ...*zap.Logger) (*Client, error) {
	var logger *zap.Logger
	if len(loggers) > 0 && loggers[0] != nil {
		logger = loggers[0]
	} else {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, err
		}
	}
	return &Client{Config: config, logger: logger}, nil
}
