package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/finrag/finrag/pkg/httputil"
)

// EmbeddingRequest is the request body for the embeddings endpoint.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse is the response body of the embeddings endpoint.
// https://platform.openai.com/docs/api-reference/embeddings/create
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// FetchEmbedding fetches embeddings for input from the LLM API, batching
// requests per Config.BatchSize. The result has one vector per input, in
// input order.
func (c *Client) FetchEmbedding(ctx context.Context, input []string) ([][]float32, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	batchSize := c.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	embeddings := make([][]float32, 0, len(input))
	for start := 0; start < len(input); start += batchSize {
		end := min(start+batchSize, len(input))
		batch, err := c.fetchEmbeddingBatch(ctx, input[start:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}

	if len(embeddings) != len(input) {
		return nil, fmt.Errorf("mismatch between inputs and embeddings length: %d vs %d", len(input), len(embeddings))
	}
	return embeddings, nil
}

func (c *Client) fetchEmbeddingBatch(ctx context.Context, input []string) ([][]float32, error) {
	data := &EmbeddingRequest{
		Input: input,
		Model: c.Config.EmbeddingModel,
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	config := httputil.DefaultRequestConfig(
		http.MethodPost,
		fmt.Sprintf("%s%s", c.Config.APIURL, c.Config.EmbeddingsPath),
	)
	config.Headers = map[string][]string{
		"Authorization": {fmt.Sprintf("Bearer %s", c.Config.APIKey)},
	}
	config.Logger = c.logger

	response, err := httputil.Request(ctx, config, dataBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch embeddings: %w", err)
	}

	var embeddingResponse EmbeddingResponse
	if err := json.Unmarshal(response.Body, &embeddingResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	embeddings := make([][]float32, len(embeddingResponse.Data))
	for i, d := range embeddingResponse.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}
