package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/httputil"
)

// GenerateRequest is the body for generate requests. Model and Prompt are
// required.
type GenerateRequest struct {
	Options map[string]any `json:"options,omitempty"`
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
}

// GenerateResponse is the non-streaming generate response.
type GenerateResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
}

// Generate sends a generation request to the LLM API and returns the
// generated text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	data := GenerateRequest{
		Prompt: prompt,
		Model:  c.Config.ModelID,
		Stream: false,
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request data: %w", err)
	}

	config := httputil.DefaultRequestConfig(
		http.MethodPost,
		fmt.Sprintf("%s%s", c.Config.APIURL, c.Config.GeneratePath),
	)
	config.Headers = map[string][]string{
		"Authorization": {fmt.Sprintf("Bearer %s", c.Config.APIKey)},
	}
	config.Timeout = time.Minute
	config.Logger = c.logger

	response, err := httputil.Request(ctx, config, dataBytes)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	var generateResponse GenerateResponse
	if err := json.Unmarshal(response.Body, &generateResponse); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return generateResponse.Response, nil
}

// buildAugmentedPrompt constructs a prompt that cites the retrieved
// snippets as numbered sources before asking the question.
func buildAugmentedPrompt(question string, results []corpus.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("You are a financial document analyst. Answer using only the numbered sources below.\n\n")

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, r.Filename, r.Text))
	}

	sb.WriteString(fmt.Sprintf("\nQuestion: %s\nAnswer concisely, citing source numbers in brackets.", question))
	return sb.String()
}
