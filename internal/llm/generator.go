package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// OllamaGenerator produces answers via the Ollama generate API.
type OllamaGenerator struct {
	client *OllamaClient
	model  string
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator creates a generator using the given model.
func NewOllamaGenerator(client *OllamaClient, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

// Model returns the configured model name.
func (g *OllamaGenerator) Model() string { return g.model }

// Generate returns the model's answer for the prompt. Handles both the
// single-object response and the NDJSON stream some backends send even
// when stream is off.
func (g *OllamaGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	body, err := g.client.post(ctx, "/api/generate", generateRequest{
		Model:  g.model,
		System: system,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Response != "" {
		return resp.Response, nil
	}

	// Streamed answer: accumulate the chunks.
	var b strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk generateResponse
		if err := decoder.Decode(&chunk); err != nil {
			return "", fmt.Errorf("failed to decode generate response: %w", err)
		}
		b.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	return b.String(), nil
}
