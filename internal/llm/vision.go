package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const captionPrompt = `Describe this image in detail. Include any visible text, ` +
	`objects, people, charts, or diagrams. Transcribe text exactly as written. ` +
	`Be thorough: the description will be used to answer questions about the image.`

// OllamaVision captions images via an Ollama vision model.
type OllamaVision struct {
	client *OllamaClient
	model  string
}

type visionRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

// NewOllamaVision creates a captioner using the given vision model.
func NewOllamaVision(client *OllamaClient, model string) *OllamaVision {
	return &OllamaVision{client: client, model: model}
}

// Caption returns a textual description of a base64-encoded image.
func (v *OllamaVision) Caption(ctx context.Context, imageBase64 string) (string, error) {
	body, err := v.client.post(ctx, "/api/generate", visionRequest{
		Model:  v.model,
		Prompt: captionPrompt,
		Images: []string{imageBase64},
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Response != "" {
		return resp.Response, nil
	}

	var b strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk generateResponse
		if err := decoder.Decode(&chunk); err != nil {
			return "", fmt.Errorf("failed to decode caption response: %w", err)
		}
		b.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	return b.String(), nil
}
