package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// OllamaReranker scores (query, document) pairs with a cross-encoder
// served behind a Jina-compatible rerank endpoint.
type OllamaReranker struct {
	client *OllamaClient
	model  string
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// NewOllamaReranker creates a reranker using the given model.
func NewOllamaReranker(client *OllamaClient, model string) *OllamaReranker {
	return &OllamaReranker{client: client, model: model}
}

// Rerank returns one relevance score per document, aligned with the
// input order. Higher is more relevant; no fixed range is guaranteed.
func (r *OllamaReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := r.client.post(ctx, "/api/rerank", rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, err
	}

	var resp rerankResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rerank response: %w", err)
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, fmt.Errorf("rerank result index %d out of range", res.Index)
		}
		scores[res.Index] = res.RelevanceScore
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing score for document %d", i)
		}
	}
	return scores, nil
}
