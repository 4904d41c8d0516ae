// Package llm provides narrow capability interfaces over the model
// backends the pipeline depends on, so alternate backends can be
// substituted without touching pipeline logic.
package llm

import "context"

// Embedder maps text to a fixed-length dense vector. The same embedder
// must serve both ingestion and query time; mixing models silently
// corrupts retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores candidate texts against a query with a cross-encoder.
// Higher is more relevant; only relative ordering is guaranteed.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

// Generator produces the final natural-language answer.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Captioner turns an image into descriptive text so images can be
// ingested like any other document.
type Captioner interface {
	Caption(ctx context.Context, imageBase64 string) (string, error)
}

// HealthChecker reports whether the model backend is reachable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}
