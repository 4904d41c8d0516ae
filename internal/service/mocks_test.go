package service

import (
	"context"
	"fmt"
	"sync"
)

// mockEmbedder returns canned vectors keyed by text, falling back to a
// fixed vector for unknown inputs.
type mockEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return []float32{1, 0, 0}, nil
}

// mockReranker scores candidates by a canned map, defaulting to zero.
type mockReranker struct {
	scores map[string]float64
	err    error
	calls  [][]string
}

func (m *mockReranker) Rerank(_ context.Context, _ string, documents []string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, documents)
	scores := make([]float64, len(documents))
	for i, doc := range documents {
		scores[i] = m.scores[doc]
	}
	return scores, nil
}

// mockGenerator records prompts and returns a canned or derived answer.
type mockGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	systems []string
	prompts []string
	counter int
}

func (m *mockGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systems = append(m.systems, system)
	m.prompts = append(m.prompts, prompt)
	m.counter++
	if m.answer != "" {
		return m.answer, nil
	}
	return fmt.Sprintf("answer %d", m.counter), nil
}

func (m *mockGenerator) Model() string { return "test-model" }

func (m *mockGenerator) lastPrompt() (system, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return "", ""
	}
	return m.systems[len(m.systems)-1], m.prompts[len(m.prompts)-1]
}

// mockCaptioner satisfies llm.Captioner for the extractor.
type mockCaptioner struct {
	caption string
	err     error
}

func (m *mockCaptioner) Caption(_ context.Context, _ string) (string, error) {
	return m.caption, m.err
}
