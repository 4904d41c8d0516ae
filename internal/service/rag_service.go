package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docpilot-ai/docpilot/internal/chunker"
	"github.com/docpilot-ai/docpilot/internal/config"
	"github.com/docpilot-ai/docpilot/internal/domain"
	"github.com/docpilot-ai/docpilot/internal/extract"
	"github.com/docpilot-ai/docpilot/internal/index"
	"github.com/docpilot-ai/docpilot/internal/llm"
)

// RAGService drives the retrieval-augmented pipeline: ingestion,
// two-stage retrieval, and answer generation.
type RAGService struct {
	cfg       *config.Config
	idx       index.VectorIndex
	embedder  llm.Embedder
	reranker  llm.Reranker
	generator llm.Generator
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	assembler *Assembler
	logger    *zap.Logger
}

// NewRAGService creates the pipeline service.
func NewRAGService(
	cfg *config.Config,
	idx index.VectorIndex,
	embedder llm.Embedder,
	reranker llm.Reranker,
	generator llm.Generator,
	extractor *extract.Extractor,
	logger *zap.Logger,
) (*RAGService, error) {
	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &RAGService{
		cfg:       cfg,
		idx:       idx,
		embedder:  embedder,
		reranker:  reranker,
		generator: generator,
		extractor: extractor,
		chunker:   ch,
		assembler: NewAssembler(cfg.RAG.MaxContextTokens, cfg.RAG.MaxHistoryTurns),
		logger:    logger,
	}, nil
}

// Ingest decodes, chunks, embeds, and indexes a document. The document
// and all its chunks are committed atomically: a failure anywhere leaves
// no partial state behind.
func (s *RAGService) Ingest(ctx context.Context, content []byte, filename string) (*domain.IngestResponse, error) {
	text, sourceType, err := s.extractor.Extract(ctx, content, filename)
	if err != nil {
		return nil, err
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, filename)
	}

	doc := &domain.Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		SourceType: sourceType,
	}

	entries := make([]index.Entry, len(chunks))
	for i, chunkText := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunkText)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", i, filename, err)
		}
		entries[i] = index.Entry{
			ChunkID:   uuid.New().String(),
			DocID:     doc.ID,
			Position:  i,
			Filename:  filename,
			Text:      chunkText,
			Embedding: embedding,
		}
	}

	if err := s.idx.AddDocument(ctx, doc, entries); err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("filename", filename),
		zap.String("source_type", sourceType),
		zap.Int("chunks", len(chunks)),
	)

	return &domain.IngestResponse{
		DocID:      doc.ID,
		Filename:   filename,
		ChunkCount: len(chunks),
		Status:     "success",
		Message:    fmt.Sprintf("ingested %s into %d chunks", filename, len(chunks)),
	}, nil
}

// Retrieve runs the two-stage retrieval: dense vector search for recall,
// cross-encoder reranking for precision. Returns at most topKRerank
// sources ranked by reranker score; reranker ties keep the vector-search
// order. An empty index or no candidates yields an empty result, not an
// error.
func (s *RAGService) Retrieve(ctx context.Context, query string, topKRetrieve, topKRerank int) ([]domain.Source, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := s.idx.Search(ctx, queryEmbedding, topKRetrieve)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Entry.Text
	}

	// No silent fallback to vector-only results: a failed rerank stage
	// fails the query.
	scores, err := s.reranker.Rerank(ctx, query, documents)
	if err != nil {
		return nil, fmt.Errorf("failed to rerank candidates: %w", err)
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	// Stable sort over vector-search order: equal rerank scores keep
	// their stage-1 rank.
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if topKRerank < len(order) {
		order = order[:topKRerank]
	}

	sources := make([]domain.Source, len(order))
	for rank, idx := range order {
		c := candidates[idx]
		sources[rank] = domain.Source{
			ChunkID:  c.Entry.ChunkID,
			DocID:    c.Entry.DocID,
			Filename: c.Entry.Filename,
			Content:  c.Entry.Text,
			Score:    scores[idx],
			Index:    rank,
		}
	}
	return sources, nil
}

// Query answers a stateless single-turn question.
func (s *RAGService) Query(ctx context.Context, req *domain.QueryRequest) (*domain.QueryResponse, error) {
	topKRerank := req.TopK
	if topKRerank <= 0 {
		topKRerank = s.cfg.RAG.TopKRerank
	}

	sources, err := s.Retrieve(ctx, req.Query, s.cfg.RAG.TopKRetrieve, topKRerank)
	if err != nil {
		return nil, err
	}

	prompt := s.assembler.Assemble(req.Query, sources, nil)

	answer, err := s.generator.Generate(ctx, prompt.System, prompt.User)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	s.logger.Info("query completed",
		zap.String("query", req.Query),
		zap.Int("sources", len(prompt.Sources)),
		zap.Int("answer_length", len(answer)),
	)

	return &domain.QueryResponse{
		Answer:  answer,
		Sources: sourcesOrEmpty(prompt.Sources),
		Query:   req.Query,
		Model:   s.generator.Model(),
	}, nil
}

// Assemble exposes prompt assembly for the chat flow.
func (s *RAGService) Assemble(question string, sources []domain.Source, history []*domain.Message) Prompt {
	return s.assembler.Assemble(question, sources, history)
}

// Generate exposes the generator for the chat flow.
func (s *RAGService) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return s.generator.Generate(ctx, prompt.System, prompt.User)
}

// Model returns the generator model name.
func (s *RAGService) Model() string {
	return s.generator.Model()
}

// ListDocuments returns all ingested documents.
func (s *RAGService) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	return s.idx.ListDocuments(ctx)
}

// DeleteDocument removes one document and its index entries.
func (s *RAGService) DeleteDocument(ctx context.Context, docID string) error {
	return s.idx.DeleteByDoc(ctx, docID)
}

// Reset clears the vector index and all documents.
func (s *RAGService) Reset(ctx context.Context) error {
	if err := s.idx.Reset(ctx); err != nil {
		return err
	}
	s.logger.Info("vector index reset")
	return nil
}

// IndexSize returns the number of entries in the index.
func (s *RAGService) IndexSize(ctx context.Context) (int, error) {
	return s.idx.Count(ctx)
}

func sourcesOrEmpty(sources []domain.Source) []domain.Source {
	if sources == nil {
		return []domain.Source{}
	}
	return sources
}
