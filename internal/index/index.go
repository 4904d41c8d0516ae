package index

import (
	"context"

	"github.com/docpilot-ai/docpilot/internal/domain"
)

// Entry is the persisted association between a chunk and its embedding,
// carrying denormalized metadata so retrieval needs no second lookup.
type Entry struct {
	ChunkID   string
	DocID     string
	Position  int
	Filename  string
	Text      string
	Embedding []float32
}

// Result is a search hit: an entry with its similarity to the query.
type Result struct {
	Entry Entry
	Score float64
}

// VectorIndex stores chunk vectors and supports nearest-neighbor search.
// Implementations must serialize mutations against each other and against
// Search; reads never observe a partially-inserted document.
type VectorIndex interface {
	// AddDocument atomically stores a document and all its index entries.
	// Fails with domain.ErrDuplicateChunk if any chunk ID is already present,
	// leaving the index unchanged.
	AddDocument(ctx context.Context, doc *domain.Document, entries []Entry) error

	// Search returns up to k entries ordered by descending similarity,
	// ties broken by insertion order. An empty index yields an empty
	// result, not an error.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// DeleteByDoc removes a document and all its entries.
	DeleteByDoc(ctx context.Context, docID string) error

	// ListDocuments returns all stored documents, most recent first.
	ListDocuments(ctx context.Context) ([]*domain.Document, error)

	// Count returns the number of index entries.
	Count(ctx context.Context) (int, error)

	// Reset removes all documents and entries unconditionally.
	Reset(ctx context.Context) error
}
