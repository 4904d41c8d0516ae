package domain

import "time"

// Source type constants
const (
	SourceTypeText  = "text"
	SourceTypePDF   = "pdf"
	SourceTypeImage = "image"
)

// Document represents an ingested document
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SourceType string    `json:"source_type"` // text, pdf, image
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Chunk is a contiguous span of document text, the unit of retrieval
type Chunk struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	Index     int       `json:"index"` // position within the document
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Source is a citation returned with an answer: an index entry plus its
// reranker score and final rank. Never persisted.
type Source struct {
	ChunkID  string  `json:"chunk_id"`
	DocID    string  `json:"doc_id"`
	Filename string  `json:"filename"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Index    int     `json:"index"` // 0-based final rank
}

// IngestResponse is the result of ingesting a document
type IngestResponse struct {
	DocID      string `json:"doc_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// QueryRequest is a stateless single-turn query
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k,omitempty"`
}

// QueryResponse is the answer to a single-turn query
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Query   string   `json:"query"`
	Model   string   `json:"model"`
}

// DocumentListResponse is the response for listing documents
type DocumentListResponse struct {
	Documents []*Document `json:"documents"`
	Count     int         `json:"count"`
}
