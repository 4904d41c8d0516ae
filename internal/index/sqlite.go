package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docpilot-ai/docpilot/internal/domain"
	"github.com/docpilot-ai/docpilot/internal/repository"
)

// SQLiteIndex is a sqlite-backed vector index. Entries are persisted as
// rows and mirrored into an insertion-ordered in-memory slice used for
// brute-force cosine search. A single RWMutex gives the single-writer /
// multiple-reader discipline: mutations take the write lock, Search takes
// the read lock, and memory state is updated only after the transaction
// commits, so a cancelled request never exposes a half-inserted document.
type SQLiteIndex struct {
	db *repository.DB

	mu      sync.RWMutex
	entries []Entry // insertion order
	byChunk map[string]struct{}
}

// NewSQLiteIndex creates the index and loads previously persisted entries.
func NewSQLiteIndex(db *repository.DB) (*SQLiteIndex, error) {
	idx := &SQLiteIndex{
		db:      db,
		byChunk: make(map[string]struct{}),
	}
	if err := idx.load(); err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) load() error {
	rows, err := s.db.Query(`
		SELECT chunk_id, doc_id, position, filename, text, embedding
		FROM chunks ORDER BY seq ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var blob []byte
		if err := rows.Scan(&e.ChunkID, &e.DocID, &e.Position, &e.Filename, &e.Text, &blob); err != nil {
			return err
		}
		e.Embedding = decodeVector(blob)
		s.entries = append(s.entries, e)
		s.byChunk[e.ChunkID] = struct{}{}
	}
	return rows.Err()
}

// AddDocument stores a document and its entries in one transaction.
func (s *SQLiteIndex) AddDocument(ctx context.Context, doc *domain.Document, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if _, ok := s.byChunk[e.ChunkID]; ok {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateChunk, e.ChunkID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapStorageErr(err)
	}
	defer tx.Rollback()

	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now()
	}
	doc.ChunkCount = len(entries)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, source_type, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.ID, doc.Filename, doc.SourceType, doc.ChunkCount, doc.IngestedAt); err != nil {
		return mapStorageErr(err)
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (chunk_id, doc_id, position, filename, text, embedding)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ChunkID, e.DocID, e.Position, e.Filename, e.Text, encodeVector(e.Embedding)); err != nil {
			return mapStorageErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapStorageErr(err)
	}

	s.entries = append(s.entries, entries...)
	for _, e := range entries {
		s.byChunk[e.ChunkID] = struct{}{}
	}
	return nil
}

// Search scores every entry against the query and returns the top k by
// descending cosine similarity. The stable sort over the insertion-ordered
// slice makes earlier-inserted entries win ties deterministically.
func (s *SQLiteIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		if len(e.Embedding) != len(query) {
			continue
		}
		results = append(results, Result{Entry: e, Score: cosine(query, e.Embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteByDoc removes a document and all its entries.
func (s *SQLiteIndex) DeleteByDoc(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapStorageErr(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return mapStorageErr(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return mapStorageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapStorageErr(err)
	}

	s.dropDocLocked(docID)
	return nil
}

func (s *SQLiteIndex) dropDocLocked(docID string) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.DocID == docID {
			delete(s.byChunk, e.ChunkID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
}

// ListDocuments returns all stored documents, most recent first.
func (s *SQLiteIndex) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, source_type, chunk_count, ingested_at
		FROM documents ORDER BY ingested_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc := &domain.Document{}
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.SourceType, &doc.ChunkCount, &doc.IngestedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of index entries.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Reset removes all documents and entries.
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapStorageErr(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return mapStorageErr(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return mapStorageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapStorageErr(err)
	}

	s.entries = nil
	s.byChunk = make(map[string]struct{})
	return nil
}

// cosine computes cosine similarity. For the L2-normalized vectors the
// embedder produces this reduces to the dot product, but computing the
// norms keeps the metric correct for unnormalized inputs too.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func mapStorageErr(err error) error {
	if err == nil || err == sql.ErrNoRows {
		return err
	}
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: %v", domain.ErrStorageFull, err)
	}
	return err
}
