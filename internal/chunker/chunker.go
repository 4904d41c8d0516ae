package chunker

import (
	"fmt"
	"strings"
)

// Chunker splits document text into overlapping fixed-size chunks.
// Sizes are measured in runes so multi-byte text never splits mid-character.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Requires 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < size, got %d/%d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the ordered chunk texts for text. Deterministic: the same
// input always yields the same sequence. Text shorter than the chunk size
// yields exactly one chunk equal to the full text; the final chunk may be
// shorter than the chunk size. Empty or whitespace-only text yields nothing.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }
