// Package extract turns raw document bytes into normalized text.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dslipak/pdf"

	"github.com/docpilot-ai/docpilot/internal/domain"
	"github.com/docpilot-ai/docpilot/internal/llm"
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true,
	".json": true, ".html": true, ".htm": true, ".css": true,
	".js": true, ".ts": true, ".py": true, ".go": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".webp": true,
}

// Extractor decodes documents into text. Images are routed through a
// vision captioner and treated as text thereafter.
type Extractor struct {
	captioner llm.Captioner
}

// New creates an extractor.
func New(captioner llm.Captioner) *Extractor {
	return &Extractor{captioner: captioner}
}

// SourceType classifies a filename, returning "" when unsupported.
func SourceType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case textExtensions[ext]:
		return domain.SourceTypeText
	case ext == ".pdf":
		return domain.SourceTypePDF
	case imageExtensions[ext]:
		return domain.SourceTypeImage
	default:
		return ""
	}
}

// IsSupported reports whether a decoder exists for the filename.
func IsSupported(filename string) bool {
	return SourceType(filename) != ""
}

// Extract decodes content into normalized text. Fails with
// domain.ErrUnsupportedFormat for unknown extensions and
// domain.ErrEmptyDocument when no text survives extraction.
func (e *Extractor) Extract(ctx context.Context, content []byte, filename string) (string, string, error) {
	sourceType := SourceType(filename)

	var (
		text string
		err  error
	)
	switch sourceType {
	case domain.SourceTypeText:
		text, err = extractText(content)
	case domain.SourceTypePDF:
		text, err = extractPDF(content)
	case domain.SourceTypeImage:
		text, err = e.extractImage(ctx, content, filename)
	default:
		return "", "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return "", "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("%w: %s", domain.ErrEmptyDocument, filename)
	}
	return text, sourceType, nil
}

func extractText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return string(bytes.ToValidUTF8(content, []byte("�"))), nil
	}
	return string(content), nil
}

func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return b.String(), nil
}

func (e *Extractor) extractImage(ctx context.Context, content []byte, filename string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(content)
	caption, err := e.captioner.Caption(ctx, encoded)
	if err != nil {
		return "", fmt.Errorf("failed to caption image: %w", err)
	}
	if strings.TrimSpace(caption) == "" {
		return "", fmt.Errorf("%w: vision model produced no caption for %s", domain.ErrEmptyDocument, filename)
	}
	return fmt.Sprintf("[Image: %s]\n%s", filename, caption), nil
}
