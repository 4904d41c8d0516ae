package domain

import "errors"

var (
	// ErrUnsupportedFormat indicates a document type no decoder handles
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyDocument indicates a document with no extractable text
	ErrEmptyDocument = errors.New("document contains no text")
	// ErrInvalidRequest indicates a malformed request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDuplicateChunk indicates a chunk ID already present in the index
	ErrDuplicateChunk = errors.New("duplicate chunk id")
	// ErrConversationNotFound indicates an unknown conversation ID
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrDependencyUnavailable indicates an unreachable model backend
	ErrDependencyUnavailable = errors.New("model backend unavailable")
	// ErrStorageFull indicates index or storage exhaustion
	ErrStorageFull = errors.New("storage full")
)
