package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/docpilot-ai/docpilot/internal/domain"
	"github.com/docpilot-ai/docpilot/internal/service"
	"github.com/gin-gonic/gin"
)

// maxUploadBytes caps the size of an uploaded document.
const maxUploadBytes = 32 << 20 // 32 MB

// Handler handles document and chat API requests
type Handler struct {
	ragService  *service.RAGService
	chatService *service.ChatService
}

// NewHandler creates a new API handler
func NewHandler(ragService *service.RAGService, chatService *service.ChatService) *Handler {
	return &Handler{ragService: ragService, chatService: chatService}
}

// RegisterRoutes registers the document Q&A routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ingest", h.Ingest)
	r.POST("/query", h.Query)
	r.POST("/chat", h.Chat)

	r.GET("/documents", h.ListDocuments)
	r.DELETE("/documents/:id", h.DeleteDocument)

	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:id", h.GetConversation)
	r.DELETE("/conversations/:id", h.DeleteConversation)
	r.POST("/conversations/clear", h.ClearConversations)
}

// Ingest accepts a document upload and indexes it
func (h *Handler) Ingest(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open upload"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	if int64(len(content)) > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	resp, err := h.ragService.Ingest(c.Request.Context(), content, fileHeader.Filename)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Query answers a stateless single-turn question
func (h *Handler) Query(c *gin.Context) {
	var req domain.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.ragService.Query(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Chat handles a conversational message
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListDocuments lists all indexed documents
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.ragService.ListDocuments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.DocumentListResponse{
		Documents: docs,
		Count:     len(docs),
	})
}

// DeleteDocument removes a document and its chunks from the index
func (h *Handler) DeleteDocument(c *gin.Context) {
	docID := c.Param("id")

	if err := h.ragService.DeleteDocument(c.Request.Context(), docID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "doc_id": docID})
}

// ListConversations lists conversation summaries
func (h *Handler) ListConversations(c *gin.Context) {
	summaries, err := h.chatService.ListConversations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.ConversationListResponse{
		Conversations: summaries,
		Count:         len(summaries),
	})
}

// GetConversation returns a conversation with its full history
func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.chatService.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// DeleteConversation removes a conversation and its history
func (h *Handler) DeleteConversation(c *gin.Context) {
	id := c.Param("id")

	if err := h.chatService.DeleteConversation(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "conversation_id": id})
}

// ClearConversations removes all conversations
func (h *Handler) ClearConversations(c *gin.Context) {
	count, err := h.chatService.Reset(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared", "count": count})
}

// Reset wipes the index and all conversations
func (h *Handler) Reset(c *gin.Context) {
	if err := h.ragService.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}

	count, err := h.chatService.Reset(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset", "conversations_cleared": count})
}

// writeError maps domain errors to HTTP status codes
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConversationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateChunk):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDependencyUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrStorageFull):
		status = http.StatusInsufficientStorage
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
