package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docpilot-ai/docpilot/internal/config"
	"github.com/docpilot-ai/docpilot/internal/domain"
	"github.com/docpilot-ai/docpilot/internal/extract"
	"github.com/docpilot-ai/docpilot/internal/index"
	"github.com/docpilot-ai/docpilot/internal/repository"
	"github.com/docpilot-ai/docpilot/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubReranker struct{}

func (stubReranker) Rerank(_ context.Context, _ string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	for i := range scores {
		scores[i] = 1 - float64(i)*0.1
	}
	return scores, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return "stub answer", nil
}

func (stubGenerator) Model() string { return "stub-model" }

type stubCaptioner struct{}

func (stubCaptioner) Caption(_ context.Context, _ string) (string, error) {
	return "an image", nil
}

type stubHealth struct{ err error }

func (s stubHealth) CheckHealth(_ context.Context) error { return s.err }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		RAG: config.RAGConfig{
			ChunkSize:        500,
			ChunkOverlap:     100,
			TopKRetrieve:     10,
			TopKRerank:       3,
			MaxContextTokens: 4096,
			MaxHistoryTurns:  6,
			SimilarityMetric: "cosine",
		},
		LLM: config.LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "stub-model",
			Timeout: time.Second,
		},
	}
}

func setupTestRouter(t *testing.T, apiKey string) *gin.Engine {
	return setupTestRouterWithHealth(t, apiKey, stubHealth{})
}

func setupTestRouterWithHealth(t *testing.T, apiKey string, health stubHealth) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	cfg.Admin.APIKey = apiKey

	db, err := repository.NewDB(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	idx, err := index.NewSQLiteIndex(db)
	require.NoError(t, err)

	ragService, err := service.NewRAGService(
		cfg,
		idx,
		stubEmbedder{},
		stubReranker{},
		stubGenerator{},
		extract.New(stubCaptioner{}),
		zap.NewNop(),
	)
	require.NoError(t, err)

	chatService := service.NewChatService(
		cfg,
		ragService,
		repository.NewConversationRepository(db),
		zap.NewNop(),
	)

	return SetupRouter(ragService, chatService, health, RouterConfig{
		APIKey:       apiKey,
		AllowOrigins: []string{"*"},
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doUpload(t *testing.T, r *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["model_backend"])
	assert.Equal(t, float64(0), body["indexed_chunks"])
}

func TestHealthEndpointBackendDown(t *testing.T) {
	r := setupTestRouterWithHealth(t, "", stubHealth{err: errors.New("connection refused")})

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unreachable", body["model_backend"])
}

func TestIngestAndQuery(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doUpload(t, r, "notes.txt", strings.Repeat("The sky is blue. ", 40))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ingest domain.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ingest))
	assert.NotEmpty(t, ingest.DocID)
	assert.Equal(t, "notes.txt", ingest.Filename)
	assert.Greater(t, ingest.ChunkCount, 0)

	w = doJSON(t, r, http.MethodPost, "/api/v1/query", domain.QueryRequest{Query: "what color is the sky?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var query domain.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &query))
	assert.Equal(t, "stub answer", query.Answer)
	assert.NotEmpty(t, query.Sources)
	assert.Equal(t, "stub-model", query.Model)
}

func TestIngestMissingFile(t *testing.T) {
	r := setupTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestUnsupportedFormat(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doUpload(t, r, "archive.zip", "binary junk")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestEmptyDocument(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doUpload(t, r, "empty.txt", "   \n\t ")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryMissingBody(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/query", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatCreatesConversation(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/chat", domain.ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp domain.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "stub answer", resp.Answer)

	// Conversation is retrievable with both turns recorded
	w = doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+resp.ConversationID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var conv domain.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.Len(t, conv.Messages, 2)
}

func TestChatUnknownConversation(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/chat", domain.ChatRequest{
		Message:        "hello",
		ConversationID: "no-such-id",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteConversation(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/chat", domain.ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(t, r, http.MethodDelete, "/api/v1/conversations/"+resp.ConversationID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/conversations/"+resp.ConversationID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEndpoints(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doUpload(t, r, "doc.txt", "some document content here")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var docs domain.DocumentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	assert.Equal(t, 1, docs.Count)

	w = doJSON(t, r, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var convs domain.ConversationListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &convs))
	assert.Equal(t, 0, convs.Count)
}

func TestResetRequiresAPIKey(t *testing.T) {
	r := setupTestRouter(t, "secret")

	w := doJSON(t, r, http.MethodPost, "/api/v1/reset", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reset", nil)
	req.Header.Set("X-API-Key", "secret")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestResetClearsState(t *testing.T) {
	r := setupTestRouter(t, "")

	w := doUpload(t, r, "doc.txt", "content to be wiped")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/chat", domain.ChatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var reset map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reset))
	assert.Equal(t, float64(1), reset["conversations_cleared"])

	w = doJSON(t, r, http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var docs domain.DocumentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	assert.Equal(t, 0, docs.Count)
}
