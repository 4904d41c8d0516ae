package api

import (
	"net/http"

	"github.com/docpilot-ai/docpilot/internal/api/middleware"
	"github.com/docpilot-ai/docpilot/internal/llm"
	"github.com/docpilot-ai/docpilot/internal/service"
	"github.com/gin-gonic/gin"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	ragService *service.RAGService,
	chatService *service.ChatService,
	health llm.HealthChecker,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		overall := "ok"
		backend := "ok"
		status := http.StatusOK
		if err := health.CheckHealth(c.Request.Context()); err != nil {
			overall = "degraded"
			backend = "unreachable"
			status = http.StatusServiceUnavailable
		}

		indexed, err := ragService.IndexSize(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
			return
		}

		c.JSON(status, gin.H{
			"status":         overall,
			"model_backend":  backend,
			"indexed_chunks": indexed,
		})
	})

	// Document Q&A API
	handler := NewHandler(ragService, chatService)
	v1 := r.Group("/api/v1")
	handler.RegisterRoutes(v1)

	// Reset wipes all state and requires the admin API key
	v1.POST("/reset", middleware.Auth(cfg.APIKey), handler.Reset)

	return r
}
