package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docpilot-ai/docpilot/internal/api"
	"github.com/docpilot-ai/docpilot/internal/config"
	"github.com/docpilot-ai/docpilot/internal/extract"
	"github.com/docpilot-ai/docpilot/internal/index"
	"github.com/docpilot-ai/docpilot/internal/llm"
	"github.com/docpilot-ai/docpilot/internal/repository"
	"github.com/docpilot-ai/docpilot/internal/service"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize vector index over the database
	idx, err := index.NewSQLiteIndex(db)
	if err != nil {
		logger.Fatal("Failed to load vector index", zap.Error(err))
	}

	// Initialize model backend clients
	ollama := llm.NewOllamaClient(cfg.LLM.BaseURL, cfg.LLM.Timeout)
	embedder := llm.NewOllamaEmbedder(ollama, cfg.LLM.EmbeddingModel)
	reranker := llm.NewOllamaReranker(ollama, cfg.LLM.RerankModel)
	generator := llm.NewOllamaGenerator(ollama, cfg.LLM.Model)
	captioner := llm.NewOllamaVision(ollama, cfg.LLM.VisionModel)

	extractor := extract.New(captioner)

	// Initialize services
	ragService, err := service.NewRAGService(
		cfg,
		idx,
		embedder,
		reranker,
		generator,
		extractor,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize RAG service", zap.Error(err))
	}

	chatService := service.NewChatService(
		cfg,
		ragService,
		repository.NewConversationRepository(db),
		logger,
	)

	// Setup router
	router := api.SetupRouter(ragService, chatService, ollama, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting DocPilot server",
			zap.String("address", cfg.Address()),
			zap.String("model", cfg.LLM.Model),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
