package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for docpilot
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	RAG      RAGConfig      `mapstructure:"rag"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AdminConfig holds authentication for destructive endpoints
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RAGConfig holds retrieval pipeline configuration
type RAGConfig struct {
	ChunkSize        int    `mapstructure:"chunk_size"`
	ChunkOverlap     int    `mapstructure:"chunk_overlap"`
	TopKRetrieve     int    `mapstructure:"top_k_retrieve"`
	TopKRerank       int    `mapstructure:"top_k_rerank"`
	MaxContextTokens int    `mapstructure:"max_context_tokens"`
	MaxHistoryTurns  int    `mapstructure:"max_history_turns"`
	SimilarityMetric string `mapstructure:"similarity_metric"`
}

// LLMConfig holds model backend configuration
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	RerankModel    string        `mapstructure:"rerank_model"`
	VisionModel    string        `mapstructure:"vision_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DOCPILOT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints the pipeline relies on
func (c *Config) Validate() error {
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must satisfy 0 <= overlap < chunk_size, got %d/%d",
			c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopKRerank > c.RAG.TopKRetrieve {
		return fmt.Errorf("rag.top_k_rerank (%d) must not exceed rag.top_k_retrieve (%d)",
			c.RAG.TopKRerank, c.RAG.TopKRetrieve)
	}
	if c.RAG.SimilarityMetric != "cosine" {
		return fmt.Errorf("unsupported rag.similarity_metric: %s", c.RAG.SimilarityMetric)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/docpilot.db")

	v.SetDefault("rag.chunk_size", 500)
	v.SetDefault("rag.chunk_overlap", 100)
	v.SetDefault("rag.top_k_retrieve", 10)
	v.SetDefault("rag.top_k_rerank", 3)
	v.SetDefault("rag.max_context_tokens", 4096)
	v.SetDefault("rag.max_history_turns", 6)
	v.SetDefault("rag.similarity_metric", "cosine")

	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "qwen2.5:7b")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.rerank_model", "bge-reranker-v2-m3")
	v.SetDefault("llm.vision_model", "llava:7b")
	v.SetDefault("llm.timeout", 120*time.Second)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
