package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port                  int              `json:"port"`
	JWTSecret             string           `json:"jwt_secret"`
	AccessTokenTTLMinutes int              `json:"access_token_ttl_minutes"`
	RefreshTokenTTLDays   int              `json:"refresh_token_ttl_days"`
	CookieSecure          bool             `json:"cookie_secure"`
	CORSOrigins           []string         `json:"cors_origins"`
	UploadMaxBytes        int64            `json:"upload_max_bytes"`
	LogConfig             logger.LogConfig `json:"log_config"`
	Database              DatabaseConfig   `json:"database"`
	FileStore             FileStoreConfig  `json:"file_store"`
	AI                    AIConfig         `json:"ai"`
	RAG                   RAGConfig        `json:"rag"`
	Schedule              ScheduleConfig   `json:"schedule"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIProviderConfig struct {
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DBEnabled     bool `json:"db_enabled"`
	MaxAgeDays    int  `json:"max_age_days"`
}

type AIConfig struct {
	Providers     []AIProviderConfig `json:"providers"`
	GenerateModel string             `json:"generate_model"`
	EmbedModel    string             `json:"embed_model"`
	EmbedDim      int                `json:"embed_dim"`
	Timeout       int                `json:"timeout"`
	MaxInputChars int                `json:"max_input_chars"`
	EmbedCache    EmbedCacheConfig   `json:"embed_cache"`
}

type RAGConfig struct {
	CorpusID      string `json:"corpus_id"`
	TextbookDir   string `json:"textbook_dir"`
	QuizDir       string `json:"quiz_dir"`
	ChunkSize     int    `json:"chunk_size"`
	ChunkOverlap  int    `json:"chunk_overlap"`
	StrictOverlap bool   `json:"strict_overlap"`
}

type ScheduleConfig struct {
	CorpusRefresh string `json:"corpus_refresh"`
	CacheCleanup  string `json:"cache_cleanup"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.DSN == "" && c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.AccessTokenTTLMinutes <= 0 {
		c.AccessTokenTTLMinutes = 15
	}
	if c.RefreshTokenTTLDays <= 0 {
		c.RefreshTokenTTLDays = 7
	}
	if c.UploadMaxBytes <= 0 {
		c.UploadMaxBytes = 20 << 20
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	switch strings.ToLower(c.FileStore.Type) {
	case "local", "s3":
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60
	}
	if c.AI.MaxInputChars <= 0 {
		c.AI.MaxInputChars = 20000
	}
	if c.AI.EmbedDim <= 0 {
		c.AI.EmbedDim = 768
	}
	for i, p := range c.AI.Providers {
		if p.Type == "" {
			return fmt.Errorf("ai.providers[%d].type is required", i)
		}
		if p.Name == "" {
			c.AI.Providers[i].Name = p.Type
		}
	}
	if c.RAG.CorpusID == "" {
		c.RAG.CorpusID = "textbook"
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 512
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = 50
	}
	return nil
}
