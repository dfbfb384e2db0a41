package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"

	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

const envPrefix = "env:"

type Config struct {
	Port           int               `json:"port"`
	JWTSecret      string            `json:"jwt_secret"`
	JWTTTLHours    int               `json:"jwt_ttl_hours"`
	EnvFile        string            `json:"env_file"`
	LogConfig      logger.LogConfig  `json:"log_config"`
	Database       DatabaseConfig    `json:"database"`
	AI             AIConfig          `json:"ai"`
	VectorIndex    VectorIndexConfig `json:"vector_index"`
	CRAG           CRAGConfig        `json:"crag"`
	FileStore      FileStoreConfig   `json:"file_store"`
	IndexSync      IndexSyncConfig   `json:"index_sync"`
	RateLimitMs    int               `json:"rate_limit_ms"`
	MaxUploadBytes int64             `json:"max_upload_bytes"`
	CORSOrigins    []string          `json:"cors_origins"`
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

// ProviderConfig selects one registered ai provider. Data is passed to the
// provider factory untouched, after env: references are resolved.
type ProviderConfig struct {
	Name  string                 `json:"name"`
	Model string                 `json:"model"`
	Data  map[string]interface{} `json:"data"`
}

type AIConfig struct {
	Completion []ProviderConfig `json:"completion"`
	Embedding  []ProviderConfig `json:"embedding"`
	Timeout    int              `json:"timeout"`
	EmbedCache EmbedCacheConfig `json:"embed_cache"`
}

// EmbedCacheConfig sizes the optional in-memory embedding cache. It is off
// unless size is set.
type EmbedCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type VectorIndexConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type CRAGConfig struct {
	InitialTopK int  `json:"initial_top_k"`
	MaxRetries  *int `json:"max_retries"`
}

func (c CRAGConfig) Retries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

type FileStoreConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type IndexSyncConfig struct {
	Disabled bool   `json:"disabled"`
	Cron     string `json:"cron"`
	Batch    int    `json:"batch"`
	Workers  int    `json:"workers"`
}

const (
	DefaultInitialTopK = 8
	DefaultMaxRetries  = 2
	MaxTopK            = 20
)

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
	envFile := cfg.EnvFile
	if envFile == "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}
	if err := cfg.resolveEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolveEnv() error {
	var err error
	if c.JWTSecret, err = resolveValue(c.JWTSecret); err != nil {
		return err
	}
	if c.Database.DSN, err = resolveValue(c.Database.DSN); err != nil {
		return err
	}
	if c.Database.Password, err = resolveValue(c.Database.Password); err != nil {
		return err
	}
	for _, list := range [][]ProviderConfig{c.AI.Completion, c.AI.Embedding} {
		for _, item := range list {
			if err := resolveMap(item.Data); err != nil {
				return err
			}
		}
	}
	if err := resolveMap(c.VectorIndex.Data); err != nil {
		return err
	}
	return resolveMap(c.FileStore.Data)
}

func resolveMap(data map[string]interface{}) error {
	for k, v := range data {
		s, ok := v.(string)
		if !ok {
			continue
		}
		resolved, err := resolveValue(s)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		data[k] = resolved
	}
	return nil
}

// resolveValue expands "env:NAME" to the value of NAME.
func resolveValue(v string) (string, error) {
	if !strings.HasPrefix(v, envPrefix) {
		return v, nil
	}
	name := strings.TrimSpace(strings.TrimPrefix(v, envPrefix))
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", appErr.ErrConfiguration, name)
	}
	return value, nil
}

func required(field string) error {
	return fmt.Errorf("%w: %s is required", appErr.ErrConfiguration, field)
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return required("jwt_secret")
	}
	if c.Port == 0 {
		return required("port")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return required("database.dsn or database.host")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 72
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if len(c.AI.Completion) == 0 {
		return required("ai.completion")
	}
	if len(c.AI.Embedding) == 0 {
		return required("ai.embedding")
	}
	for i, item := range append(append([]ProviderConfig{}, c.AI.Completion...), c.AI.Embedding...) {
		if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Model) == "" {
			return fmt.Errorf("%w: ai provider #%d needs name and model", appErr.ErrConfiguration, i)
		}
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60
	}
	if c.AI.EmbedCache.TTLSeconds <= 0 {
		c.AI.EmbedCache.TTLSeconds = 600
	}
	if c.VectorIndex.Type == "" {
		c.VectorIndex.Type = "sqlite"
	}
	if c.CRAG.InitialTopK == 0 {
		c.CRAG.InitialTopK = DefaultInitialTopK
	}
	if c.CRAG.InitialTopK < 1 || c.CRAG.InitialTopK > MaxTopK {
		return fmt.Errorf("%w: crag.initial_top_k must be within 1..%d", appErr.ErrConfiguration, MaxTopK)
	}
	if c.CRAG.Retries() < 0 {
		return fmt.Errorf("%w: crag.max_retries must not be negative", appErr.ErrConfiguration)
	}
	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 5 * 1024 * 1024
	}
	if c.IndexSync.Cron == "" {
		c.IndexSync.Cron = "*/5 * * * *"
	}
	if c.IndexSync.Batch <= 0 {
		c.IndexSync.Batch = 50
	}
	if c.IndexSync.Workers <= 0 {
		c.IndexSync.Workers = 4
	}
	return nil
}
