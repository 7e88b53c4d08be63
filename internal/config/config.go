// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Blob backends.
const (
	BlobBackendS3  = "s3"
	BlobBackendDir = "dir"
)

// Defaults shared by the CLI and the server.
const (
	DefaultBucket = "guides-and-context-for-chatbot"
	DefaultRegion = "us-east-1"
)

// Config holds all application configuration.
type Config struct {
	Port               string                `yaml:"port"`
	FrontendURL        string                `yaml:"frontend_url"`
	DBPath             string                `yaml:"db_path"`
	SessionTTL         time.Duration         `yaml:"session_ttl"`
	MaxRequestBodySize int64                 `yaml:"max_request_body_size"`
	Model              ModelConfig           `yaml:"model"`
	Docs               DocsConfig            `yaml:"docs"`
	Cache              CacheConfig           `yaml:"cache"`
	RateLimit          RateLimitConfig       `yaml:"rate_limit"`
	ConversationLog    ConversationLogConfig `yaml:"conversation_log"`
}

// ModelConfig selects the hosted model and its fixed request parameters.
type ModelConfig struct {
	Region      string  `yaml:"region"`
	ID          string  `yaml:"id"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// DocsConfig selects where guidance documents are read from.
type DocsConfig struct {
	Backend string `yaml:"backend"`
	Bucket  string `yaml:"bucket"`
	Dir     string `yaml:"dir"`
}

// CacheConfig enables the Redis extraction cache when Addr is set.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// RateLimitConfig bounds chat requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window"`
	WindowDuration    time.Duration `yaml:"window"`
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	GlobalEnabled bool   `yaml:"global_enabled"`
	GlobalPath    string `yaml:"global_path"`
	QueueSize     int    `yaml:"queue_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:               "8080",
		DBPath:             "./data/docchat.db",
		SessionTTL:         60 * time.Minute,
		MaxRequestBodySize: 1 << 20,
		Model: ModelConfig{
			Region:      DefaultRegion,
			ID:          "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		Docs: DocsConfig{
			Backend: BlobBackendS3,
			Bucket:  DefaultBucket,
			Dir:     "./docs",
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 10,
			WindowDuration:    time.Minute,
		},
		ConversationLog: ConversationLogConfig{
			Enabled:    true,
			Dir:        "./data/logs/conversations",
			GlobalPath: "./data/logs/conversations/all.ndjson",
			QueueSize:  1000,
		},
	}
}

// Load reads the optional YAML file named by DOCCHAT_CONFIG, then applies
// environment variables on top.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DOCCHAT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.MaxRequestBodySize = int64(getEnvInt("MAX_REQUEST_BODY_SIZE", int(c.MaxRequestBodySize)))

	c.Model.Region = getEnv("AWS_REGION", c.Model.Region)
	c.Model.ID = getEnv("MODEL_ID", c.Model.ID)
	c.Model.MaxTokens = getEnvInt("MODEL_MAX_TOKENS", c.Model.MaxTokens)
	c.Model.Temperature = getEnvFloat("MODEL_TEMPERATURE", c.Model.Temperature)

	c.Docs.Backend = strings.ToLower(getEnv("BLOB_BACKEND", c.Docs.Backend))
	c.Docs.Bucket = getEnv("DOCS_BUCKET", c.Docs.Bucket)
	c.Docs.Dir = getEnv("DOCS_DIR", c.Docs.Dir)

	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvInt("REDIS_DB", c.Cache.RedisDB)
	c.Cache.TTL = getEnvDuration("CACHE_TTL", c.Cache.TTL)

	c.RateLimit.RequestsPerWindow = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.RequestsPerWindow)
	c.RateLimit.WindowDuration = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.WindowDuration)

	c.ConversationLog.Enabled = getEnvBool("CONVERSATION_LOG_ENABLED", c.ConversationLog.Enabled)
	c.ConversationLog.Dir = getEnv("CONVERSATION_LOG_DIR", c.ConversationLog.Dir)
	c.ConversationLog.GlobalEnabled = getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", c.ConversationLog.GlobalEnabled)
	c.ConversationLog.GlobalPath = getEnv("CONVERSATION_LOG_GLOBAL_PATH", c.ConversationLog.GlobalPath)
	c.ConversationLog.QueueSize = getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", c.ConversationLog.QueueSize)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be > 0"))
	}
	if c.Model.ID == "" {
		errs = append(errs, errors.New("MODEL_ID cannot be empty"))
	}
	if c.Model.MaxTokens <= 0 {
		errs = append(errs, errors.New("MODEL_MAX_TOKENS must be > 0"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		errs = append(errs, errors.New("MODEL_TEMPERATURE must be within [0, 1]"))
	}
	switch c.Docs.Backend {
	case BlobBackendS3:
		if c.Docs.Bucket == "" {
			errs = append(errs, errors.New("DOCS_BUCKET cannot be empty"))
		}
	case BlobBackendDir:
		if c.Docs.Dir == "" {
			errs = append(errs, errors.New("DOCS_DIR cannot be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BlobBackendS3, BlobBackendDir, c.Docs.Backend))
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be > 0"))
	}
	if c.RateLimit.WindowDuration <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be > 0"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be > 0"))
	}
	if c.ConversationLog.Dir == "" {
		errs = append(errs, errors.New("CONVERSATION_LOG_DIR cannot be empty"))
	}
	if c.ConversationLog.GlobalPath == "" {
		errs = append(errs, errors.New("CONVERSATION_LOG_GLOBAL_PATH cannot be empty"))
	}
	if c.ConversationLog.QueueSize <= 0 {
		errs = append(errs, errors.New("CONVERSATION_LOG_QUEUE_SIZE must be > 0"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// CacheEnabled reports whether a Redis extraction cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.RedisAddr != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
