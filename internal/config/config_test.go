package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCCHAT_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DefaultBucket, cfg.Docs.Bucket)
	assert.Equal(t, BlobBackendS3, cfg.Docs.Backend)
	assert.Equal(t, DefaultRegion, cfg.Model.Region)
	assert.Equal(t, 8192, cfg.Model.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Model.Temperature, 1e-9)
	assert.False(t, cfg.CacheEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_CONFIG", "")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0")
	t.Setenv("MODEL_TEMPERATURE", "0.2")
	t.Setenv("BLOB_BACKEND", "DIR")
	t.Setenv("DOCS_DIR", "/srv/docs")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CONVERSATION_LOG_ENABLED", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", cfg.Model.ID)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, BlobBackendDir, cfg.Docs.Backend)
	assert.Equal(t, "/srv/docs", cfg.Docs.Dir)
	assert.True(t, cfg.CacheEnabled())
	assert.False(t, cfg.ConversationLog.Enabled)
}

func TestLoadMalformedEnvKeepsDefault(t *testing.T) {
	t.Setenv("DOCCHAT_CONFIG", "")
	t.Setenv("MODEL_MAX_TOKENS", "lots")
	t.Setenv("CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.Model.MaxTokens)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.yaml")
	data := []byte(`
port: "7000"
session_ttl: 5m
model:
  id: file-model
  max_tokens: 1024
docs:
  bucket: file-bucket
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("DOCCHAT_CONFIG", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "file-model", cfg.Model.ID)
	assert.Equal(t, 1024, cfg.Model.MaxTokens)
	assert.Equal(t, "file-bucket", cfg.Docs.Bucket)
	assert.InDelta(t, 0.7, cfg.Model.Temperature, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("DOCCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad backend", func(c *Config) { c.Docs.Backend = "gcs" }, "BLOB_BACKEND"},
		{"empty bucket", func(c *Config) { c.Docs.Bucket = "" }, "DOCS_BUCKET"},
		{"dir without path", func(c *Config) { c.Docs.Backend = BlobBackendDir; c.Docs.Dir = "" }, "DOCS_DIR"},
		{"temperature", func(c *Config) { c.Model.Temperature = 1.5 }, "MODEL_TEMPERATURE"},
		{"tokens", func(c *Config) { c.Model.MaxTokens = 0 }, "MODEL_MAX_TOKENS"},
		{"ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }, "RATE_LIMIT_REQUESTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.True(t, cfg.IsDevelopment())
	cfg.FrontendURL = "http://localhost:5173"
	assert.True(t, cfg.IsDevelopment())
	cfg.FrontendURL = "https://chat.example.com"
	assert.False(t, cfg.IsDevelopment())
}
