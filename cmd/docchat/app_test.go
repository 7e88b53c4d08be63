package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docchat/internal/blob"
	"github.com/ashureev/docchat/internal/config"
	"github.com/ashureev/docchat/internal/docs"
	"github.com/ashureev/docchat/internal/logging"
)

func TestNewBlobStore(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	s3Store := newBlobStore(cfg, aws.Config{Region: "us-east-1"})
	assert.IsType(t, &blob.S3Store{}, s3Store)
	assert.Contains(t, s3Store.Name(), config.DefaultBucket)

	cfg.Docs.Backend = config.BlobBackendDir
	cfg.Docs.Dir = t.TempDir()
	assert.IsType(t, &blob.DirStore{}, newBlobStore(cfg, aws.Config{}))
}

func TestNewCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := config.Default()
	cache, closeCache := newCache(ctx, cfg, logging.NewNop())
	closeCache()
	assert.IsType(t, &docs.MemoryCache{}, cache)

	mr := miniredis.RunT(t)
	cfg.Cache.RedisAddr = mr.Addr()
	cache, closeCache = newCache(ctx, cfg, logging.NewNop())
	defer closeCache()
	require.IsType(t, &docs.RedisCache{}, cache)

	require.NoError(t, cache.Set(ctx, "guide.pdf@1", "text"))
	assert.True(t, mr.Exists("docchat:doc:guide.pdf@1"))
}

func TestNewCacheFallsBackWhenRedisDown(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Cache.RedisAddr = addr
	cache, closeCache := newCache(context.Background(), cfg, logging.NewNop())
	defer closeCache()
	assert.IsType(t, &docs.MemoryCache{}, cache)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "docchat version dev\n", out.String())
}
