package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/docchat/internal/blob"
	"github.com/ashureev/docchat/internal/config"
	"github.com/ashureev/docchat/internal/docs"
	"github.com/ashureev/docchat/internal/metrics"
	"github.com/ashureev/docchat/internal/model"
)

// loadConfig reads .env, the optional config file and the environment, then
// applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model.ID, _ = flags.GetString("model")
	}
	if flags.Changed("bucket") {
		cfg.Docs.Bucket, _ = flags.GetString("bucket")
		cfg.Docs.Backend = config.BlobBackendS3
	}
	if flags.Changed("docs-dir") {
		cfg.Docs.Dir, _ = flags.GetString("docs-dir")
		cfg.Docs.Backend = config.BlobBackendDir
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// core holds the pieces shared by the terminal and web front ends.
type core struct {
	assembler *docs.Assembler
	model     *model.Client
	cache     docs.Cache
	metrics   *metrics.Metrics
	close     func()
}

func newCore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*core, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Model.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	store := newBlobStore(cfg, awsCfg)
	cache, closeCache := newCache(ctx, cfg, logger)

	assembler := docs.NewAssembler(store,
		docs.WithCache(cache),
		docs.WithMetrics(m),
		docs.WithLogger(logger),
	)

	client := model.NewFromAWSConfig(awsCfg, model.Config{
		ModelID:     cfg.Model.ID,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	}, m, logger)

	logger.Info("Document chat ready",
		"model", client.ModelID(),
		"region", cfg.Model.Region,
		"documents", store.Name(),
	)

	return &core{
		assembler: assembler,
		model:     client,
		cache:     cache,
		metrics:   m,
		close:     closeCache,
	}, nil
}

func newBlobStore(cfg *config.Config, awsCfg aws.Config) blob.Store {
	if cfg.Docs.Backend == config.BlobBackendDir {
		return blob.NewDirStore(cfg.Docs.Dir)
	}
	return blob.NewS3StoreFromConfig(awsCfg, cfg.Docs.Bucket)
}

// newCache prefers Redis when configured and reachable, and otherwise keeps
// extracted text in process memory.
func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docs.Cache, func()) {
	if !cfg.CacheEnabled() {
		return docs.NewMemoryCache(), func() {}
	}

	rc := docs.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB,
		docs.WithTTL(cfg.Cache.TTL),
	)
	if err := rc.Ping(ctx); err != nil {
		logger.Warn("Redis cache unreachable, using in-memory cache", "addr", cfg.Cache.RedisAddr, "error", err)
		_ = rc.Close()
		return docs.NewMemoryCache(), func() {}
	}
	logger.Info("Redis document cache connected", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.Warn("Failed to close Redis cache", "error", err)
		}
	}
}
