package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ashureev/docchat/internal/agent"
	"github.com/ashureev/docchat/internal/api"
	"github.com/ashureev/docchat/internal/config"
	"github.com/ashureev/docchat/internal/conversation"
	"github.com/ashureev/docchat/internal/identity"
	"github.com/ashureev/docchat/internal/logging"
	"github.com/ashureev/docchat/internal/metrics"
	"github.com/ashureev/docchat/internal/middleware"
	"github.com/ashureev/docchat/internal/store"
	"github.com/ashureev/docchat/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web chat server",
	Long:  `Serves the chat page, a JSON API and a WebSocket endpoint over HTTP.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger := logging.NewJSON(logging.ParseLevel(level, slog.LevelInfo))
	slog.SetDefault(logger)

	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "version", version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		return err
	}
	slog.Info("Database connected")

	m := metrics.New()
	c, err := newCore(ctx, cfg, m, logger)
	if err != nil {
		slog.Error("Failed to initialize document chat", "error", err)
		return err
	}
	defer c.close()

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		return err
	}

	svc := agent.NewService(func() *conversation.Controller {
		return conversation.NewController(c.assembler, c.model, logger)
	}, repo, conversationLogger, m, logger)
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	rateLimiter := agent.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer rateLimiter.Stop()

	conns := agent.NewConnectionRegistry()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, repo, c, svc, conns, rateLimiter, m),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // model calls and WebSockets can run long
		IdleTimeout:  120 * time.Second,
	}

	agent.StartTTLWorker(ctx, repo, svc, cfg.SessionTTL, func(userID, sessionID string) {
		conns.Close(userID, sessionID, "session expired")
	})

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}

func newRouter(cfg *config.Config, repo store.Repository, c *core, svc *agent.Service, conns *agent.ConnectionRegistry, rl *agent.RateLimiter, m *metrics.Metrics) http.Handler {
	checks := map[string]api.Pinger{"database": repo}
	if p, ok := c.cache.(api.Pinger); ok {
		checks["cache"] = p
	}
	healthHandler := api.NewHealthHandler(checks)
	chatHandler := agent.NewHandler(svc, rl, cfg.MaxRequestBodySize)
	wsHandler := agent.NewWebSocketHandler(svc, conns, rl, cfg.FrontendURL, cfg.IsDevelopment())

	origins := []string{"*"}
	if !cfg.IsDevelopment() {
		origins = []string{cfg.FrontendURL}
	}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(origins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())

	// Chat routes carry an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		chatHandler.RegisterRoutes(r)
		r.Get("/ws/chat", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	return r
}
