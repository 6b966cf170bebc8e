package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"librarydesk/internal/agent"
	"librarydesk/internal/config"
	"librarydesk/internal/ratelimit"
	"librarydesk/internal/server"
	"librarydesk/internal/util"
	"librarydesk/pkg/ai"
	"librarydesk/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to open store", "err", err)
	}
	if cfg.SeedDemoData {
		if err := store.SeedDemoData(st); err != nil {
			fatal("failed to seed demo data", "err", err)
		}
		slog.Info("demo data seeded")
	}

	model, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GenerationModel)
	if err != nil {
		fatal("failed to init gemini client", "err", err)
	}

	systemPrompt := ""
	if cfg.SystemPromptPath != "" {
		data, err := os.ReadFile(cfg.SystemPromptPath)
		if err != nil {
			fatal("failed to read system prompt", "path", cfg.SystemPromptPath, "err", err)
		}
		systemPrompt = string(data)
	}
	ag := agent.New(model, agent.NewRegistry(st), systemPrompt)

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.ChatRateLimit > 0 {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr,
			cfg.RedisPassword,
			"librarydesk:ratelimit",
			cfg.ChatRateLimit,
			time.Duration(cfg.ChatRateWindowSecs)*time.Second,
		)
		if err != nil {
			fatal("failed to init rate limiter", "err", err)
		}
	}

	httpServer := server.New(server.Config{
		Store:         st,
		Agent:         ag,
		Limiter:       limiter,
		AllowedOrigin: cfg.AllowedOrigin,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("library desk server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
