package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/config"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/handler"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/middleware"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/database"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/metrics"
	appredis "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/redis"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/retry"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/repository"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/router"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/service"
	"go.uber.org/zap"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.Fatalf("failed to init config: %v", err)
	}
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Logger.Sync()

	if err := database.InitMySQL(); err != nil {
		logger.Fatal("failed to init mysql", zap.Error(err))
	}
	defer database.Close()

	if err := appredis.InitRedis(); err != nil {
		logger.Fatal("failed to init redis", zap.Error(err))
	}
	defer appredis.Close()

	cfg := config.GlobalConfig
	policy := retry.Policy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.BackoffMultiplier,
	}

	embedClient := service.NewOpenAIEmbeddingClient(
		cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Model,
		cfg.Embedding.Dimension, cfg.Embedding.Timeout)
	embedder := service.NewEmbedder(embedClient, service.EmbedderConfig{
		CacheSize:  cfg.Embedding.CacheSize,
		CacheTTL:   cfg.Embedding.CacheTTL,
		BatchSize:  cfg.Embedding.BatchSize,
		BatchDelay: cfg.Embedding.BatchDelay,
		Policy:     policy,
	})

	index := service.NewRemoteVectorIndex(
		cfg.Index.Endpoint, cfg.Index.APIKey, cfg.Index.Namespace,
		cfg.Index.Timeout, policy)

	llm := service.NewOpenAILLMClient(
		cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout, policy)

	expander := service.NewQueryExpander(llm, service.QueryExpanderConfig{
		MaxVariations: cfg.Retrieval.MaxVariations,
		UseLLM:        true,
	})

	userRepo := repository.NewUserRepository(database.DB)
	locker := appredis.NewUserLock(appredis.Rdb, 10*time.Second)
	quota := service.NewQuotaService(userRepo, locker, service.QuotaConfig{
		FreeTotalLimit: cfg.Quota.FreeTotal,
		ProWeeklyLimit: cfg.Quota.ProWeekly,
		MaxWeeklyLimit: cfg.Quota.MaxWeekly,
		TestUserID:     cfg.Quota.TestUserID,
		Timezone:       cfg.Quota.Timezone,
	})

	macros := service.NewMacroPlanner(service.MacroPlannerConfig{
		TolerancePct: cfg.Macros.TolerancePct,
		DailyCarbTol: cfg.Macros.DailyCarbTol,
		DailyPFTol:   cfg.Macros.DailyPFTol,
	})

	dedup := service.NewDeduplicator()
	registry := metrics.NewRegistry()
	plans := service.NewPlanService(
		quota, macros, expander, embedder, index,
		service.NewMetadataFilter(), dedup, service.NewReRanker(),
		service.NewPromptBuilder(), llm, service.NewPlanValidator(llm),
		registry,
		service.PlanServiceConfig{
			TopK:     cfg.Retrieval.TopK,
			MinScore: cfg.Retrieval.MinScore,
			MaxDocs:  cfg.Retrieval.MaxDocs,
			FanOut:   cfg.Retrieval.FanOut,
		})

	ingest := service.NewIngestService(embedder, index, dedup)

	limiter := middleware.NewRateLimiter(appredis.Rdb, &middleware.RateLimitConfig{
		IPRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		GenerationPerMinute: 2,
	})

	engine := router.Setup(router.Handlers{
		Health: handler.NewHealthHandler(),
		Plan:   handler.NewPlanHandler(plans),
		Ingest: handler.NewIngestHandler(ingest, index),
	}, limiter)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.App.Port), zap.String("mode", cfg.App.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
