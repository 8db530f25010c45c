// Command ingest loads meal template files into the vector index. Run it
// offline whenever the template corpus changes:
//
//	ingest -dir ./templates [-clear]
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/config"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/retry"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/service"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "./templates", "directory of meal template files")
	clear := flag.Bool("clear", false, "delete all vectors before ingesting")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run budget")
	flag.Parse()

	if err := config.InitConfig(); err != nil {
		log.Fatalf("failed to init config: %v", err)
	}
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Logger.Sync()

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
		BatchSize:  cfg.Embedding.BatchSize,
		BatchDelay: cfg.Embedding.BatchDelay,
		Policy:     policy,
	})
	index := service.NewRemoteVectorIndex(
		cfg.Index.Endpoint, cfg.Index.APIKey, cfg.Index.Namespace,
		cfg.Index.Timeout, policy)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *clear {
		if err := index.DeleteAll(ctx, ""); err != nil {
			logger.Fatal("failed to clear index", zap.Error(err))
		}
		logger.Info("index cleared", zap.String("namespace", cfg.Index.Namespace))
	}

	ingest := service.NewIngestService(embedder, index, nil)
	stats, err := ingest.IngestDir(ctx, *dir)
	if err != nil {
		logger.Fatal("ingestion failed", zap.Error(err))
	}

	logger.Info("done",
		zap.Int("files", stats.Files),
		zap.Int("meals", stats.Meals),
		zap.Int("skipped", stats.Skipped),
		zap.Int("upserted", stats.Upserted),
	)
}
