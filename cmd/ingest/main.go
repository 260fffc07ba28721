// Command ingest populates the passage index from a source text: chunk,
// embed, and batch-upsert, skipping the upload entirely when a probe query
// shows the index is already populated.
package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"google.golang.org/genai"

	"github.com/bookpal-ai/server/internal/core"
	"github.com/bookpal-ai/server/internal/gateway/model"
	"github.com/bookpal-ai/server/internal/ingest"
	"github.com/bookpal-ai/server/internal/retrieval"
	logx "github.com/bookpal-ai/server/pkg/logger"
)

type IngestAppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	APIKey string `envconfig:"GEMINI_API_KEY" required:"true"`

	Ingest    model.IngestConfig
	Retrieval model.RetrievalConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg IngestAppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	if cfg.Retrieval.DatabaseURL == "" {
		logx.Fatal().Msg("DATABASE_URL is required for ingestion")
	}

	text, err := os.ReadFile(cfg.Ingest.SourcePath)
	if err != nil {
		logx.Fatal().Str("path", cfg.Ingest.SourcePath).Err(err).Msg("Failed to read source text")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Retrieval.DatabaseURL)
	if err != nil {
		logx.Fatal().Err(err).Msg("Invalid DATABASE_URL")
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to connect to passage index")
	}
	defer pool.Close()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create embedding client")
	}
	embedder := retrieval.NewGenAIEmbedder(client, cfg.Retrieval.EmbeddingModel)

	store, err := retrieval.NewStore(pool, embedder, cfg.Retrieval.IndexName, cfg.Retrieval.TopK)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build passage store")
	}
	if err := store.EnsureSchema(ctx, cfg.Ingest.VectorDim); err != nil {
		logx.Fatal().Err(err).Msg("Failed to ensure index schema")
	}

	pipeline := ingest.NewPipeline(embedder, store, cfg.Ingest)
	uploaded, err := pipeline.Run(ctx, string(text))
	if err != nil {
		logx.Fatal().Err(err).Msg("Ingestion failed")
	}

	if uploaded == 0 {
		logx.Info().Msg("Index already populated; nothing to do")
	} else {
		logx.Info().Int("chunks", uploaded).Msg("Upload complete")
	}
}
