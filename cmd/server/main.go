package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"google.golang.org/genai"

	"github.com/bookpal-ai/server/api"
	"github.com/bookpal-ai/server/internal/core"
	"github.com/bookpal-ai/server/internal/gateway/conversations"
	"github.com/bookpal-ai/server/internal/gateway/dispatch"
	"github.com/bookpal-ai/server/internal/gateway/engine"
	"github.com/bookpal-ai/server/internal/gateway/intent"
	"github.com/bookpal-ai/server/internal/gateway/model"
	"github.com/bookpal-ai/server/internal/gateway/tools"
	"github.com/bookpal-ai/server/internal/retrieval"
	logx "github.com/bookpal-ai/server/pkg/logger"
	pkgredis "github.com/bookpal-ai/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the gateway, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Addr        string `envconfig:"ADDR" default:":8080"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Gateway configs
	Engine       model.EngineConfig
	Conversation model.ConversationConfig
	Weather      model.WeatherConfig
	Stock        model.StockConfig
	News         model.NewsConfig
	Image        model.ImageConfig
	Retrieval    model.RetrievalConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	// Conversation window: Redis when configured, process memory otherwise.
	var repo model.ConversationRepository
	if cfg.Redis.URL != "" {
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
		}
		defer rdb.Close()

		ttl, err := time.ParseDuration(cfg.Conversation.TTL)
		if err != nil {
			logx.Fatal().Str("ttl", cfg.Conversation.TTL).Err(err).Msg("Invalid CONVERSATION_TTL")
		}
		repo = conversations.NewRedisRepository(rdb, ttl, cfg.Conversation.Exchanges)
		logx.Info().Msg("Conversation window backed by Redis")
	} else {
		repo = conversations.NewMemoryRepository(cfg.Conversation.Exchanges)
		logx.Warn().Msg("REDIS_URL not set; conversation window held in process memory")
	}
	manager := conversations.NewManager(repo)

	// Retrieval collaborator: pgvector when configured, degraded otherwise.
	var retriever retrieval.Retriever = retrieval.Unavailable{}
	if cfg.Retrieval.DatabaseURL != "" {
		pool, err := newVectorPool(ctx, cfg.Retrieval.DatabaseURL)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to connect to passage index")
		}
		defer pool.Close()

		embedClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to create embedding client")
		}
		embedder := retrieval.NewGenAIEmbedder(embedClient, cfg.Retrieval.EmbeddingModel)

		store, err := retrieval.NewStore(pool, embedder, cfg.Retrieval.IndexName, cfg.Retrieval.TopK)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to build passage store")
		}
		retriever = store
		logx.Info().Str("index", cfg.Retrieval.IndexName).Msg("Passage index connected")
	} else {
		logx.Warn().Msg("DATABASE_URL not set; book questions will be answered without retrieval")
	}

	chatEngine, err := engine.New(ctx, engine.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Chat:    cfg.Engine,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create chat engine")
	}

	registry := tools.NewRegistry(
		tools.NewWeatherAdapter(cfg.Weather, nil),
		tools.NewStockAdapter(cfg.Stock, nil),
		tools.NewNewsAdapter(cfg.News, nil),
		tools.NewImageAdapter(cfg.Image, nil),
	)

	classifier := intent.NewClassifier(chatEngine, manager)
	dispatcher := dispatch.NewDispatcher(chatEngine, registry, retriever, manager, classifier)
	server := api.NewServer(cfg.Addr, api.NewChatHandler(dispatcher))

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logx.Fatal().Err(err).Msg("Server failed")
	case sig := <-stop:
		logx.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// newVectorPool builds a pgx pool that registers pgvector types on every
// connection.
func newVectorPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}
