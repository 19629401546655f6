package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clausa-ai/clausa/internal/api/handlers"
	"github.com/clausa-ai/clausa/internal/cache"
	"github.com/clausa-ai/clausa/internal/config"
	"github.com/clausa-ai/clausa/internal/database"
	"github.com/clausa-ai/clausa/internal/jobs"
	"github.com/clausa-ai/clausa/internal/openai"
	"github.com/clausa-ai/clausa/internal/repository"
	"github.com/clausa-ai/clausa/internal/server"
	"github.com/clausa-ai/clausa/internal/service"
	"github.com/clausa-ai/clausa/internal/storage"
	"github.com/clausa-ai/clausa/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the clausa API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)

	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	})
	if openaiClient.Degraded() {
		log.Println("no OpenAI API key configured, running with deterministic fallback embeddings")
	}

	embeddingSvc := service.NewEmbeddingService(openaiClient, cfg.EmbedBatchSize, cfg.EmbedBatchDelay)

	reference := service.NewReferenceSet(nil)
	retrieverSvc := service.NewRetrieverService(chunkRepo, reference)

	answerSvc := service.NewAnswerService(openaiClient, service.RetryConfig{
		MaxRetries:   cfg.LLMMaxRetries,
		InitialDelay: cfg.LLMRetryDelay,
		MaxDelay:     10 * time.Second,
	}, service.AnswerOptions{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   700,
		Timeout:     cfg.LLMTimeout,
	})

	resultCache, err := buildCache(ctx, cfg)
	if err != nil {
		return err
	}

	pipelineSvc := service.NewPipelineService(embeddingSvc, retrieverSvc, answerSvc, resultCache, service.PipelineConfig{
		MaxContextChars: cfg.MaxContextChars,
		CacheTTL:        cfg.CacheTTL,
		Threshold:       cfg.SimilarityThreshold,
		MaxResults:      cfg.MaxResults,
	}).WithRecorder(queryLogRepo)

	var fetcher service.DocumentFetcher
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		log.Printf("S3 document storage '%s' configured", cfg.S3Bucket)
		fetcher = s3Client
	}

	ingestSvc := service.NewIngestService(docRepo, chunkRepo, embeddingSvc, fetcher, service.ChunkOptions{
		TargetTokens:  cfg.ChunkTargetTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
		MinTokens:     cfg.ChunkMinTokens,
		MaxTokens:     cfg.ChunkMaxTokens,
	})

	ingestProcessor := jobs.NewIngestWorker(jobRepo, ingestSvc)
	ingestWorker := jobs.NewWorker(ingestProcessor, cfg.WorkerPollInterval)
	go ingestWorker.Start(ctx)
	log.Println("ingest worker started")

	routerCfg := server.RouterConfig{
		QueryHandler:    handlers.NewQueryHandler(pipelineSvc),
		DocumentHandler: handlers.NewDocumentHandler(docRepo, jobRepo, chunkRepo),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ingestWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.HasRedis() {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Println("redis result cache connected")
		return redisCache, nil
	}
	return cache.NewMemory(), nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
