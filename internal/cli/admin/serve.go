package admin

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

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	openaisdk "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/memoro-ai/memoro/internal/api/handlers"
	"github.com/memoro-ai/memoro/internal/coarse"
	"github.com/memoro-ai/memoro/internal/config"
	"github.com/memoro-ai/memoro/internal/database"
	"github.com/memoro-ai/memoro/internal/evidence"
	"github.com/memoro-ai/memoro/internal/ingest"
	"github.com/memoro-ai/memoro/internal/jobs"
	"github.com/memoro-ai/memoro/internal/openai"
	"github.com/memoro-ai/memoro/internal/query"
	"github.com/memoro-ai/memoro/internal/repository"
	"github.com/memoro-ai/memoro/internal/retrieval"
	"github.com/memoro-ai/memoro/internal/server"
	"github.com/memoro-ai/memoro/internal/service"
	"github.com/memoro-ai/memoro/internal/storage"
	"github.com/memoro-ai/memoro/internal/store"
	"github.com/memoro-ai/memoro/internal/style"
	"github.com/memoro-ai/memoro/internal/telemetry"
	"github.com/memoro-ai/memoro/internal/verify"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Ingest the corpus, build the period index, and serve the ask API",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-index", false, "Skip building the period index on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
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

	if !cfg.HasOpenAI() {
		return fmt.Errorf("MEMORO_OPENAI_API_KEY is required")
	}

	var pool *pgxpool.Pool
	if cfg.HasDatabase() {
		pool, err = database.NewPool(ctx, cfg.DatabaseURL)
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
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if _, err := s3Client.SyncCorpus(ctx, cfg.DataDir); err != nil {
			return fmt.Errorf("failed to sync corpus from S3: %w", err)
		}
	}

	chunks, err := ingest.NewLoader(cfg.DataDir).Load()
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	chunkStore := store.New(chunks)
	log.Printf("loaded %d chunks from %s", chunkStore.Len(), cfg.DataDir)

	model := openai.NewClientWithConfig(openai.Config{
		APIKey:          cfg.OpenAIAPIKey,
		EmbeddingModel:  openaisdk.EmbeddingModel(cfg.EmbeddingModel),
		GenerationModel: cfg.ChatModel,
	})

	var summaryCache coarse.Cache
	if pool != nil {
		summaryCache = repository.NewPeriodSummaryRepository(pool)
	} else {
		summaryCache = coarse.NewFSCache(cfg.CacheDir)
	}
	index := coarse.NewIndex(chunkStore, model, summaryCache)

	noIndex, _ := cmd.Flags().GetBool("no-index")
	if !noIndex {
		if err := index.Ensure(ctx); err != nil {
			return fmt.Errorf("failed to build period index: %w", err)
		}
		periods, _ := index.Periods(ctx)
		log.Printf("period index ready with %d periods", len(periods))
	}

	var refreshWorker *jobs.Worker
	if cfg.SummaryRefreshInterval > 0 {
		processor := jobs.NewSummaryRefreshProcessor(index)
		refreshWorker = jobs.NewWorker(processor, time.Duration(cfg.SummaryRefreshInterval)*time.Second)
		go refreshWorker.Start(ctx)
		log.Println("summary refresh worker started")
	}

	retriever := retrieval.NewRetrieverWithConfig(chunkStore, index, model, retrieval.Config{
		TopK:          cfg.TopK,
		ContextBudget: cfg.ContextBudget,
	})

	var styler service.Styler
	if cfg.VoiceGuide != "" {
		styler = style.NewRewriter(model, cfg.VoiceGuide)
	}

	var askLogger service.AskLogger
	if pool != nil {
		askLogger = repository.NewAskLogRepository(pool)
	}

	answerSvc := service.NewAnswerService(
		query.NewParserWithYear(cfg.DefaultYear),
		service.NewPrefixClassifier(),
		retriever,
		evidence.NewExtractor(model),
		verify.NewGate(model),
		styler,
		askLogger,
	)

	router := server.NewRouter(server.RouterConfig{
		APIToken:       cfg.APIToken,
		AskHandler:     handlers.NewAskHandler(answerSvc),
		PeriodsHandler: handlers.NewPeriodsHandler(index),
	})

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

	if refreshWorker != nil {
		refreshWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql connection
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

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty migration state at version %d", version)
	}
	log.Printf("migrations up to date (version %d)", version)

	return nil
}
