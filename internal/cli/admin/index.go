package admin

import (
	"context"
	"fmt"
	"log"

	openaisdk "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/memoro-ai/memoro/internal/coarse"
	"github.com/memoro-ai/memoro/internal/config"
	"github.com/memoro-ai/memoro/internal/database"
	"github.com/memoro-ai/memoro/internal/ingest"
	"github.com/memoro-ai/memoro/internal/openai"
	"github.com/memoro-ai/memoro/internal/repository"
	"github.com/memoro-ai/memoro/internal/store"
)

// IndexCmd returns the index command
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the period index",
		Long:  "Ingest the corpus and generate period summaries without starting the server",
		RunE:  runIndex,
	}

	cmd.Flags().Bool("refresh", false, "Regenerate summaries for periods whose members changed")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("MEMORO_OPENAI_API_KEY is required")
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
	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		summaryCache = repository.NewPeriodSummaryRepository(pool)
	} else {
		summaryCache = coarse.NewFSCache(cfg.CacheDir)
	}

	index := coarse.NewIndex(chunkStore, model, summaryCache)

	refresh, _ := cmd.Flags().GetBool("refresh")
	if refresh {
		err = index.Refresh(ctx)
	} else {
		err = index.Ensure(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to build period index: %w", err)
	}

	periods, err := index.Periods(ctx)
	if err != nil {
		return err
	}
	for _, p := range periods {
		fmt.Printf("%s  %s .. %s  %d chunks\n",
			p.PeriodKey,
			p.StartDate.Format("2006-01-02"),
			p.EndDate.Format("2006-01-02"),
			len(p.ChunkIDs),
		)
	}
	fmt.Printf("indexed %d periods\n", len(periods))
	return nil
}
