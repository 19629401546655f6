package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/clausa-ai/clausa/internal/config"
	"github.com/clausa-ai/clausa/internal/database"
	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/clausa-ai/clausa/internal/openai"
	"github.com/clausa-ai/clausa/internal/repository"
	"github.com/clausa-ai/clausa/internal/service"
	"github.com/spf13/cobra"
)

// QueryCmd returns the query command
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question against the indexed corpus",
		Long:  "Run the full retrieval pipeline once and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}

	cmd.Flags().String("category", "", "Restrict retrieval to a document category")
	cmd.Flags().String("insurer", "", "Restrict retrieval to one insurer")
	cmd.Flags().Float32("threshold", 0, "Similarity threshold override")
	cmd.Flags().Int("max-results", 0, "Maximum number of sources")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	})

	embeddingSvc := service.NewEmbeddingService(openaiClient, cfg.EmbedBatchSize, cfg.EmbedBatchDelay)
	retrieverSvc := service.NewRetrieverService(repository.NewChunkRepository(pool), service.NewReferenceSet(nil))
	answerSvc := service.NewAnswerService(openaiClient, service.RetryConfig{
		MaxRetries:   cfg.LLMMaxRetries,
		InitialDelay: cfg.LLMRetryDelay,
		MaxDelay:     10 * time.Second,
	}, service.AnswerOptions{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   700,
		Timeout:     cfg.LLMTimeout,
	})

	pipeline := service.NewPipelineService(embeddingSvc, retrieverSvc, answerSvc, nil, service.PipelineConfig{
		MaxContextChars: cfg.MaxContextChars,
		Threshold:       cfg.SimilarityThreshold,
		MaxResults:      cfg.MaxResults,
	})

	category, _ := cmd.Flags().GetString("category")
	insurer, _ := cmd.Flags().GetString("insurer")
	threshold, _ := cmd.Flags().GetFloat32("threshold")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	result, err := pipeline.Run(ctx, domain.Query{
		Text: args[0],
		Filters: domain.SearchFilters{
			Category:  category,
			InsurerID: insurer,
		},
		Threshold:  threshold,
		MaxResults: maxResults,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
