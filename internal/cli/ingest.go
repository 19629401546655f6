package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/clausa-ai/clausa/internal/config"
	"github.com/clausa-ai/clausa/internal/database"
	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/clausa-ai/clausa/internal/openai"
	"github.com/clausa-ai/clausa/internal/repository"
	"github.com/clausa-ai/clausa/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Store, chunk and embed a document",
		Long: `Store a document and run the full ingest pass synchronously.

Reads document JSON from the given file, or stdin when no file is given,
then chunks the text, embeds every chunk and writes the chunk set to the
database. Prints the stored document ID and chunk count as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("document-id", "", "Reingest an existing document instead of reading input")

	return cmd
}

type ingestOutput struct {
	DocumentID string `json:"documentId"`
	ChunkCount int    `json:"chunkCount"`
	Degraded   bool   `json:"degradedEmbeddings,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
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

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	})

	embeddingSvc := service.NewEmbeddingService(openaiClient, cfg.EmbedBatchSize, cfg.EmbedBatchDelay)
	ingestSvc := service.NewIngestService(docRepo, chunkRepo, embeddingSvc, nil, service.ChunkOptions{
		TargetTokens:  cfg.ChunkTargetTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
		MinTokens:     cfg.ChunkMinTokens,
		MaxTokens:     cfg.ChunkMaxTokens,
	})

	documentID, _ := cmd.Flags().GetString("document-id")
	if documentID == "" {
		documentID, err = storeDocument(ctx, args, docRepo)
		if err != nil {
			return err
		}
	}

	if err := ingestSvc.IngestDocument(ctx, documentID); err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	chunks, err := chunkRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ingestOutput{
		DocumentID: documentID,
		ChunkCount: len(chunks),
		Degraded:   openaiClient.Degraded(),
	})
}

func storeDocument(ctx context.Context, args []string, docRepo *repository.DocumentRepository) (string, error) {
	var reader io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var input chunkInput
	if err := json.NewDecoder(reader).Decode(&input); err != nil {
		return "", fmt.Errorf("failed to decode document JSON: %w", err)
	}

	doc := &domain.Document{
		ID:        input.DocumentID,
		InsurerID: input.InsurerID,
		Text:      input.Text,
		Metadata: domain.DocumentMetadata{
			Title:     input.Title,
			Category:  input.Category,
			SourceURL: input.SourceURL,
		},
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return "", err
	}

	if err := docRepo.Create(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}
	return doc.ID, nil
}
