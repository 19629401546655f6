package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/clausa-ai/clausa/internal/service"
	"github.com/spf13/cobra"
)

// chunkInput is the document JSON accepted on stdin or from a file.
type chunkInput struct {
	DocumentID string `json:"documentId"`
	InsurerID  string `json:"insurerId"`
	Text       string `json:"text"`
	Title      string `json:"title,omitempty"`
	Category   string `json:"category,omitempty"`
	SourceURL  string `json:"sourceUrl,omitempty"`
}

// chunkRecord is one emitted chunk. Embeddings are attached later by the
// ingest pipeline, never here.
type chunkRecord struct {
	DocumentID string                  `json:"documentId"`
	InsurerID  string                  `json:"insurerId"`
	ChunkText  string                  `json:"chunkText"`
	ChunkIndex int                     `json:"chunkIndex"`
	TokenCount int                     `json:"tokenCount"`
	Metadata   domain.DocumentMetadata `json:"metadata"`
}

type chunkStatsOutput struct {
	ChunkCount  int      `json:"chunkCount"`
	TotalTokens int      `json:"totalTokens"`
	AvgTokens   float64  `json:"avgTokens"`
	MinTokens   int      `json:"minTokens"`
	MaxTokens   int      `json:"maxTokens"`
	Warnings    []string `json:"warnings,omitempty"`
}

// ChunkCmd returns the chunk command
func ChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk [file]",
		Short: "Split a document into token-bounded chunks",
		Long: `Split a document into overlapping, sentence-respecting chunks.

Reads document JSON from the given file, or stdin when no file is given,
and writes the chunk records as a JSON array to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChunk,
	}

	cmd.Flags().Int("target-tokens", service.DefaultChunkOptions().TargetTokens, "Target tokens per chunk")
	cmd.Flags().Int("overlap-tokens", service.DefaultChunkOptions().OverlapTokens, "Token budget carried over between chunks")
	cmd.Flags().Int("min-tokens", service.DefaultChunkOptions().MinTokens, "Minimum tokens for a trailing chunk")
	cmd.Flags().Int("max-tokens", service.DefaultChunkOptions().MaxTokens, "Hard upper bound per chunk")
	cmd.Flags().Bool("stats", false, "Write chunking statistics to stderr")

	return cmd
}

func runChunk(cmd *cobra.Command, args []string) error {
	var reader io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var input chunkInput
	if err := json.NewDecoder(reader).Decode(&input); err != nil {
		return fmt.Errorf("failed to decode document JSON: %w", err)
	}

	opts := service.ChunkOptions{}
	opts.TargetTokens, _ = cmd.Flags().GetInt("target-tokens")
	opts.OverlapTokens, _ = cmd.Flags().GetInt("overlap-tokens")
	opts.MinTokens, _ = cmd.Flags().GetInt("min-tokens")
	opts.MaxTokens, _ = cmd.Flags().GetInt("max-tokens")

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

	chunks, err := service.ChunkDocument(doc, opts)
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}

	records := make([]chunkRecord, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, chunkRecord{
			DocumentID: c.DocumentID,
			InsurerID:  c.InsurerID,
			ChunkText:  c.Text,
			ChunkIndex: c.Index,
			TokenCount: c.TokenCount,
			Metadata:   c.Metadata,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}

	showStats, _ := cmd.Flags().GetBool("stats")
	if showStats {
		report := service.ValidateChunks(chunks, opts)
		stats := chunkStatsOutput{
			ChunkCount: report.Count,
			AvgTokens:  report.AvgTokens,
			MinTokens:  report.MinTokens,
			MaxTokens:  report.MaxTokens,
			Warnings:   report.Warnings,
		}
		for _, c := range chunks {
			stats.TotalTokens += c.TokenCount
		}
		if err := json.NewEncoder(os.Stderr).Encode(stats); err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}
	}

	return nil
}
