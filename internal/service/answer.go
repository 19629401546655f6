package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/clausa-ai/clausa/internal/domain"
)

// CompletionClient defines the interface for language-model calls.
type CompletionClient interface {
	GenerateCompletion(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error)
}

// AnswerOptions tunes one generation request.
type AnswerOptions struct {
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultAnswerOptions keeps generation factual and bounded.
func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{
		Temperature: 0.2,
		MaxTokens:   700,
		Timeout:     30 * time.Second,
	}
}

// AnswerService turns a question plus assembled context into a generated
// answer, wrapping the model call in a per-call timeout and retry with
// exponential backoff.
type AnswerService struct {
	llm   CompletionClient
	retry RetryConfig
	opts  AnswerOptions
}

// NewAnswerService creates an AnswerService with the given policies.
func NewAnswerService(llm CompletionClient, retry RetryConfig, opts AnswerOptions) *AnswerService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAnswerOptions().Timeout
	}
	return &AnswerService{llm: llm, retry: retry, opts: opts}
}

const systemInstructions = `Du bist ein Assistent für Versicherungs- und Rechtsfragen. ` +
	`Beantworte die Frage ausschließlich anhand der nummerierten Auszüge unten. ` +
	`Wenn die Auszüge keine Antwort hergeben, sage das offen. Erfinde keine Inhalte.`

const formatInstructions = `Antworte auf Deutsch, knapp und präzise. ` +
	`Verweise auf die verwendeten Auszüge in der Form [1], [2]. ` +
	`Gib am Ende keine Quellenliste aus.`

// BuildPrompt assembles the structured prompt: fixed system instructions,
// numbered context entries tagged with their source label, the verbatim
// question and output-format instructions. Pure function of its inputs.
func BuildPrompt(question string, contextResults []*domain.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(systemInstructions)
	b.WriteString("\n\n")

	if len(contextResults) == 0 {
		b.WriteString("Es liegen keine Auszüge vor.\n")
	} else {
		b.WriteString("Auszüge:\n")
		for i, r := range contextResults {
			fmt.Fprintf(&b, "[%d] %s:\n%s\n\n", i+1, r.Chunk.SourceLabel(), r.Chunk.Text)
		}
	}

	b.WriteString("Frage: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(formatInstructions)
	return b.String()
}

// Generate builds the prompt and calls the language model under the
// configured timeout and retry discipline. On exhaustion the last error
// propagates; the orchestrator owns graceful degradation.
func (s *AnswerService) Generate(ctx context.Context, question string, contextResults []*domain.RetrievalResult) (string, error) {
	prompt := BuildPrompt(question, contextResults)

	genOpts := domain.GenerationOptions{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}

	retryCfg := s.retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
			log.Printf("llm call failed, retry %d in %v: %v", attempt, delay, err)
		}
	}

	answer, err := Retry(ctx, retryCfg, func(ctx context.Context) (string, error) {
		return CallWithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) (string, error) {
			return s.llm.GenerateCompletion(ctx, prompt, genOpts)
		})
	})
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
