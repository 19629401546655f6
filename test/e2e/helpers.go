//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/clausa-ai/clausa/internal/api/handlers"
	"github.com/clausa-ai/clausa/internal/cache"
	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/clausa-ai/clausa/internal/jobs"
	"github.com/clausa-ai/clausa/internal/openai"
	"github.com/clausa-ai/clausa/internal/repository"
	"github.com/clausa-ai/clausa/internal/server"
	"github.com/clausa-ai/clausa/internal/service"
	"github.com/clausa-ai/clausa/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Worker       *jobs.Worker
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a database container,
// the ingest worker and an in-process HTTP server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, worker := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		Worker:       worker,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Worker != nil {
		e.Worker.Stop()
	}
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// CreateDocument posts a document and returns its ID
func (e *E2ETestEnv) CreateDocument(insurerID, text, title, category string) string {
	resp, err := e.Post("/v1/documents", map[string]interface{}{
		"insurerId": insurerID,
		"text":      text,
		"metadata": map[string]string{
			"title":    title,
			"category": category,
		},
	})
	if err != nil {
		e.T.Fatalf("failed to create document: %v", err)
	}

	var created struct {
		DocumentID string `json:"documentId"`
		JobID      string `json:"jobId"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		e.T.Fatalf("failed to parse create response: %v", err)
	}
	if created.DocumentID == "" {
		e.T.Fatal("create response carried no document ID")
	}
	return created.DocumentID
}

// WaitForIngest polls the document endpoint until the background worker has
// produced chunks for it
func (e *E2ETestEnv) WaitForIngest(documentID string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/v1/documents/" + documentID)
		if err == nil {
			var doc struct {
				ChunkCount int `json:"chunkCount"`
			}
			if json.Unmarshal(resp.Data, &doc) == nil && doc.ChunkCount > 0 {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("document %s was not ingested within %v", documentID, timeout)
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if len(respBody) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// scriptedCompletionClient stands in for the chat API so E2E runs need no
// key. It echoes a fixed German answer citing the first excerpt.
type scriptedCompletionClient struct{}

func (c *scriptedCompletionClient) GenerateCompletion(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	if prompt == "" {
		return "", openai.ErrEmptyText
	}
	return "Laut den vorliegenden Auszügen [1] gelten die dort genannten Bedingungen.", nil
}

// startServer wires the full pipeline against the test database and starts
// the HTTP server plus the ingest worker
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func(), *jobs.Worker) {
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)

	// No API key: embeddings come from the deterministic fallback.
	openaiClient := openai.NewClientWithConfig(openai.Config{})

	embeddingSvc := service.NewEmbeddingService(openaiClient, 16, 0)
	retrieverSvc := service.NewRetrieverService(chunkRepo, service.NewReferenceSet(nil))
	answerSvc := service.NewAnswerService(&scriptedCompletionClient{}, service.RetryConfig{
		MaxRetries:   1,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}, service.AnswerOptions{
		Temperature: 0.2,
		MaxTokens:   700,
		Timeout:     5 * time.Second,
	})

	pipelineSvc := service.NewPipelineService(embeddingSvc, retrieverSvc, answerSvc, cache.NewMemory(), service.PipelineConfig{
		CacheTTL:   time.Minute,
		MaxResults: 5,
	}).WithRecorder(queryLogRepo)

	ingestSvc := service.NewIngestService(docRepo, chunkRepo, embeddingSvc, nil, service.DefaultChunkOptions())

	worker := jobs.NewWorker(jobs.NewIngestWorker(jobRepo, ingestSvc), 100*time.Millisecond)
	go worker.Start(context.Background())

	router := server.NewRouter(server.RouterConfig{
		QueryHandler:    handlers.NewQueryHandler(pipelineSvc),
		DocumentHandler: handlers.NewDocumentHandler(docRepo, jobRepo, chunkRepo),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, worker
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
