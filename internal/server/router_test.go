package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clausa-ai/clausa/internal/api/handlers"
	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Run(ctx context.Context, query domain.Query) (*domain.PipelineResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineResult), args.Error(1)
}

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockIngestJobStore struct {
	mock.Mock
}

func (m *MockIngestJobStore) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type MockChunkLister struct {
	mock.Mock
}

func (m *MockChunkLister) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Chunk), args.Error(1)
}

func setupRouter() (http.Handler, *MockQueryService, *MockDocumentStore) {
	querySvc := new(MockQueryService)
	docs := new(MockDocumentStore)
	jobs := new(MockIngestJobStore)
	chunks := new(MockChunkLister)

	cfg := RouterConfig{
		QueryHandler:    handlers.NewQueryHandler(querySvc),
		DocumentHandler: handlers.NewDocumentHandler(docs, jobs, chunks),
	}

	return NewRouter(cfg), querySvc, docs
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_QueryRoute(t *testing.T) {
	router, querySvc, _ := setupRouter()

	querySvc.On("Run", mock.Anything, mock.MatchedBy(func(q domain.Query) bool {
		return q.Text == "Frage?"
	})).Return(&domain.PipelineResult{Answer: "Antwort.", Strategy: "vector"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"Frage?"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	querySvc.AssertExpectations(t)
}

func TestRouter_DocumentRoutesWired(t *testing.T) {
	router, _, docs := setupRouter()

	docs.On("Delete", mock.Anything, "doc-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	docs.AssertExpectations(t)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_BodyLimit(t *testing.T) {
	router, _, _ := setupRouter()

	oversized := `{"question":"` + strings.Repeat("a", 6*1024*1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(oversized))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
