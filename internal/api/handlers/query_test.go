package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

func newTestResult() *domain.PipelineResult {
	return &domain.PipelineResult{
		Answer: "Die Frist beträgt zwei Wochen.",
		Sources: []*domain.RetrievalResult{
			{
				Chunk: domain.Chunk{
					DocumentID: "doc-1",
					Index:      2,
					Text:       "Der Versicherungsnehmer kann innerhalb von zwei Wochen widerrufen.",
					Metadata:   domain.DocumentMetadata{Title: "AVB Hausrat", Section: "§ 8"},
				},
				Similarity: 0.82,
			},
		},
		Strategy: "vector",
		Timings:  domain.StageTimings{EmbedMs: 12, SearchMs: 8, LLMMs: 430, TotalMs: 450},
	}
}

func TestQueryHandler_Ask_Success(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Run", mock.Anything, mock.MatchedBy(func(q domain.Query) bool {
		return q.Text == "Wie lange ist die Widerrufsfrist?" && q.Filters.Category == "hausrat"
	})).Return(newTestResult(), nil)

	body := `{"question":"Wie lange ist die Widerrufsfrist?","category":"hausrat"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Die Frist beträgt zwei Wochen.", data["answer"])
	assert.Equal(t, "vector", data["strategy"])
	sources := data["sources"].([]interface{})
	require.Len(t, sources, 1)
	source := sources[0].(map[string]interface{})
	assert.Equal(t, "doc-1", source["documentId"])
	assert.Equal(t, "§ 8", source["section"])
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Ask_ForwardsOverrides(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Run", mock.Anything, mock.MatchedBy(func(q domain.Query) bool {
		return q.Threshold == 0.7 && q.MaxResults == 3 && q.Filters.InsurerID == "ins-9"
	})).Return(newTestResult(), nil)

	body := `{"question":"Frage?","insurerId":"ins-9","threshold":0.7,"maxResults":3}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Ask_InvalidBody(t *testing.T) {
	handler := NewQueryHandler(new(MockQueryService))

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryHandler_Ask_ValidationError(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Run", mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyQuestion)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":""}`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "question cannot be empty")
}

func TestQueryHandler_Ask_RetrievalExhausted(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Run", mock.Anything, mock.Anything).Return(nil, domain.ErrRetrievalExhausted)

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"Frage?"}`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
