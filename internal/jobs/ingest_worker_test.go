package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/clausa-ai/clausa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIngestJobRepository is a mock implementation of IngestJobRepository
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockDocumentIngestor is a mock implementation of DocumentIngestor
type MockDocumentIngestor struct {
	mock.Mock
}

func (m *MockDocumentIngestor) IngestDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func TestProcessJobsNoPending(t *testing.T) {
	repo := new(MockIngestJobRepository)
	repo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{}, nil)

	ingestor := new(MockDocumentIngestor)
	worker := NewIngestWorker(repo, ingestor)

	err := worker.ProcessJobs(context.Background())
	require.NoError(t, err)
	ingestor.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
}

func TestProcessJobsSuccess(t *testing.T) {
	job := &domain.IngestJob{ID: "job-1", DocumentID: "doc-1", Status: domain.IngestJobStatusProcessing}

	repo := new(MockIngestJobRepository)
	repo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	repo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	ingestor := new(MockDocumentIngestor)
	ingestor.On("IngestDocument", mock.Anything, "doc-1").Return(nil)

	worker := NewIngestWorker(repo, ingestor)
	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
	ingestor.AssertExpectations(t)
}

func TestProcessJobsFailureRequeues(t *testing.T) {
	job := &domain.IngestJob{ID: "job-1", DocumentID: "doc-1", Retries: 0}

	repo := new(MockIngestJobRepository)
	repo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	repo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusPending, mock.Anything).Return(nil)

	ingestor := new(MockDocumentIngestor)
	ingestor.On("IngestDocument", mock.Anything, "doc-1").Return(errors.New("embedding failed"))

	worker := NewIngestWorker(repo, ingestor)
	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcessJobsExceedsMaxRetries(t *testing.T) {
	job := &domain.IngestJob{ID: "job-1", DocumentID: "doc-1", Retries: MaxRetries - 1}

	repo := new(MockIngestJobRepository)
	repo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
	repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	repo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	ingestor := new(MockDocumentIngestor)
	ingestor.On("IngestDocument", mock.Anything, "doc-1").Return(errors.New("still failing"))

	worker := NewIngestWorker(repo, ingestor)
	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcessJobsFetchError(t *testing.T) {
	repo := new(MockIngestJobRepository)
	repo.On("GetPendingJobs", mock.Anything).Return(nil, errors.New("connection lost"))

	worker := NewIngestWorker(repo, new(MockDocumentIngestor))
	err := worker.ProcessJobs(context.Background())
	assert.Error(t, err)
}

func TestProcessJobsContinuesAfterSingleFailure(t *testing.T) {
	jobs := []*domain.IngestJob{
		{ID: "job-1", DocumentID: "doc-1"},
		{ID: "job-2", DocumentID: "doc-2"},
	}

	repo := new(MockIngestJobRepository)
	repo.On("GetPendingJobs", mock.Anything).Return(jobs, nil)
	repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	repo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusPending, mock.Anything).Return(nil)
	repo.On("UpdateJobStatus", mock.Anything, "job-2", domain.IngestJobStatusCompleted, "").Return(nil)

	ingestor := new(MockDocumentIngestor)
	ingestor.On("IngestDocument", mock.Anything, "doc-1").Return(errors.New("broken document"))
	ingestor.On("IngestDocument", mock.Anything, "doc-2").Return(nil)

	worker := NewIngestWorker(repo, ingestor)
	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
	ingestor.AssertExpectations(t)
}
