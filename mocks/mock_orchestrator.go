package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
	"certflow/internal/extraction"
)

// MockOrchestrator is a mock implementation of extraction.Orchestrator.
type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) Start(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error) {
	args := m.Called(ctx, orgID, certificateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionRun), args.Error(1)
}

func (m *MockOrchestrator) Process(ctx context.Context, run *domain.ExtractionRun) (*domain.ExtractionRun, error) {
	args := m.Called(ctx, run)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionRun), args.Error(1)
}

func (m *MockOrchestrator) Run(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error) {
	args := m.Called(ctx, orgID, certificateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionRun), args.Error(1)
}

func (m *MockOrchestrator) CompleteReview(ctx context.Context, input *extraction.ReviewDecisionInput) (*domain.ExtractionRun, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionRun), args.Error(1)
}

func (m *MockOrchestrator) Supersede(ctx context.Context, orgID, certificateID uuid.UUID) (int, error) {
	args := m.Called(ctx, orgID, certificateID)
	return args.Int(0), args.Error(1)
}

func (m *MockOrchestrator) GoldenThread(ctx context.Context, orgID, runID uuid.UUID) ([]domain.TierAttempt, error) {
	args := m.Called(ctx, orgID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TierAttempt), args.Error(1)
}
