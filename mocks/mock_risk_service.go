package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
	"certflow/internal/risk"
)

// MockRiskService is a mock implementation of risk.Service.
type MockRiskService struct {
	mock.Mock
}

func (m *MockRiskService) Predict(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.RiskPrediction, error) {
	args := m.Called(ctx, orgID, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskPrediction), args.Error(1)
}

func (m *MockRiskService) PredictBulk(ctx context.Context, orgID uuid.UUID, propertyIDs []uuid.UUID, limit int) (*risk.BulkResult, error) {
	args := m.Called(ctx, orgID, propertyIDs, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.BulkResult), args.Error(1)
}

func (m *MockRiskService) SubmitFeedback(ctx context.Context, orgID, userID uuid.UUID, items []risk.FeedbackInput) (*risk.FeedbackResult, error) {
	args := m.Called(ctx, orgID, userID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.FeedbackResult), args.Error(1)
}

func (m *MockRiskService) Train(ctx context.Context, orgID uuid.UUID, hp domain.Hyperparameters) (*risk.TrainResult, error) {
	args := m.Called(ctx, orgID, hp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.TrainResult), args.Error(1)
}

func (m *MockRiskService) Benchmark(ctx context.Context, orgID, modelID uuid.UUID) (*risk.BenchmarkResult, error) {
	args := m.Called(ctx, orgID, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.BenchmarkResult), args.Error(1)
}

func (m *MockRiskService) Promote(ctx context.Context, orgID, modelID uuid.UUID) (*domain.RiskModel, error) {
	args := m.Called(ctx, orgID, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskModel), args.Error(1)
}

func (m *MockRiskService) RescoreLatest(ctx context.Context, orgID uuid.UUID, limit int) (*risk.BulkResult, error) {
	args := m.Called(ctx, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.BulkResult), args.Error(1)
}

func (m *MockRiskService) ActiveModel(ctx context.Context, orgID uuid.UUID) (*domain.RiskModel, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskModel), args.Error(1)
}

func (m *MockRiskService) TrainingRuns(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.TrainingRun, error) {
	args := m.Called(ctx, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TrainingRun), args.Error(1)
}
