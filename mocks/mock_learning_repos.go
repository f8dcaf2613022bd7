package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
)

// MockCorrectionRepo is a mock implementation of port.CorrectionRepository.
type MockCorrectionRepo struct {
	mock.Mock
}

func (m *MockCorrectionRepo) Create(ctx context.Context, correction *domain.Correction) error {
	args := m.Called(ctx, correction)
	return args.Error(0)
}

func (m *MockCorrectionRepo) ListByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) ([]domain.Correction, error) {
	args := m.Called(ctx, orgID, certificateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Correction), args.Error(1)
}

func (m *MockCorrectionRepo) ListSince(ctx context.Context, orgID uuid.UUID, since time.Time) ([]domain.Correction, error) {
	args := m.Called(ctx, orgID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Correction), args.Error(1)
}

func (m *MockCorrectionRepo) MarkUsedForImprovement(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error {
	args := m.Called(ctx, orgID, ids)
	return args.Error(0)
}

// MockSuggestionRepo is a mock implementation of port.SuggestionRepository.
type MockSuggestionRepo struct {
	mock.Mock
}

func (m *MockSuggestionRepo) GetByID(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error) {
	args := m.Called(ctx, orgID, suggestionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Suggestion), args.Error(1)
}

func (m *MockSuggestionRepo) GetByKey(ctx context.Context, orgID uuid.UUID, key string) (*domain.Suggestion, error) {
	args := m.Called(ctx, orgID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Suggestion), args.Error(1)
}

func (m *MockSuggestionRepo) Create(ctx context.Context, s *domain.Suggestion) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSuggestionRepo) Update(ctx context.Context, s *domain.Suggestion, from domain.SuggestionStatus) error {
	args := m.Called(ctx, s, from)
	return args.Error(0)
}

func (m *MockSuggestionRepo) List(ctx context.Context, orgID uuid.UUID, status *domain.SuggestionStatus) ([]domain.Suggestion, error) {
	args := m.Called(ctx, orgID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Suggestion), args.Error(1)
}

// MockPropertyRepo is a mock implementation of port.PropertyRepository.
type MockPropertyRepo struct {
	mock.Mock
}

func (m *MockPropertyRepo) GetByID(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.Property, error) {
	args := m.Called(ctx, orgID, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Property), args.Error(1)
}

func (m *MockPropertyRepo) ListIDs(ctx context.Context, orgID uuid.UUID, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockPredictionRepo is a mock implementation of port.PredictionRepository.
type MockPredictionRepo struct {
	mock.Mock
}

func (m *MockPredictionRepo) Create(ctx context.Context, p *domain.RiskPrediction) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPredictionRepo) GetByID(ctx context.Context, orgID, predictionID uuid.UUID) (*domain.RiskPrediction, error) {
	args := m.Called(ctx, orgID, predictionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskPrediction), args.Error(1)
}

func (m *MockPredictionRepo) GetLatest(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.RiskPrediction, error) {
	args := m.Called(ctx, orgID, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskPrediction), args.Error(1)
}

// MockFeedbackRepo is a mock implementation of port.FeedbackRepository.
type MockFeedbackRepo struct {
	mock.Mock
}

func (m *MockFeedbackRepo) Create(ctx context.Context, f *domain.PredictionFeedback) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFeedbackRepo) ListLabeled(ctx context.Context, orgID uuid.UUID) ([]domain.LabeledFeedback, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LabeledFeedback), args.Error(1)
}

func (m *MockFeedbackRepo) MarkUsedInTraining(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error {
	args := m.Called(ctx, orgID, ids)
	return args.Error(0)
}

// MockModelRepo is a mock implementation of port.ModelRepository.
type MockModelRepo struct {
	mock.Mock
}

func (m *MockModelRepo) Create(ctx context.Context, model *domain.RiskModel) error {
	args := m.Called(ctx, model)
	return args.Error(0)
}

func (m *MockModelRepo) GetByID(ctx context.Context, orgID, modelID uuid.UUID) (*domain.RiskModel, error) {
	args := m.Called(ctx, orgID, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskModel), args.Error(1)
}

func (m *MockModelRepo) NextVersion(ctx context.Context, orgID uuid.UUID) (int, error) {
	args := m.Called(ctx, orgID)
	return args.Int(0), args.Error(1)
}

func (m *MockModelRepo) GetActive(ctx context.Context, orgID uuid.UUID) (*domain.RiskModel, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskModel), args.Error(1)
}

func (m *MockModelRepo) SwapActive(ctx context.Context, orgID uuid.UUID, expected *uuid.UUID, next uuid.UUID) error {
	args := m.Called(ctx, orgID, expected, next)
	return args.Error(0)
}

// MockTrainingRunRepo is a mock implementation of port.TrainingRunRepository.
type MockTrainingRunRepo struct {
	mock.Mock
}

func (m *MockTrainingRunRepo) Start(ctx context.Context, run *domain.TrainingRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockTrainingRunRepo) Finish(ctx context.Context, run *domain.TrainingRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockTrainingRunRepo) ListByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.TrainingRun, error) {
	args := m.Called(ctx, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TrainingRun), args.Error(1)
}

func (m *MockTrainingRunRepo) FailStale(ctx context.Context, before time.Time, reason string) ([]domain.TrainingRun, error) {
	args := m.Called(ctx, before, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TrainingRun), args.Error(1)
}
