package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
	"certflow/internal/pattern"
)

// MockPatternAnalyzer is a mock implementation of pattern.Analyzer.
type MockPatternAnalyzer struct {
	mock.Mock
}

func (m *MockPatternAnalyzer) Run(ctx context.Context, orgID uuid.UUID) (*pattern.Report, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pattern.Report), args.Error(1)
}

func (m *MockPatternAnalyzer) List(ctx context.Context, orgID uuid.UUID, status *domain.SuggestionStatus) ([]domain.Suggestion, error) {
	args := m.Called(ctx, orgID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Suggestion), args.Error(1)
}

func (m *MockPatternAnalyzer) suggestion(args mock.Arguments) (*domain.Suggestion, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Suggestion), args.Error(1)
}

func (m *MockPatternAnalyzer) StartWork(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error) {
	return m.suggestion(m.Called(ctx, orgID, suggestionID))
}

func (m *MockPatternAnalyzer) Resolve(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error) {
	return m.suggestion(m.Called(ctx, orgID, suggestionID))
}

func (m *MockPatternAnalyzer) Dismiss(ctx context.Context, orgID, suggestionID uuid.UUID, reason string) (*domain.Suggestion, error) {
	return m.suggestion(m.Called(ctx, orgID, suggestionID, reason))
}
