package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
	"certflow/internal/service"
)

// MockCorrectionService is a mock implementation of service.CorrectionService.
type MockCorrectionService struct {
	mock.Mock
}

func (m *MockCorrectionService) RecordCorrections(ctx context.Context, orgID, userID, targetID uuid.UUID, items []service.CorrectionInput) (*service.RecordCorrectionsResult, error) {
	args := m.Called(ctx, orgID, userID, targetID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecordCorrectionsResult), args.Error(1)
}

func (m *MockCorrectionService) ListByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) ([]domain.Correction, error) {
	args := m.Called(ctx, orgID, certificateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Correction), args.Error(1)
}

// MockReviewService is a mock implementation of service.ReviewService.
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) ListPending(ctx context.Context, orgID uuid.UUID, offset, limit int) ([]domain.HumanReview, int, error) {
	args := m.Called(ctx, orgID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.HumanReview), args.Int(1), args.Error(2)
}

func (m *MockReviewService) Claim(ctx context.Context, orgID, reviewID, reviewerID uuid.UUID) (*domain.HumanReview, error) {
	args := m.Called(ctx, orgID, reviewID, reviewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HumanReview), args.Error(1)
}

func (m *MockReviewService) Decide(ctx context.Context, input *service.DecideInput) (*service.DecideResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DecideResult), args.Error(1)
}
