package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"certflow/internal/domain"
	"certflow/internal/port"
)

// MockCertificateRepo is a mock implementation of port.CertificateRepository.
type MockCertificateRepo struct {
	mock.Mock
}

func (m *MockCertificateRepo) GetByID(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.Certificate, error) {
	args := m.Called(ctx, orgID, certificateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Certificate), args.Error(1)
}

func (m *MockCertificateRepo) GetOwner(ctx context.Context, certificateID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, certificateID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockCertificateRepo) ListByProperty(ctx context.Context, orgID, propertyID uuid.UUID) ([]domain.Certificate, error) {
	args := m.Called(ctx, orgID, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Certificate), args.Error(1)
}

func (m *MockCertificateRepo) ApplyExtraction(ctx context.Context, orgID, certificateID uuid.UUID, ext port.CertificateExtraction) error {
	args := m.Called(ctx, orgID, certificateID, ext)
	return args.Error(0)
}

// MockExtractionRunRepo is a mock implementation of port.ExtractionRunRepository.
type MockExtractionRunRepo struct {
	mock.Mock
}

func (m *MockExtractionRunRepo) Create(ctx context.Context, run *domain.ExtractionRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockExtractionRunRepo) GetByID(ctx context.Context, orgID, runID uuid.UUID) (*domain.ExtractionRun, error) {
	args := m.Called(ctx, orgID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionRun), args.Error(1)
}

func (m *MockExtractionRunRepo) GetOwner(ctx context.Context, runID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockExtractionRunRepo) GetLatestByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error) {
	args := m.Called(ctx, orgID, certificateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionRun), args.Error(1)
}

func (m *MockExtractionRunRepo) Transition(ctx context.Context, run *domain.ExtractionRun, from domain.RunStatus) error {
	args := m.Called(ctx, run, from)
	return args.Error(0)
}

func (m *MockExtractionRunRepo) CommitAttempt(ctx context.Context, run *domain.ExtractionRun, from domain.RunStatus, att *domain.TierAttempt) error {
	args := m.Called(ctx, run, from, att)
	if fn, ok := args.Get(0).(func(context.Context, *domain.ExtractionRun, domain.RunStatus, *domain.TierAttempt) error); ok {
		return fn(ctx, run, from, att)
	}
	return args.Error(0)
}

func (m *MockExtractionRunRepo) ClaimPending(ctx context.Context, limit int) ([]domain.ExtractionRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExtractionRun), args.Error(1)
}

func (m *MockExtractionRunRepo) SupersedeByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orgID, certificateID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExtractionRunRepo) SweepStale(ctx context.Context, statuses []domain.RunStatus, before time.Time, reason string) ([]domain.ExtractionRun, error) {
	args := m.Called(ctx, statuses, before, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExtractionRun), args.Error(1)
}

func (m *MockExtractionRunRepo) CountByTypeSince(ctx context.Context, orgID uuid.UUID, since time.Time) (map[domain.CertificateType]int, error) {
	args := m.Called(ctx, orgID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.CertificateType]int), args.Error(1)
}

// MockTierAttemptRepo is a mock implementation of port.TierAttemptRepository.
type MockTierAttemptRepo struct {
	mock.Mock
}

func (m *MockTierAttemptRepo) Append(ctx context.Context, attempt *domain.TierAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockTierAttemptRepo) ListByRun(ctx context.Context, orgID, runID uuid.UUID) ([]domain.TierAttempt, error) {
	args := m.Called(ctx, orgID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TierAttempt), args.Error(1)
}

// MockHumanReviewRepo is a mock implementation of port.HumanReviewRepository.
type MockHumanReviewRepo struct {
	mock.Mock
}

func (m *MockHumanReviewRepo) Create(ctx context.Context, review *domain.HumanReview) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockHumanReviewRepo) GetByID(ctx context.Context, orgID, reviewID uuid.UUID) (*domain.HumanReview, error) {
	args := m.Called(ctx, orgID, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HumanReview), args.Error(1)
}

func (m *MockHumanReviewRepo) ListPending(ctx context.Context, orgID uuid.UUID, offset, limit int) ([]domain.HumanReview, int, error) {
	args := m.Called(ctx, orgID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.HumanReview), args.Int(1), args.Error(2)
}

func (m *MockHumanReviewRepo) ListByRun(ctx context.Context, orgID, runID uuid.UUID) ([]domain.HumanReview, error) {
	args := m.Called(ctx, orgID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HumanReview), args.Error(1)
}

func (m *MockHumanReviewRepo) Claim(ctx context.Context, orgID, reviewID, reviewerID uuid.UUID) (*domain.HumanReview, error) {
	args := m.Called(ctx, orgID, reviewID, reviewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HumanReview), args.Error(1)
}

func (m *MockHumanReviewRepo) Complete(ctx context.Context, review *domain.HumanReview) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockHumanReviewRepo) ListRejectedSince(ctx context.Context, orgID uuid.UUID, since time.Time) ([]port.ReviewRejection, error) {
	args := m.Called(ctx, orgID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.ReviewRejection), args.Error(1)
}

// MockValidationRuleRepo is a mock implementation of port.ValidationRuleRepository.
type MockValidationRuleRepo struct {
	mock.Mock
}

func (m *MockValidationRuleRepo) Create(ctx context.Context, rule *domain.ValidationRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockValidationRuleRepo) GetByID(ctx context.Context, orgID, ruleID uuid.UUID) (*domain.ValidationRule, error) {
	args := m.Called(ctx, orgID, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ValidationRule), args.Error(1)
}

func (m *MockValidationRuleRepo) ListActive(ctx context.Context, orgID uuid.UUID, certType domain.CertificateType) ([]domain.ValidationRule, error) {
	args := m.Called(ctx, orgID, certType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ValidationRule), args.Error(1)
}

func (m *MockValidationRuleRepo) ListBuiltinKeys(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockValidationRuleRepo) Update(ctx context.Context, rule *domain.ValidationRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}
