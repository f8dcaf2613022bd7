package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"certflow/internal/port"
)

// MockTierAdapter is a mock implementation of port.TierAdapter.
type MockTierAdapter struct {
	mock.Mock
}

func (m *MockTierAdapter) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockTierAdapter) Attempt(ctx context.Context, doc port.Document) (*port.TierResult, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.TierResult), args.Error(1)
}
