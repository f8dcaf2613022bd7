package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"certflow/internal/tier/vision"
)

// MockVisionProvider is a mock implementation of vision.Provider.
type MockVisionProvider struct {
	mock.Mock
}

func (m *MockVisionProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockVisionProvider) Complete(ctx context.Context, req vision.Request) (*vision.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vision.Response), args.Error(1)
}
