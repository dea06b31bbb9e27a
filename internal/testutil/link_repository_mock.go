package testutil

import (
	"context"

	"brain-link-tracker/internal/redirect/domain"

	"github.com/stretchr/testify/mock"
)

// MockLinkRepository is a testify mock for the pipeline's link lookup.
type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) FindByLinkID(ctx context.Context, linkID string) (*domain.LinkConfiguration, error) {
	args := m.Called(ctx, linkID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LinkConfiguration), args.Error(1)
}

func (m *MockLinkRepository) Save(ctx context.Context, link *domain.LinkConfiguration) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}
