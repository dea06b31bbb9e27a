package testutil

import (
	"context"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/stretchr/testify/mock"
)

// MockDaprClient is a testify mock for the Dapr client methods the
// event publisher uses: PublishEvent and Close.
type MockDaprClient struct {
	mock.Mock
}

func (m *MockDaprClient) PublishEvent(ctx context.Context, pubsubName, topicName string, data interface{}, opts ...dapr.PublishEventOption) error {
	args := m.Called(ctx, pubsubName, topicName, data)
	return args.Error(0)
}

func (m *MockDaprClient) Close() {
	m.Called()
}
