package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/signup-notifier/internal/dispatch"
	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

// MockScheduler is a mock implementation of dispatch.Scheduler.
type MockScheduler struct {
	mock.Mock
}

//nolint:revive
func (m *MockScheduler) Schedule(msg notification.OutboundMessage) (string, error) {
	args := m.Called(msg)
	return args.String(0), args.Error(1)
}

//nolint:revive
func (m *MockScheduler) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

//nolint:revive
func (m *MockScheduler) Close() {
	m.Called()
}

//nolint:revive
func (m *MockScheduler) Stats() dispatch.Stats {
	args := m.Called()
	return args.Get(0).(dispatch.Stats)
}
