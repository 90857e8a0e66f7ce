package sessionmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/session"
)

// MockDialer is a mock implementation of session.Dialer.
type MockDialer struct {
	mock.Mock
}

// Dial provides a mock function with given fields: ctx, target.
func (m *MockDialer) Dial(ctx context.Context, target model.Target) (session.Conn, error) {
	args := m.Called(ctx, target)

	var conn session.Conn
	if fn, ok := args.Get(0).(func(context.Context, model.Target) (session.Conn, error)); ok {
		return fn(ctx, target)
	}
	if v := args.Get(0); v != nil {
		conn = v.(session.Conn)
	}
	return conn, args.Error(1)
}

// MockConn is a mock implementation of session.Conn.
type MockConn struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, command.
func (m *MockConn) Run(ctx context.Context, command string) (model.CommandOutput, error) {
	args := m.Called(ctx, command)
	if fn, ok := args.Get(0).(func(context.Context, string) (model.CommandOutput, error)); ok {
		return fn(ctx, command)
	}
	return args.Get(0).(model.CommandOutput), args.Error(1)
}

// Close provides a mock function.
func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockUploader is a mock implementation of session.Uploader.
type MockUploader struct {
	mock.Mock
}

// Upload provides a mock function with given fields: ctx, target, srcLocal.
func (m *MockUploader) Upload(ctx context.Context, target model.Target, srcLocal string) error {
	args := m.Called(ctx, target, srcLocal)
	return args.Error(0)
}

var (
	_ session.Dialer   = &MockDialer{}
	_ session.Conn     = &MockConn{}
	_ session.Uploader = &MockUploader{}
)
