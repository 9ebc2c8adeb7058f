// Package mocks provides testify mocks for event handlers shared across
// package tests.
package mocks

import (
	"github.com/brettbedarf/shellstore/operations"
	"github.com/brettbedarf/shellstore/watcher"
	"github.com/stretchr/testify/mock"
)

// MockEventHandler records watcher events.
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ev watcher.Event) {
	args := m.Called(ev)

	// Handle function return types (for tests that act from inside the handler)
	if len(args) > 0 {
		if fn, ok := args.Get(0).(func(watcher.Event)); ok {
			fn(ev)
		}
	}
}

var _ watcher.Handler = (&MockEventHandler{}).Handle

// MockOperationHandler records engine events and can decide pre events.
type MockOperationHandler struct {
	mock.Mock
}

func (m *MockOperationHandler) Handle(ev *operations.Event) {
	args := m.Called(ev)

	// Handle function return types (for skip and abort decisions)
	if len(args) > 0 {
		if fn, ok := args.Get(0).(func(*operations.Event)); ok {
			fn(ev)
		}
	}
}

var _ operations.Handler = (&MockOperationHandler{}).Handle
