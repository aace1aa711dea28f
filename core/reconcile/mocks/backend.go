package mocks

import (
	"context"

	"kv-reconciler/core/reconcile"

	"github.com/stretchr/testify/mock"
)

// Backend is a mock implementation of reconcile.Backend
type Backend struct {
	mock.Mock
}

func (m *Backend) Read(ctx context.Context, key string) (reconcile.ObservedState, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(reconcile.ObservedState), args.Error(1)
}

func (m *Backend) Write(ctx context.Context, key, value string, expected reconcile.Token) (bool, error) {
	args := m.Called(ctx, key, value, expected)
	return args.Bool(0), args.Error(1)
}

func (m *Backend) Remove(ctx context.Context, key string, expected reconcile.Token) (bool, error) {
	args := m.Called(ctx, key, expected)
	return args.Bool(0), args.Error(1)
}
