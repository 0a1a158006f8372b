package services

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/dkaya/expbench/internal/core/domain"
	"github.com/dkaya/expbench/internal/core/ports"
)

// mockRuntime is a testify mock of ports.ContainerRuntime.
type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Build(ctx context.Context, dir, dockerfile, tag string) (io.ReadCloser, error) {
	args := m.Called(ctx, dir, dockerfile, tag)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockRuntime) Run(ctx context.Context, opts ports.RunOptions) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *mockRuntime) StopAndRemove(ctx context.Context, nameOrID string) (string, error) {
	args := m.Called(ctx, nameOrID)
	return args.String(0), args.Error(1)
}

func (m *mockRuntime) TailLogs(ctx context.Context, nameOrID string) (io.ReadCloser, error) {
	args := m.Called(ctx, nameOrID)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockRuntime) Inspect(ctx context.Context, nameOrID string) (domain.ContainerState, error) {
	args := m.Called(ctx, nameOrID)
	return args.Get(0).(domain.ContainerState), args.Error(1)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url, dir string) error {
	return m.Called(ctx, url, dir).Error(0)
}
