package vcs

import (
	"context"
)

// MockEngine is a mock implementation of the Engine interface for testing.
type MockEngine struct {
	// InitFunc is the mock implementation for Init
	InitFunc func(ctx context.Context, repoPath, workTree string) error

	// StageAndCommitFunc is the mock implementation for StageAndCommit
	StageAndCommitFunc func(ctx context.Context, repoPath, workTree string, relPaths []string) (string, error)

	// DiffFunc is the mock implementation for Diff
	DiffFunc func(ctx context.Context, repoPath, fromID, toID string) ([]DiffRecord, error)

	// CheckoutFunc is the mock implementation for Checkout
	CheckoutFunc func(ctx context.Context, repoPath, workTree, toID string) error

	// RemoveFunc is the mock implementation for Remove
	RemoveFunc func(ctx context.Context, repoPath string) error
}

// Init calls the mock InitFunc if set, otherwise succeeds.
func (m *MockEngine) Init(ctx context.Context, repoPath, workTree string) error {
	if m.InitFunc != nil {
		return m.InitFunc(ctx, repoPath, workTree)
	}
	return nil
}

// StageAndCommit calls the mock StageAndCommitFunc if set, otherwise returns
// a fixed id.
func (m *MockEngine) StageAndCommit(ctx context.Context, repoPath, workTree string, relPaths []string) (string, error) {
	if m.StageAndCommitFunc != nil {
		return m.StageAndCommitFunc(ctx, repoPath, workTree, relPaths)
	}
	return "0000000000000000000000000000000000000000", nil
}

// Diff calls the mock DiffFunc if set, otherwise returns no records.
func (m *MockEngine) Diff(ctx context.Context, repoPath, fromID, toID string) ([]DiffRecord, error) {
	if m.DiffFunc != nil {
		return m.DiffFunc(ctx, repoPath, fromID, toID)
	}
	return nil, nil
}

// Checkout calls the mock CheckoutFunc if set, otherwise succeeds.
func (m *MockEngine) Checkout(ctx context.Context, repoPath, workTree, toID string) error {
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx, repoPath, workTree, toID)
	}
	return nil
}

// Remove calls the mock RemoveFunc if set, otherwise succeeds.
func (m *MockEngine) Remove(ctx context.Context, repoPath string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, repoPath)
	}
	return nil
}
