// Package vcs wraps the external version-control engine behind the Engine
// interface. The production implementation shells out to the git CLI and
// keeps each task's history in a "shadow" repository: a git dir stored under
// the checkpoint storage root whose work-tree is the live workspace, so the
// workspace itself never gains version-control metadata.
package vcs

import (
	"context"
)

// Engine is the version-control engine consumed by the checkpoint core.
// Implementations must be safe for use across distinct repositories; calls
// against one repository are serialized by the caller.
type Engine interface {
	// Init binds repoPath to workTree, creating a new empty shadow
	// repository if none exists. Re-initializing an existing repository is
	// idempotent: history is preserved and the work-tree binding is
	// refreshed. Returns *StorageInitError if repoPath holds something that
	// is not a shadow repository.
	Init(ctx context.Context, repoPath, workTree string) error

	// StageAndCommit stages exactly relPaths (paths relative to workTree,
	// slash-separated) and records a new snapshot as a child of the current
	// head. Content identical to the head still produces a fresh snapshot
	// id. Returns the new snapshot id, or *CommitError; a failed call
	// leaves the head unmoved.
	StageAndCommit(ctx context.Context, repoPath, workTree string, relPaths []string) (string, error)

	// Diff returns the records for paths whose content differs between two
	// snapshots of this repository, ordered by path. Returns
	// *UnknownSnapshotError if either id is not present.
	Diff(ctx context.Context, repoPath, fromID, toID string) ([]DiffRecord, error)

	// Checkout destructively restores the work-tree's tracked files to the
	// snapshot toID and moves the head there. Files never staged into the
	// repository are left untouched. Snapshots recorded after toID remain
	// addressable by id. Returns *UnknownSnapshotError or *CheckoutError.
	Checkout(ctx context.Context, repoPath, workTree, toID string) error

	// Remove irrecoverably deletes the repository's storage. Removing a
	// nonexistent repository is a no-op. Returns *DeleteError on I/O
	// failure.
	Remove(ctx context.Context, repoPath string) error
}

// DiffRecord describes one path that differs between two snapshots.
// BeforeMissing marks an added file, AfterMissing a deleted one; with both
// false the file was modified.
type DiffRecord struct {
	// RelPath is the slash-separated path relative to the work-tree root.
	RelPath string

	// Before is the file content in the "from" snapshot. Empty when
	// BeforeMissing is set.
	Before []byte

	// After is the file content in the "to" snapshot. Empty when
	// AfterMissing is set.
	After []byte

	BeforeMissing bool
	AfterMissing  bool
}
