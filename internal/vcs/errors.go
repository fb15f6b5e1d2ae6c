package vcs

import "fmt"

// StorageInitError reports that a repository path exists but does not hold a
// valid shadow repository.
type StorageInitError struct {
	RepoPath string
	Err      error
}

func (e *StorageInitError) Error() string {
	return fmt.Sprintf("initialize checkpoint repository %s: %v", e.RepoPath, e.Err)
}

func (e *StorageInitError) Unwrap() error { return e.Err }

// CommitError reports a staging or commit failure. The repository head is
// unchanged when this is returned.
type CommitError struct {
	RepoPath string
	Err      error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit checkpoint in %s: %v", e.RepoPath, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// UnknownSnapshotError reports a diff or checkout referencing a snapshot id
// that does not exist in the repository.
type UnknownSnapshotError struct {
	RepoPath   string
	SnapshotID string
	Err        error
}

func (e *UnknownSnapshotError) Error() string {
	return fmt.Sprintf("unknown snapshot %q in %s: %v", e.SnapshotID, e.RepoPath, e.Err)
}

func (e *UnknownSnapshotError) Unwrap() error { return e.Err }

// CheckoutError reports a restore failure.
type CheckoutError struct {
	RepoPath   string
	SnapshotID string
	Err        error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout snapshot %q in %s: %v", e.SnapshotID, e.RepoPath, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// DeleteError reports a repository removal failure. A missing repository is
// not an error.
type DeleteError struct {
	RepoPath string
	Err      error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete checkpoint repository %s: %v", e.RepoPath, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
