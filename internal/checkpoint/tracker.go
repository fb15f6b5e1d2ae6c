// Package checkpoint orchestrates per-task workspace checkpointing. A
// Tracker binds one task to its isolated shadow repository and to one
// workspace directory; through it the caller commits snapshots, computes
// diff sets between snapshots, and destructively restores the workspace to
// a prior snapshot. Histories of different tasks never interfere, even when
// they target the same workspace directory at different times.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/codefionn/shadowgit/internal/ignore"
	"github.com/codefionn/shadowgit/internal/lockfile"
	"github.com/codefionn/shadowgit/internal/logger"
	"github.com/codefionn/shadowgit/internal/registry"
	"github.com/codefionn/shadowgit/internal/vcs"
)

// ErrWorkspaceLocked is returned by Open when another live tracker already
// holds the workspace.
var ErrWorkspaceLocked = errors.New("workspace is tracked by another checkpoint tracker")

// ErrUnsafeWorkspace is returned by Open for workspace roots that must never
// be checkpointed wholesale.
var ErrUnsafeWorkspace = errors.New("refusing to track unsafe workspace root")

// locksDir is the subdirectory of the storage root holding workspace locks.
const locksDir = "locks"

// HistoryItem is the externally persisted record associating a task with the
// workspace it was bound to. Only deletion consumes it; the workspace path
// is diagnostic (the registry alone locates the repository).
type HistoryItem struct {
	TaskID        string
	WorkspacePath string
}

// Options configures Open.
type Options struct {
	// TaskID identifies the task whose history the tracker manages.
	TaskID string

	// WorkspacePath is the directory tree being checkpointed.
	WorkspacePath string

	// StorageRoot is the global directory under which every task's
	// repository lives.
	StorageRoot string

	// IgnorePatterns are gitignore-style exclusion patterns, fixed for the
	// tracker's lifetime. The eligible file set itself is recomputed on
	// every Commit.
	IgnorePatterns []string

	// Engine overrides the version-control engine; nil selects the git CLI
	// engine.
	Engine vcs.Engine
}

// Tracker is the per-task checkpoint orchestrator. Callers serialize calls
// to a given tracker; distinct trackers for distinct tasks are independent.
type Tracker struct {
	taskID    string
	workspace string
	repoDir   string
	matcher   *ignore.Matcher
	engine    vcs.Engine
	lock      *lockfile.Lockfile
	log       *logger.Logger
}

// Open binds a tracker to a task and workspace, resolving (and lazily
// creating) the task's repository. It returns (nil, nil) when tracking
// preconditions are not met — empty task id, or a workspace that does not
// exist — which callers must treat as a valid "no tracker" outcome.
//
// At most one live tracker may hold a workspace; a second Open fails with
// ErrWorkspaceLocked until the first is closed.
func Open(ctx context.Context, opts Options) (*Tracker, error) {
	if opts.TaskID == "" {
		return nil, nil
	}
	if opts.StorageRoot == "" {
		return nil, errors.New("checkpoint: storage root is required")
	}
	// Engine commands run from the workspace, so the storage root must not
	// be interpreted relative to it.
	storageRoot, err := filepath.Abs(opts.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: resolve storage root: %w", err)
	}

	workspace, err := filepath.Abs(opts.WorkspacePath)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: resolve workspace path: %w", err)
	}
	info, err := os.Stat(workspace)
	if err != nil || !info.IsDir() {
		// No workspace to track yet
		return nil, nil
	}
	if err := checkWorkspaceSafe(workspace); err != nil {
		return nil, err
	}

	matcher, err := ignore.CompilePatterns(opts.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	engine := opts.Engine
	if engine == nil {
		engine = vcs.NewGit()
	}

	lock := lockfile.New(workspaceLockPath(storageRoot, workspace))
	if err := lock.TryAcquire(); err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			return nil, fmt.Errorf("%w: %s", ErrWorkspaceLocked, workspace)
		}
		return nil, fmt.Errorf("checkpoint: lock workspace: %w", err)
	}

	handle, err := registry.New(engine).Resolve(ctx, storageRoot, opts.TaskID, workspace)
	if err != nil {
		lock.Release()
		return nil, err
	}

	t := &Tracker{
		taskID:    opts.TaskID,
		workspace: workspace,
		repoDir:   handle.Dir,
		matcher:   matcher,
		engine:    engine,
		lock:      lock,
		log:       logger.Global().WithPrefix("checkpoint"),
	}
	t.log.Info("tracking task %q in %s (repo %s)", opts.TaskID, workspace, handle.Dir)
	return t, nil
}

// checkWorkspaceSafe rejects roots whose snapshot would walk far beyond any
// sane workspace.
func checkWorkspaceSafe(workspace string) error {
	if workspace == string(filepath.Separator) {
		return fmt.Errorf("%w: %s", ErrUnsafeWorkspace, workspace)
	}
	if home, err := os.UserHomeDir(); err == nil && workspace == filepath.Clean(home) {
		return fmt.Errorf("%w: %s", ErrUnsafeWorkspace, workspace)
	}
	return nil
}

// workspaceLockPath derives the advisory lock location for a workspace.
func workspaceLockPath(storageRoot, workspace string) string {
	return filepath.Join(storageRoot, locksDir, fmt.Sprintf("%016x.lock", xxhash.Sum64String(workspace)))
}

// Close releases the tracker's workspace lock. The task's repository and
// history are untouched.
func (t *Tracker) Close() error {
	return t.lock.Release()
}

// TaskID returns the task the tracker is bound to.
func (t *Tracker) TaskID() string {
	return t.taskID
}

// Workspace returns the workspace directory the tracker is bound to.
func (t *Tracker) Workspace() string {
	return t.workspace
}

// Commit snapshots the current filtered workspace state and returns the new
// snapshot id. The id is immediately valid for DiffSet and ResetHead against
// this task. Unchanged content still yields a fresh id.
func (t *Tracker) Commit(ctx context.Context) (string, error) {
	files, err := ignore.EligibleFiles(t.workspace, t.matcher)
	if err != nil {
		return "", &vcs.CommitError{RepoPath: t.repoDir, Err: fmt.Errorf("walk workspace: %w", err)}
	}

	id, err := t.engine.StageAndCommit(ctx, t.repoDir, t.workspace, files)
	if err != nil {
		return "", err
	}

	t.log.Debug("task %q: snapshot %s (%d files)", t.taskID, id, len(files))
	return id, nil
}

// DiffSet returns the ordered records for the filtered paths whose content
// differs between two snapshots of this task's repository. Cross-task ids
// are not supported and fail as unknown snapshots.
func (t *Tracker) DiffSet(ctx context.Context, fromID, toID string) ([]vcs.DiffRecord, error) {
	return t.engine.Diff(ctx, t.repoDir, fromID, toID)
}

// ResetHead destructively restores the workspace's filtered content to the
// snapshot toID and moves the head there. Snapshots recorded after toID stay
// addressable; new commits build from the restored point.
func (t *Tracker) ResetHead(ctx context.Context, toID string) error {
	if err := t.engine.Checkout(ctx, t.repoDir, t.workspace, toID); err != nil {
		return err
	}
	t.log.Info("task %q: head reset to %s", t.taskID, toID)
	return nil
}

// DeleteCheckpoints permanently erases the task's entire snapshot history.
// It is static: no live tracker is required, any live tracker for the task
// is ignored, and deleting a task with no repository succeeds. A later Open
// for the same task id starts a brand-new, empty repository.
func DeleteCheckpoints(ctx context.Context, taskID string, item HistoryItem, storageRoot string, engine vcs.Engine) error {
	if engine == nil {
		engine = vcs.NewGit()
	}

	if abs, err := filepath.Abs(storageRoot); err == nil {
		storageRoot = abs
	}
	repoDir := registry.RepoDir(storageRoot, taskID)
	logger.Global().Info("checkpoint: deleting history of task %q (repo %s, workspace %s)",
		taskID, repoDir, item.WorkspacePath)

	return engine.Remove(ctx, repoDir)
}
