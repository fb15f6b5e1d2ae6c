// Package registry maps task identifiers to their isolated shadow
// repositories under a global storage root. It is the single authority for
// the naming scheme: every commit, diff, restore and delete call site
// derives the repository location through this package.
package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/codefionn/shadowgit/internal/logger"
	"github.com/codefionn/shadowgit/internal/vcs"
)

// tasksDir is the subdirectory of the storage root holding one repository
// directory per task.
const tasksDir = "tasks"

// maxNamePrefix bounds the readable part of a repository directory name.
const maxNamePrefix = 40

// Handle identifies a task's resolved repository.
type Handle struct {
	TaskID string
	// Dir is the repository's storage directory.
	Dir string
}

// Registry resolves tasks to repositories through a version-control engine.
type Registry struct {
	engine vcs.Engine
}

// New creates a Registry backed by the given engine.
func New(engine vcs.Engine) *Registry {
	return &Registry{engine: engine}
}

// RepoDir deterministically derives the repository directory for a task.
// The same (storageRoot, taskID) pair always yields the same path, and
// distinct task ids never collide: the directory name is a sanitized,
// length-bounded prefix of the id plus the xxhash of the full id.
func RepoDir(storageRoot, taskID string) string {
	return filepath.Join(storageRoot, tasksDir, dirName(taskID))
}

// dirName turns an opaque task id into a filesystem-safe directory name.
func dirName(taskID string) string {
	sum := xxhash.Sum64String(taskID)

	var b strings.Builder
	for _, r := range taskID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
		if b.Len() >= maxNamePrefix {
			break
		}
	}

	prefix := b.String()
	if prefix == "" {
		return fmt.Sprintf("%016x", sum)
	}
	return fmt.Sprintf("%s-%016x", prefix, sum)
}

// Resolve returns the task's repository handle, lazily creating the
// repository on first use. Resolving an existing repository reuses it:
// history is never reset, only the work-tree binding is refreshed.
func (r *Registry) Resolve(ctx context.Context, storageRoot, taskID, workTree string) (Handle, error) {
	dir := RepoDir(storageRoot, taskID)

	if err := r.engine.Init(ctx, dir, workTree); err != nil {
		return Handle{}, fmt.Errorf("resolve repository for task %q: %w", taskID, err)
	}

	logger.Global().Debug("registry: task %q -> %s", taskID, dir)
	return Handle{TaskID: taskID, Dir: dir}, nil
}
