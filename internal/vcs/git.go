package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/codefionn/shadowgit/internal/logger"
)

// devNull is the name git uses for an absent diff side.
const devNull = "/dev/null"

// Git implements Engine by shelling out to the git CLI. Each repository is a
// shadow repository: the git dir lives at <repoPath>/.git with core.worktree
// pointing at the workspace, so snapshots never touch the workspace's own
// metadata.
type Git struct{}

// NewGit creates a git CLI engine.
func NewGit() *Git {
	return &Git{}
}

func gitDirOf(repoPath string) string {
	return filepath.Join(repoPath, ".git")
}

// git runs a git command bound to the shadow repository. When workTree is
// non-empty the command also binds the work-tree and runs from its root, so
// pathspecs resolve relative to the workspace.
func (g *Git) git(ctx context.Context, repoPath, workTree string, stdin []byte, args ...string) ([]byte, error) {
	full := []string{"--git-dir", gitDirOf(repoPath)}
	dir := repoPath
	if workTree != "" {
		full = append(full, "--work-tree", workTree)
		dir = workTree
	}
	full = append(full, args...)

	logger.Global().Debug("vcs: git %v (dir=%s)", args, dir)

	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return out, nil
}

// Init implements Engine.
func (g *Git) Init(ctx context.Context, repoPath, workTree string) error {
	gitDir := gitDirOf(repoPath)

	if _, err := os.Stat(gitDir); err == nil {
		// Existing repository: validate it, then refresh the work-tree
		// binding without touching history.
		if _, err := g.git(ctx, repoPath, "", nil, "rev-parse", "--git-dir"); err != nil {
			return &StorageInitError{RepoPath: repoPath, Err: err}
		}
		if _, err := g.git(ctx, repoPath, "", nil, "config", "core.worktree", workTree); err != nil {
			return &StorageInitError{RepoPath: repoPath, Err: err}
		}
		logger.Global().Debug("vcs: reusing shadow repository at %s", repoPath)
		return nil
	} else if !os.IsNotExist(err) {
		return &StorageInitError{RepoPath: repoPath, Err: err}
	}

	if err := os.MkdirAll(repoPath, 0755); err != nil {
		return &StorageInitError{RepoPath: repoPath, Err: err}
	}

	cmd := exec.CommandContext(ctx, "git", "init")
	cmd.Dir = repoPath
	if out, err := cmd.CombinedOutput(); err != nil {
		return &StorageInitError{
			RepoPath: repoPath,
			Err:      fmt.Errorf("git init: %s", strings.TrimSpace(string(out))),
		}
	}

	// gc stays off so snapshots left behind by a head reset remain
	// addressable by id for the life of the repository.
	settings := [][2]string{
		{"core.worktree", workTree},
		{"commit.gpgsign", "false"},
		{"gc.auto", "0"},
		{"user.name", "shadowgit"},
		{"user.email", "shadowgit@localhost"},
	}
	for _, kv := range settings {
		if _, err := g.git(ctx, repoPath, "", nil, "config", kv[0], kv[1]); err != nil {
			return &StorageInitError{RepoPath: repoPath, Err: err}
		}
	}

	logger.Global().Info("vcs: created shadow repository at %s (work-tree %s)", repoPath, workTree)
	return nil
}

// StageAndCommit implements Engine.
func (g *Git) StageAndCommit(ctx context.Context, repoPath, workTree string, relPaths []string) (string, error) {
	// Rebuild the index from scratch so it holds exactly relPaths; files
	// deleted from the workspace drop out of the snapshot this way.
	if _, err := g.git(ctx, repoPath, "", nil, "read-tree", "--empty"); err != nil {
		return "", &CommitError{RepoPath: repoPath, Err: err}
	}

	if len(relPaths) > 0 {
		stdin := []byte(strings.Join(relPaths, "\x00"))
		if _, err := g.git(ctx, repoPath, workTree, stdin,
			"add", "-f", "--pathspec-from-file=-", "--pathspec-file-nul"); err != nil {
			return "", &CommitError{RepoPath: repoPath, Err: err}
		}
	}

	// --allow-empty: an unchanged workspace still yields a fresh snapshot
	// id; every call returns a usable, distinct reference point.
	if _, err := g.git(ctx, repoPath, workTree, nil,
		"commit", "--quiet", "--allow-empty", "--no-verify", "-m", "checkpoint"); err != nil {
		return "", &CommitError{RepoPath: repoPath, Err: err}
	}

	out, err := g.git(ctx, repoPath, "", nil, "rev-parse", "HEAD")
	if err != nil {
		return "", &CommitError{RepoPath: repoPath, Err: err}
	}
	id, err := validateSnapshotID(strings.TrimSpace(string(out)))
	if err != nil {
		return "", &CommitError{RepoPath: repoPath, Err: err}
	}

	logger.Global().Info("vcs: committed snapshot %s in %s (%d files)", id, repoPath, len(relPaths))
	return id, nil
}

// validateSnapshotID checks that id looks like a git object id.
func validateSnapshotID(id string) (string, error) {
	if len(id) != 40 {
		return "", fmt.Errorf("snapshot id %q is not 40 characters", id)
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("snapshot id %q is not hexadecimal", id)
		}
	}
	return id, nil
}

// verifySnapshot resolves id to a commit in the repository.
func (g *Git) verifySnapshot(ctx context.Context, repoPath, id string) error {
	if id == "" {
		return &UnknownSnapshotError{RepoPath: repoPath, SnapshotID: id, Err: errors.New("empty snapshot id")}
	}
	if _, err := g.git(ctx, repoPath, "", nil, "cat-file", "-e", id+"^{commit}"); err != nil {
		return &UnknownSnapshotError{RepoPath: repoPath, SnapshotID: id, Err: err}
	}
	return nil
}

// Diff implements Engine.
func (g *Git) Diff(ctx context.Context, repoPath, fromID, toID string) ([]DiffRecord, error) {
	for _, id := range []string{fromID, toID} {
		if err := g.verifySnapshot(ctx, repoPath, id); err != nil {
			return nil, err
		}
	}

	out, err := g.git(ctx, repoPath, "", nil,
		"diff", "--no-color", "--no-renames", "--full-index", fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s in %s: %w", fromID, toID, repoPath, err)
	}

	fileDiffs, err := diff.ParseMultiFileDiff(out)
	if err != nil {
		return nil, fmt.Errorf("parse diff %s..%s in %s: %w", fromID, toID, repoPath, err)
	}

	records := make([]DiffRecord, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		rec := DiffRecord{
			BeforeMissing: fd.OrigName == devNull,
			AfterMissing:  fd.NewName == devNull,
		}
		if rec.AfterMissing {
			rec.RelPath = strings.TrimPrefix(fd.OrigName, "a/")
		} else {
			rec.RelPath = strings.TrimPrefix(fd.NewName, "b/")
		}

		if !rec.BeforeMissing {
			rec.Before, err = g.show(ctx, repoPath, fromID, rec.RelPath)
			if err != nil {
				return nil, err
			}
		}
		if !rec.AfterMissing {
			rec.After, err = g.show(ctx, repoPath, toID, rec.RelPath)
			if err != nil {
				return nil, err
			}
		}

		// Mode-only changes carry no content difference; skip them.
		if !rec.BeforeMissing && !rec.AfterMissing && bytes.Equal(rec.Before, rec.After) {
			continue
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].RelPath < records[j].RelPath })
	return records, nil
}

// show reads a file's content from a snapshot.
func (g *Git) show(ctx context.Context, repoPath, id, relPath string) ([]byte, error) {
	out, err := g.git(ctx, repoPath, "", nil, "show", id+":"+relPath)
	if err != nil {
		return nil, fmt.Errorf("read %s from snapshot %s in %s: %w", relPath, id, repoPath, err)
	}
	return out, nil
}

// Checkout implements Engine.
func (g *Git) Checkout(ctx context.Context, repoPath, workTree, toID string) error {
	if err := g.verifySnapshot(ctx, repoPath, toID); err != nil {
		return err
	}

	// A hard reset is the contract: tracked files are created, overwritten
	// and removed to match the snapshot; files never staged stay untouched.
	if _, err := g.git(ctx, repoPath, workTree, nil, "reset", "--hard", "--quiet", toID); err != nil {
		return &CheckoutError{RepoPath: repoPath, SnapshotID: toID, Err: err}
	}

	logger.Global().Info("vcs: restored %s to snapshot %s", workTree, toID)
	return nil
}

// Remove implements Engine.
func (g *Git) Remove(ctx context.Context, repoPath string) error {
	if _, err := os.Stat(repoPath); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(repoPath); err != nil {
		return &DeleteError{RepoPath: repoPath, Err: err}
	}
	logger.Global().Info("vcs: removed shadow repository at %s", repoPath)
	return nil
}
