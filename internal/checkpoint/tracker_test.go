package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/shadowgit/internal/registry"
	"github.com/codefionn/shadowgit/internal/vcs"
)

// openTracker opens a tracker for a fresh workspace under a shared storage
// root, failing the test on any error or absent tracker.
func openTracker(t *testing.T, storageRoot, taskID, workspace string, patterns ...string) *Tracker {
	t.Helper()

	tracker, err := Open(context.Background(), Options{
		TaskID:         taskID,
		WorkspacePath:  workspace,
		StorageRoot:    storageRoot,
		IgnorePatterns: patterns,
	})
	require.NoError(t, err)
	require.NotNil(t, tracker, "expected a tracker for task %q", taskID)
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func write(t *testing.T, workspace, rel, content string) {
	t.Helper()
	path := filepath.Join(workspace, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func read(t *testing.T, workspace, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(workspace, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestTracker_CommitDiffReset(t *testing.T) {
	ctx := context.Background()
	storage := t.TempDir()
	workspace := t.TempDir()

	tracker := openTracker(t, storage, "task1", workspace)

	write(t, workspace, "test.txt", "task1 initial")
	c1, err := tracker.Commit(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, c1)

	write(t, workspace, "test.txt", "task1 modified")
	c2, err := tracker.Commit(ctx)
	require.NoError(t, err)
	require.NotEqual(t, c1, c2)

	records, err := tracker.DiffSet(ctx, c1, c2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "test.txt", records[0].RelPath)
	assert.Equal(t, "task1 initial", string(records[0].Before))
	assert.Equal(t, "task1 modified", string(records[0].After))
	assert.False(t, records[0].BeforeMissing)
	assert.False(t, records[0].AfterMissing)

	require.NoError(t, tracker.ResetHead(ctx, c1))
	assert.Equal(t, "task1 initial", read(t, workspace, "test.txt"))

	// The reset kept c2 addressable and new commits build from c1
	_, err = tracker.DiffSet(ctx, c1, c2)
	assert.NoError(t, err)

	write(t, workspace, "test.txt", "task1 branched")
	c3, err := tracker.Commit(ctx)
	require.NoError(t, err)

	records, err = tracker.DiffSet(ctx, c1, c3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "task1 branched", string(records[0].After))
}

func TestTracker_UnchangedContentNewID(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	tracker := openTracker(t, t.TempDir(), "task1", workspace)

	write(t, workspace, "a.txt", "stable")
	first, err := tracker.Commit(ctx)
	require.NoError(t, err)
	second, err := tracker.Commit(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	records, err := tracker.DiffSet(ctx, first, second)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTracker_TaskIsolation(t *testing.T) {
	ctx := context.Background()
	storage := t.TempDir()

	workspaceA := t.TempDir()
	trackerA := openTracker(t, storage, "task-a", workspaceA)
	write(t, workspaceA, "a.txt", "belongs to A")
	idA, err := trackerA.Commit(ctx)
	require.NoError(t, err)
	require.NoError(t, trackerA.Close())

	workspaceB := t.TempDir()
	trackerB := openTracker(t, storage, "task-b", workspaceB)
	write(t, workspaceB, "b.txt", "belongs to B")
	idB, err := trackerB.Commit(ctx)
	require.NoError(t, err)

	// A's snapshot id means nothing in B's repository
	var unknownErr *vcs.UnknownSnapshotError
	_, err = trackerB.DiffSet(ctx, idA, idB)
	require.Error(t, err)
	assert.ErrorAs(t, err, &unknownErr)

	err = trackerB.ResetHead(ctx, idA)
	require.Error(t, err)
	assert.ErrorAs(t, err, &unknownErr)
}

func TestTracker_SequentialTasksSameWorkspace(t *testing.T) {
	ctx := context.Background()
	storage := t.TempDir()
	workspace := t.TempDir()

	first := openTracker(t, storage, "first-task", workspace)
	write(t, workspace, "shared.txt", "first task content")
	firstID, err := first.Commit(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A different task takes over the same workspace
	second := openTracker(t, storage, "second-task", workspace)
	write(t, workspace, "shared.txt", "second task content")
	secondID, err := second.Commit(ctx)
	require.NoError(t, err)

	// The first task's snapshot is invisible to the second task
	var unknownErr *vcs.UnknownSnapshotError
	_, err = second.DiffSet(ctx, firstID, secondID)
	require.Error(t, err)
	assert.ErrorAs(t, err, &unknownErr)
	require.NoError(t, second.Close())

	// Re-binding the first task finds its history intact
	firstAgain := openTracker(t, storage, "first-task", workspace)
	require.NoError(t, firstAgain.ResetHead(ctx, firstID))
	assert.Equal(t, "first task content", read(t, workspace, "shared.txt"))
}

func TestTracker_DeleteCheckpoints(t *testing.T) {
	ctx := context.Background()
	storage := t.TempDir()
	workspace := t.TempDir()

	tracker := openTracker(t, storage, "task2", workspace)
	write(t, workspace, "data.txt", "one")
	id1, err := tracker.Commit(ctx)
	require.NoError(t, err)
	write(t, workspace, "data.txt", "two")
	id2, err := tracker.Commit(ctx)
	require.NoError(t, err)
	require.NoError(t, tracker.Close())

	item := HistoryItem{TaskID: "task2", WorkspacePath: workspace}
	require.NoError(t, DeleteCheckpoints(ctx, "task2", item, storage, nil))

	// Deleting again is a no-op, not an error
	require.NoError(t, DeleteCheckpoints(ctx, "task2", item, storage, nil))

	// Recreating the task yields a fresh repository with no old history
	fresh := openTracker(t, storage, "task2", workspace)
	newID, err := fresh.Commit(ctx)
	require.NoError(t, err)

	var unknownErr *vcs.UnknownSnapshotError
	for _, old := range []string{id1, id2} {
		_, err = fresh.DiffSet(ctx, old, newID)
		require.Error(t, err)
		assert.ErrorAs(t, err, &unknownErr)

		err = fresh.ResetHead(ctx, old)
		require.Error(t, err)
		assert.ErrorAs(t, err, &unknownErr)
	}
}

func TestTracker_NestedRepositoryNeverStaged(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	tracker := openTracker(t, t.TempDir(), "task1", workspace)

	baseline, err := tracker.Commit(ctx)
	require.NoError(t, err)

	write(t, workspace, "app.go", "package app")
	write(t, workspace, "dep/.git/HEAD", "ref: refs/heads/main")
	write(t, workspace, "dep/.git/config", "[core]")
	write(t, workspace, "dep/code.go", "package dep")

	id, err := tracker.Commit(ctx)
	require.NoError(t, err)

	records, err := tracker.DiffSet(ctx, baseline, id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "app.go", records[0].RelPath)
}

func TestTracker_IgnorePatterns(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	tracker := openTracker(t, t.TempDir(), "task1", workspace, "*.log", "build/")

	baseline, err := tracker.Commit(ctx)
	require.NoError(t, err)

	write(t, workspace, "main.go", "package main")
	write(t, workspace, "debug.log", "noise")
	write(t, workspace, "build/out.bin", "binary")

	id, err := tracker.Commit(ctx)
	require.NoError(t, err)

	records, err := tracker.DiffSet(ctx, baseline, id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "main.go", records[0].RelPath)
}

func TestTracker_RestoreIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	tracker := openTracker(t, t.TempDir(), "task1", workspace)

	write(t, workspace, "a.txt", "alpha v1")
	write(t, workspace, "sub/b.txt", "beta v1")
	id, err := tracker.Commit(ctx)
	require.NoError(t, err)

	write(t, workspace, "a.txt", "alpha v2")
	require.NoError(t, os.Remove(filepath.Join(workspace, "sub", "b.txt")))
	write(t, workspace, "c.txt", "gamma")
	_, err = tracker.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, tracker.ResetHead(ctx, id))

	assert.Equal(t, "alpha v1", read(t, workspace, "a.txt"))
	assert.Equal(t, "beta v1", read(t, workspace, "sub/b.txt"))
	_, statErr := os.Stat(filepath.Join(workspace, "c.txt"))
	assert.True(t, os.IsNotExist(statErr), "file absent from the snapshot should be removed")
}

func TestOpen_AbsentOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("empty task id", func(t *testing.T) {
		tracker, err := Open(ctx, Options{
			WorkspacePath: t.TempDir(),
			StorageRoot:   t.TempDir(),
		})
		require.NoError(t, err)
		assert.Nil(t, tracker)
	})

	t.Run("missing workspace", func(t *testing.T) {
		tracker, err := Open(ctx, Options{
			TaskID:        "task1",
			WorkspacePath: filepath.Join(t.TempDir(), "does-not-exist"),
			StorageRoot:   t.TempDir(),
		})
		require.NoError(t, err)
		assert.Nil(t, tracker)
	})

	t.Run("missing storage root is an error", func(t *testing.T) {
		_, err := Open(ctx, Options{
			TaskID:        "task1",
			WorkspacePath: t.TempDir(),
		})
		require.Error(t, err)
	})

	t.Run("filesystem root is refused", func(t *testing.T) {
		_, err := Open(ctx, Options{
			TaskID:        "task1",
			WorkspacePath: "/",
			StorageRoot:   t.TempDir(),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsafeWorkspace)
	})
}

func TestOpen_WorkspaceLock(t *testing.T) {
	ctx := context.Background()
	storage := t.TempDir()
	workspace := t.TempDir()

	first := openTracker(t, storage, "task-a", workspace)

	_, err := Open(ctx, Options{
		TaskID:        "task-b",
		WorkspacePath: workspace,
		StorageRoot:   storage,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkspaceLocked)

	require.NoError(t, first.Close())

	second := openTracker(t, storage, "task-b", workspace)
	assert.Equal(t, "task-b", second.TaskID())
}

func TestDeleteCheckpoints_UsesRegistryPath(t *testing.T) {
	ctx := context.Background()

	var removed string
	engine := &vcs.MockEngine{
		RemoveFunc: func(ctx context.Context, repoPath string) error {
			removed = repoPath
			return nil
		},
	}

	item := HistoryItem{TaskID: "task-x", WorkspacePath: "/work"}
	require.NoError(t, DeleteCheckpoints(ctx, "task-x", item, "/storage", engine))
	assert.Equal(t, registry.RepoDir("/storage", "task-x"), removed)
}
