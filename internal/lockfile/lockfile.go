// Package lockfile provides file-based advisory locking. The checkpoint
// tracker uses it to enforce single-writer access to a workspace: the lock
// file records the holder's PID and acquisition time, and locks held by dead
// processes or older than the stale age are broken automatically.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned by TryAcquire when another live process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// DefaultStaleAge is how old a lock file may be before it is considered
// abandoned even if its PID still resolves to a running process.
const DefaultStaleAge = time.Hour

// Lockfile represents a file-based advisory lock
type Lockfile struct {
	path     string
	staleAge time.Duration
	file     *os.File
	pid      int
	locked   bool
}

// New creates a lock at path using DefaultStaleAge.
func New(path string) *Lockfile {
	return &Lockfile{path: path, staleAge: DefaultStaleAge}
}

// NewWithStaleAge creates a lock at path with a custom stale age.
// A zero or negative staleAge disables age-based breaking.
func NewWithStaleAge(path string, staleAge time.Duration) *Lockfile {
	return &Lockfile{path: path, staleAge: staleAge}
}

// TryAcquire attempts to acquire the lock without blocking. It returns
// ErrLocked (wrapped with the holder description) if a live process holds
// the lock, and breaks stale locks transparently.
func (l *Lockfile) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	err := l.acquire()
	if !os.IsExist(err) {
		return err
	}

	// The lock file exists; break it if its holder is gone or it is too old.
	stale, holder := l.checkStale()
	if !stale {
		return fmt.Errorf("%w: %s", ErrLocked, holder)
	}
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("failed to remove stale lock (%s): %w", holder, removeErr)
	}
	if err := l.acquire(); err != nil {
		if os.IsExist(err) {
			// Another process re-created the lock between our remove and retry.
			return fmt.Errorf("%w: lock re-acquired concurrently", ErrLocked)
		}
		return err
	}
	return nil
}

// acquire creates the lock file exclusively and writes PID + timestamp.
// It returns an os.IsExist error when the file is already present.
func (l *Lockfile) acquire() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	l.file = file
	l.pid = os.Getpid()
	l.locked = true

	content := fmt.Sprintf("%d\n%s\n", l.pid, time.Now().Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := file.Sync(); err != nil {
		l.Release()
		return fmt.Errorf("failed to sync lock file: %w", err)
	}
	return nil
}

// checkStale reports whether the existing lock file may be broken, plus a
// human-readable description of the holder or the staleness reason.
func (l *Lockfile) checkStale() (bool, string) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return true, "cannot read lock file"
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return true, "invalid PID in lock file"
	}

	running, reason := isProcessRunning(pid)
	if !running {
		return true, reason
	}

	if l.staleAge > 0 && len(lines) >= 2 {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
		if err == nil && time.Since(ts) > l.staleAge {
			return true, fmt.Sprintf("lock is older than %s", l.staleAge)
		}
	}

	return false, fmt.Sprintf("process with PID %d is running", pid)
}

// Release releases the lock and removes the lock file
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}

	var err error
	if l.file != nil {
		if closeErr := l.file.Close(); closeErr != nil {
			err = closeErr
		}
		l.file = nil
	}

	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		if err != nil {
			err = fmt.Errorf("%v; failed to remove lock file: %w", err, removeErr)
		} else {
			err = fmt.Errorf("failed to remove lock file: %w", removeErr)
		}
	}

	l.locked = false
	return err
}

// PID returns the PID that acquired the lock
func (l *Lockfile) PID() int {
	return l.pid
}

// Locked returns true if the lock is held
func (l *Lockfile) Locked() bool {
	return l.locked
}

// Path returns the lock file path
func (l *Lockfile) Path() string {
	return l.path
}
