package ignore

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// vcsMetaDirs are directory names that hold version-control metadata.
// They are never part of a snapshot, whatever the configured patterns say.
var vcsMetaDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

// EligibleFiles walks the workspace rooted at root and returns the sorted,
// slash-separated relative paths of all regular files eligible for a
// snapshot. The eligible set is computed fresh on every call; only the
// Matcher is fixed.
//
// Exclusion rules, in order:
//   - entries named after VCS metadata directories (.git, .hg, .svn),
//   - the whole subtree of any non-root directory that contains a .git
//     entry (a nested repository owns its files; staging across its
//     boundary would corrupt either history),
//   - paths matched by the ignore patterns,
//   - anything that is not a regular file (symlinks, sockets, devices).
func EligibleFiles(root string, m *Matcher) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if vcsMetaDirs[d.Name()] {
				return filepath.SkipDir
			}
			if isNestedRepo(path) {
				return filepath.SkipDir
			}
			if m.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		// A file named .git is a worktree/submodule pointer
		if vcsMetaDirs[d.Name()] {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if m.Match(rel, false) {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// isNestedRepo reports whether dir is the root of its own git repository.
func isNestedRepo(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}
