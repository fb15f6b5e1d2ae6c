// Package ignore decides which workspace files are eligible for a snapshot.
// It combines gitignore-style pattern matching with a workspace walk that
// excludes version-control metadata and nested repositories.
package ignore

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher holds a compiled, immutable set of ignore patterns. Patterns use
// gitignore semantics: `*` matches within a path segment, `**` across
// segments, `?` a single character, a trailing `/` restricts the pattern to
// directories, and a leading `!` negates earlier matches.
type Matcher struct {
	patterns []*pattern
}

type pattern struct {
	source    string
	regex     *regexp.Regexp
	isNegated bool
	isDir     bool
}

// CompilePatterns compiles the given patterns into a Matcher. Empty lines
// and comment lines starting with '#' are skipped. The returned Matcher is
// safe for concurrent use.
func CompilePatterns(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: make([]*pattern, 0, len(patterns))}

	for _, raw := range patterns {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := &pattern{source: line}

		if strings.HasPrefix(line, "!") {
			p.isNegated = true
			line = strings.TrimPrefix(line, "!")
		}

		if strings.HasSuffix(line, "/") {
			p.isDir = true
			line = strings.TrimSuffix(line, "/")
		}

		regex, err := regexp.Compile(patternToRegex(line))
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p.source, err)
		}
		p.regex = regex
		m.patterns = append(m.patterns, p)
	}

	return m, nil
}

// patternToRegex converts a gitignore-style pattern to a regex pattern
func patternToRegex(pattern string) string {
	// Escape special regex characters except * and ?
	pattern = regexp.QuoteMeta(pattern)

	// Replace escaped wildcards back
	pattern = strings.ReplaceAll(pattern, `\*\*`, ".*")
	pattern = strings.ReplaceAll(pattern, `\*`, "[^/]*")
	pattern = strings.ReplaceAll(pattern, `\?`, "[^/]")

	// If pattern doesn't start with /, it can match at any level
	if !strings.HasPrefix(pattern, "/") {
		pattern = "(^|/)" + pattern
	} else {
		pattern = "^" + strings.TrimPrefix(pattern, "/")
	}

	// Anchor at the end
	return pattern + "($|/)"
}

// Match reports whether relPath (slash-separated, relative to the workspace
// root) is excluded by the pattern set. Later patterns win, so a negated
// pattern can re-include a path excluded by an earlier one.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	relPath = strings.TrimPrefix(relPath, "./")

	ignored := false
	for _, p := range m.patterns {
		// Directory-only patterns never match files
		if p.isDir && !isDir {
			continue
		}

		if p.regex.MatchString(relPath) {
			ignored = !p.isNegated
		}
	}

	return ignored
}

// Len returns the number of compiled patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}
