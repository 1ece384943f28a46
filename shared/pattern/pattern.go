// Package pattern implements the entry-selection patterns used to
// include or exclude files from an archive: shell globs and regular
// expressions (both regex types use Go's regexp syntax).
package pattern

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Type identifies the matching syntax of a Pattern.
type Type int

const (
	// TypeGlob matches using shell glob syntax (*, ?, [...]).
	TypeGlob Type = iota
	// TypeRegex matches using Go regexp (RE2) syntax, not POSIX basic
	// regular expression syntax.
	TypeRegex
	// TypeExtendedRegex is compiled exactly like TypeRegex, with Go
	// regexp (RE2) syntax.
	TypeExtendedRegex
)

func (t Type) String() string {
	switch t {
	case TypeGlob:
		return "glob"
	case TypeRegex:
		return "regex"
	case TypeExtendedRegex:
		return "extended-regex"
	default:
		return "unknown"
	}
}

// Pattern is a single compiled match rule against a slash-separated
// archive-relative path.
type Pattern struct {
	raw   string
	kind  Type
	re    *regexp.Regexp // nil for TypeGlob
	glob  string
}

// Compile parses and compiles pattern text of the given type.
func Compile(kind Type, text string) (*Pattern, error) {
	p := &Pattern{raw: text, kind: kind}
	switch kind {
	case TypeGlob:
		if _, err := filepath.Match(text, "probe"); err != nil {
			return nil, fmt.Errorf("pattern: invalid glob %q: %w", text, err)
		}
		p.glob = text
	case TypeRegex, TypeExtendedRegex:
		re, err := regexp.Compile(text)
		if err != nil {
			return nil, fmt.Errorf("pattern: invalid regex %q: %w", text, err)
		}
		p.re = re
	default:
		return nil, fmt.Errorf("pattern: unknown pattern type %d", kind)
	}
	return p, nil
}

// String returns the original pattern text.
func (p *Pattern) String() string {
	return p.raw
}

// Match reports whether path (slash-separated, archive-relative)
// matches the pattern. Glob patterns are matched against each path
// segment boundary using filepath.Match semantics extended to allow
// "**" to match across directory separators.
func (p *Pattern) Match(path string) bool {
	path = filepath.ToSlash(path)
	switch p.kind {
	case TypeGlob:
		return matchGlob(p.glob, path)
	case TypeRegex, TypeExtendedRegex:
		return p.re.MatchString(path)
	default:
		return false
	}
}

func matchGlob(glob, path string) bool {
	if strings.Contains(glob, "**") {
		restRe := globToRegexp(glob)
		return restRe.MatchString(path)
	}
	if ok, _ := filepath.Match(glob, path); ok {
		return true
	}
	// Also try matching the base name, so "*.tmp" excludes
	// "some/dir/file.tmp" the way users expect.
	ok, _ := filepath.Match(glob, filepath.Base(path))
	return ok
}

// globToRegexp converts a glob containing "**" into an equivalent
// regexp, translating "**" to match across path separators and "*"
// and "?" to their single-segment regexp equivalents; every other
// character, "[" and "]" included, is matched literally.
func globToRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	i := 0
	for i < len(glob) {
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			// "**/" also matches zero directories, so "a/**/b" matches "a/b".
			b.WriteString("(?:.*/)?")
			i += 3
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i += 2
		case glob[i] == '*':
			b.WriteString("[^/]*")
			i++
		case glob[i] == '?':
			b.WriteString("[^/]")
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(glob[i])))
			i++
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		// Fall back to a pattern that matches nothing rather than panic;
		// Compile already validated simple globs, this path is only hit
		// for "**" patterns which cannot fail QuoteMeta-based construction.
		return regexp.MustCompile(`\z\A`)
	}
	return re
}
