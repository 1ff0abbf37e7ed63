package collector

import (
	"fmt"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Filter decides which paths under a root are candidates for indexing.
// Include patterns select files; exclude patterns use gitignore syntax and
// apply to files and directories.
type Filter struct {
	include *includeSet
	exclude *ignore.GitIgnore
}

// includeSet provides fast include matching
type includeSet struct {
	exts  map[string]bool
	dirs  map[string]bool
	globs []string
	count int
}

// NewFilter compiles include and exclude patterns. An include pattern that
// is not a valid glob is an error.
func NewFilter(include, exclude []string) (*Filter, error) {
	set, err := buildIncludeSet(include)
	if err != nil {
		return nil, err
	}
	f := &Filter{include: set}
	if len(exclude) > 0 {
		f.exclude = ignore.CompileIgnoreLines(exclude...)
	}
	return f, nil
}

// ShouldInclude checks if a file relative to its root matches the include patterns
func (f *Filter) ShouldInclude(rel string) bool {
	set := f.include
	if set.count == 0 {
		return true
	}

	normalized := filepath.ToSlash(rel)

	if ext := strings.ToLower(filepath.Ext(normalized)); ext != "" && set.exts[ext] {
		return true
	}

	parts := strings.Split(normalized, "/")
	for _, part := range parts[:len(parts)-1] {
		if set.dirs[part] {
			return true
		}
	}

	base := parts[len(parts)-1]
	for _, pattern := range set.globs {
		if pattern == "*" {
			return true
		}
		if matched, _ := filepath.Match(pattern, normalized); matched {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if matched, _ := filepath.Match(pattern, base); matched {
				return true
			}
		}
		if simple, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matched, _ := filepath.Match(simple, base); matched {
				return true
			}
		}
	}

	return false
}

// ShouldExclude checks a path relative to its root against the exclude rules
func (f *Filter) ShouldExclude(rel string, isDir bool) bool {
	if f.exclude == nil {
		return false
	}
	normalized := filepath.ToSlash(rel)
	if isDir {
		return f.exclude.MatchesPath(normalized) || f.exclude.MatchesPath(normalized+"/")
	}
	return f.exclude.MatchesPath(normalized)
}

func buildIncludeSet(patterns []string) (*includeSet, error) {
	set := &includeSet{
		exts:  make(map[string]bool),
		dirs:  make(map[string]bool),
		count: len(patterns),
	}

	for _, pattern := range patterns {
		normalized := filepath.ToSlash(strings.TrimSpace(pattern))
		if normalized == "" {
			set.count--
			continue
		}
		if _, err := filepath.Match(normalized, ""); err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}

		switch {
		case strings.HasPrefix(normalized, "**/") && strings.HasSuffix(normalized, "/**"):
			set.dirs[strings.Trim(normalized, "*/")] = true
		case strings.HasPrefix(normalized, "*.") && !strings.ContainsAny(normalized[2:], "*?[/"):
			set.exts[strings.ToLower(strings.TrimPrefix(normalized, "*"))] = true
		case strings.HasPrefix(normalized, ".") && !strings.Contains(normalized, "/"):
			set.exts[strings.ToLower(normalized)] = true
		default:
			set.globs = append(set.globs, normalized)
		}
	}

	return set, nil
}
