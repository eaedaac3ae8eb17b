package config

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandGlobs expands file paths and glob patterns into a unique list.
// Arguments keep their command-line order; matches of a single glob are
// sorted. Patterns may be recursive (logs/**/*.log) or use braces
// ({app,api}.log); directories never match. A plain path that does not exist, or a glob with no matches,
// yields an error wrapping fs.ErrNotExist.
func ExpandGlobs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no file patterns provided")
	}

	files := make([]string, 0, len(patterns))
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, pattern := range patterns {
		if hasGlobMeta(pattern) {
			matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
			if err != nil {
				return nil, fmt.Errorf("expand %q: %w", pattern, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no matches for pattern %q: %w", pattern, fs.ErrNotExist)
			}
			sort.Strings(matches)
			for _, match := range matches {
				add(match)
			}
			continue
		}

		info, err := os.Stat(pattern)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", pattern)
		}
		add(pattern)
	}

	return files, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
