package aggregate

import (
	"path/filepath"
	"strings"
)

// doubleStarMatch matches a slash-separated path against a glob pattern
// whose components may include "**", which spans zero or more path
// components (as in .gitignore / Ant-style include/exclude globs).
// filepath.Match alone can't express this since "*" never crosses "/".
func doubleStarMatch(pattern string, path string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

func matchSegments(patternSegs []string, pathSegs []string) bool {
	if len(patternSegs) == 0 {
		return len(pathSegs) == 0
	}
	head := patternSegs[0]
	if head == "**" {
		if len(patternSegs) == 1 {
			return true // "**" at the end matches everything remaining
		}
		for i := 0; i <= len(pathSegs); i++ {
			if matchSegments(patternSegs[1:], pathSegs[i:]) {
				return true
			}
		}
		return false
	}
	if len(pathSegs) == 0 {
		return false
	}
	if ok, _ := filepath.Match(head, pathSegs[0]); !ok {
		return false
	}
	return matchSegments(patternSegs[1:], pathSegs[1:])
}
