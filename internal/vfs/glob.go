package vfs

import (
	"path"
	"strings"
)

// matchGlob reports whether an absolute path matches a POSIX glob pattern.
// Patterns support *, ?, and [...] within a path segment (path.Match
// semantics) and ** as a full segment matching zero or more segments.
func matchGlob(pattern, name string) (bool, error) {
	pSegs := splitSegments(pattern)
	nSegs := splitSegments(name)
	return matchSegments(pSegs, nSegs)
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, name []string) (bool, error) {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			// Collapse consecutive ** segments.
			rest := pattern[1:]
			for len(rest) > 0 && rest[0] == "**" {
				rest = rest[1:]
			}
			if len(rest) == 0 {
				return true, nil
			}
			for i := 0; i <= len(name); i++ {
				ok, err := matchSegments(rest, name[i:])
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}
		if len(name) == 0 {
			return false, nil
		}
		ok, err := path.Match(pattern[0], name[0])
		if err != nil || !ok {
			return ok, err
		}
		pattern = pattern[1:]
		name = name[1:]
	}
	return len(name) == 0, nil
}
