package surface

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ExpandGlobs expands glob patterns like *.csv, even when quoted, and
// returns a deduplicated list of absolute paths. A pattern with no match
// is an error; a plain path is passed through unchecked.
func ExpandGlobs(patterns []string) ([]string, error) {
	var expanded []string
	seen := make(map[string]bool)

	add := func(p string) error {
		abs, err := ResolvePath(p)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", p, err)
		}
		if !seen[abs] {
			expanded = append(expanded, abs)
			seen[abs] = true
		}
		return nil
	}

	for _, pattern := range patterns {
		pattern = expandHome(pattern)

		if !strings.ContainsAny(pattern, "*?[]") {
			if err := add(pattern); err != nil {
				return nil, err
			}
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", pattern)
		}
		for _, m := range matches {
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}

	return expanded, nil
}

// ResolvePath makes path absolute, expanding a leading ~ and resolving
// symlinks when the path exists.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}

// IsHidden reports whether the base name of path starts with a dot.
// "." and ".." are not hidden.
func IsHidden(path string) bool {
	name := filepath.Base(path)
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

type fileEntry struct {
	Path string
	Size int64
}

// walkFiles visits the regular files below root in lexical order. Hidden
// directories are skipped entirely unless includeHidden is set.
func walkFiles(root string, includeHidden bool, fn func(fileEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}

		if path != root && !includeHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(fileEntry{Path: path, Size: info.Size()})
	})
}
