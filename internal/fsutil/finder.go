// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// MatchFunc decides whether a file found by Find is collected. rel is the
// slash-separated path relative to the walk root.
type MatchFunc func(rel string, d fs.DirEntry) bool

// Find walks rootPath and returns the paths (joined with rootPath) of every
// regular file accepted by match. Hidden entries and entries excluded by
// .gitignore files or .git/info/exclude are skipped, directories included.
func Find(rootPath string, match MatchFunc) ([]string, error) {
	if match == nil {
		panic("match must not be nil")
	}

	patterns, err := gitignore.ReadPatterns(osfs.New(rootPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore rules in %s: %w", rootPath, err)
	}
	matcher := gitignore.NewMatcher(patterns)

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if strings.HasPrefix(d.Name(), ".") || matcher.Match(strings.Split(rel, "/"), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && match(rel, d) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// FindFilesNamed returns every non-ignored file called name below rootPath.
func FindFilesNamed(rootPath, name string) ([]string, error) {
	if name == "" {
		panic("name must not be empty")
	}
	return Find(rootPath, func(_ string, d fs.DirEntry) bool { return d.Name() == name })
}

// FindFilesByExtension returns every non-ignored file below rootPath whose
// name ends with extension.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}
	return Find(rootPath, func(_ string, d fs.DirEntry) bool { return strings.HasSuffix(d.Name(), extension) })
}
