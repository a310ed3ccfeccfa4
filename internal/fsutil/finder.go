// Package fsutil provides file system utility functions over afero.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. A missing root yields no files.
func FindFilesByExtension(fs afero.Fs, rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}
	return walk(fs, rootPath, func(rel string) bool {
		return strings.HasSuffix(rel, extension)
	})
}

// Glob returns the files under root whose slash-separated path relative to root
// matches any of the doublestar patterns. Results are full paths, sorted.
func Glob(fs afero.Fs, root string, patterns ...string) ([]string, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return walk(fs, root, func(rel string) bool {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
		return false
	})
}

// HasMeta reports whether s contains glob meta characters.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func walk(fs afero.Fs, root string, keep func(rel string) bool) ([]string, error) {
	if _, err := fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error accessing path %s: %w", root, err)
	}

	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if keep(filepath.ToSlash(rel)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
