package mockspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Zachacious/go-mockspec/internal/psast"
	"github.com/bmatcuk/doublestar/v4"
)

// discover returns the script files under root matching include and none of
// exclude, as slash-separated paths relative to root. Files come out in
// pattern order, each pattern's matches sorted, so the load order is stable.
func discover(root string, include, exclude []string) ([]string, error) {
	fsys := os.DirFS(root)
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			skip, err := excluded(m, exclude)
			if err != nil {
				return nil, err
			}
			if !skip {
				files = append(files, m)
			}
		}
	}
	return files, nil
}

func excluded(path string, exclude []string) (bool, error) {
	for _, pattern := range exclude {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// load parses every discovered file. Parse errors of all files are joined so
// one bad script reports together with the others.
func load(root string, files []string) ([]*psast.File, error) {
	parsed := make([]*psast.File, 0, len(files))
	var errs []error
	for _, rel := range files {
		f, err := psast.ParseFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, f)
	}
	return parsed, errors.Join(errs...)
}
