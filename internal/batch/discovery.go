package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/codec"
)

// fileFilter selects image files by base-name glob. Without include globs
// only supported image extensions pass.
type fileFilter struct {
	include []string
	exclude []string
}

func (f fileFilter) accepts(path string) bool {
	base := filepath.Base(path)
	if globMatch(base, f.exclude) {
		return false
	}
	if len(f.include) == 0 {
		return codec.IsSupportedPath(base)
	}
	return globMatch(base, f.include)
}

func globMatch(base string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, base); ok {
			return true
		}
	}
	return false
}

// discoverImageFiles expands paths into the image files to scan, in argument
// order. Directories are listed lexically; hidden entries inside them are
// skipped. A file reached twice is scanned once.
func discoverImageFiles(paths []string, recursive bool, include, exclude []string) ([]string, error) {
	filter := fileFilter{include: include, exclude: exclude}
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		key := filepath.Clean(p)
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			if filter.accepts(p) {
				add(p)
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != p && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if filter.accepts(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return out, nil
}
