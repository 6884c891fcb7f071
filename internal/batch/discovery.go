package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/onionqc/internal/utils"
)

// fileSet collects paths once each, in discovery order.
type fileSet struct {
	seen  map[string]struct{}
	paths []string
}

func (s *fileSet) add(path string) {
	key := filepath.Clean(path)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.paths = append(s.paths, path)
}

// discoverImageFiles expands args into the files to analyse. Explicitly
// named files are kept even without a known image extension so that their
// load failure is reported. A file reached twice is listed once.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	set := &fileSet{seen: make(map[string]struct{})}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if shouldIncludeFile(arg, includePatterns, excludePatterns) {
				set.add(arg)
			}
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != arg && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if !recursive && path != arg {
					return filepath.SkipDir
				}
				return nil
			}
			if utils.IsSupportedImage(path) && shouldIncludeFile(path, includePatterns, excludePatterns) {
				set.add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
	}

	return set.paths, nil
}

// isHidden matches dot files, including the "._" companions macOS leaves
// next to copied photos.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// shouldIncludeFile applies exclude patterns first, then include patterns.
// No include patterns means everything not excluded.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	return len(includePatterns) == 0 || matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the base name against shell patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
