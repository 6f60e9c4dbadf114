package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"metadesc/internal/core/watcher"
)

// DescriptorFiles lists the root descriptor files to resolve. Explicit paths
// may name files, which are taken as given, or directories, which are
// scanned with the configured filter. No paths means the configured roots.
func (a *App) DescriptorFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = a.Paths.Roots
	}

	seen := make(map[string]bool)
	var files []string
	for _, p := range uniqueScanRoots(paths) {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		if !info.IsDir() {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
			continue
		}
		found, err := watcher.ListFiles(p, a.filter)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		for _, f := range found {
			if seen[f] || a.isEmitted(f) {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}

// uniqueScanRoots makes paths absolute and drops duplicates. Files found
// under more than one root are deduplicated by the caller.
func uniqueScanRoots(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func within(root, path string) bool {
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// isEmitted reports whether path lies in the emit directory, whose files are
// outputs rather than roots.
func (a *App) isEmitted(path string) bool {
	return a.Paths.EmitDir != "" && within(a.Paths.EmitDir, path)
}

// rootFor returns the configured root containing path, or its directory.
func (a *App) rootFor(path string) string {
	best := ""
	for _, r := range a.Paths.Roots {
		if within(r, path) && len(r) > len(best) {
			best = r
		}
	}
	if best == "" {
		return filepath.Dir(path)
	}
	return best
}
