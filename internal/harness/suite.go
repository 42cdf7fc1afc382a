package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteEntry is the outcome of one scenario file in a suite.
type SuiteEntry struct {
	Path     string
	Scenario *Scenario // nil if the file failed to load
	Result   *Result   // nil if loading or setup failed
	Err      error
}

// Passed reports whether the scenario loaded, ran and met every assertion.
func (e SuiteEntry) Passed() bool {
	return e.Err == nil && e.Result != nil && e.Result.Pass
}

// FindScenarios returns the scenario files under path, sorted. path may be
// a single file or a directory; directories are searched for *.yaml and
// *.yml files, not recursively.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenarios %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", path)
	}
	return files, nil
}

// RunSuite loads and runs every scenario under path whose file name,
// without extension, matches the glob filter. An empty filter matches all.
// A scenario that fails to load or run is recorded and the suite continues.
func RunSuite(path, filter string) ([]SuiteEntry, error) {
	files, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	out := make([]SuiteEntry, 0, len(files))
	for _, f := range files {
		if filter != "" {
			base := filepath.Base(f)
			matched, err := filepath.Match(filter, strings.TrimSuffix(base, filepath.Ext(base)))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		entry := SuiteEntry{Path: f}
		entry.Scenario, entry.Err = LoadScenario(f)
		if entry.Err == nil {
			entry.Result, entry.Err = Run(entry.Scenario)
		}
		out = append(out, entry)
	}
	return out, nil
}
