package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile reads a catalog from path, choosing the format by extension.
// A directory is read as a CUE package.
func LoadFile(path string) (*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadCUE(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".cue":
		return LoadCUE(path)
	}
	return nil, fmt.Errorf("catalog %s: unsupported format (want .yaml, .yml, .cue or a directory)", path)
}
