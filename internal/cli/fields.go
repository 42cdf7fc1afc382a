package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// readFields collects raw form fields from a YAML or JSON document and from
// key=value pairs. path "-" reads stdin; an empty path reads nothing.
// Pairs override keys from the document.
func readFields(stdin io.Reader, path string, pairs []string) (map[string]any, error) {
	fields := map[string]any{}

	if path != "" {
		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("read fields %s: %w", path, err)
		}
		// JSON documents are valid YAML.
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse fields %s: %w", path, err)
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", pair)
		}
		fields[key] = value
	}
	return fields, nil
}
