package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/onboarding/internal/model"
)

// yamlFile is the on-disk YAML catalog layout:
//
//	default:
//	  - flag: GasCard_Requested
//	    short_code: "3"
//	    task_type: Gas Card
//	partitions:
//	  prod:
//	    - flag: ...
type yamlFile struct {
	Default    []model.Template                     `yaml:"default"`
	Partitions map[model.Partition][]model.Template `yaml:"partitions"`
}

// LoadYAML reads and validates a YAML catalog file.
func LoadYAML(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseYAML(path, data)
}

// ParseYAML validates YAML catalog content. Unknown keys are rejected.
func ParseYAML(source string, data []byte) (*Set, error) {
	var f yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", source, err)
	}
	return newSet(source, f.Default, f.Partitions)
}
