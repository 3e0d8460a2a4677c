package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load loads and validates a graph definition file.
//
// Error cases:
//   - File not found or cannot be read
//   - Invalid YAML syntax
//   - Invalid settings (unknown strategy or log level, negative delays, no
//     service)
func Load(path string) (*File, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load graph file %q: %w", path, err)
	}

	var f File
	if err := k.UnmarshalWithConf("", &f,
		koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse graph file %q: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph file %q: %w", path, err)
	}

	return &f, nil
}
