package config

import (
	"fmt"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

func resolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve watch path %s: %w", root, err)
	}
	return absRoot, nil
}

func loadOptions(path string) (*Options, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read options file %s: %w", path, err)
	}

	var options Options
	if err := k.Unmarshal("", &options); err != nil {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}

	return &options, nil
}
