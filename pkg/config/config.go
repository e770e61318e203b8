// Package config loads YAML or TOML configuration files with environment
// variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from filename. Files ending in .toml are parsed
// as TOML, everything else as YAML. ${VAR} references are expanded first.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := unmarshal(filename, []byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return validate(target)
}

// LoadOptional behaves like Load, but a missing file leaves target as is
// and only validates it.
func LoadOptional[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return validate(target)
	}
	return Load(filename, target)
}

func unmarshal(filename string, data []byte, target any) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		_, err := toml.Decode(string(data), target)
		return err
	default:
		return yaml.Unmarshal(data, target)
	}
}

func validate(target any) error {
	if validator, ok := target.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
