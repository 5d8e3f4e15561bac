package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads settings from a YAML file on top of the defaults.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	c := NewConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("invalid configuration file %s: %w", path, err)
	}
	return c, nil
}

// Load returns the configuration from path, or from DefaultConfigFile if path is empty, with
// environment overrides applied. A missing default file is not an error; a missing explicit
// file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	c, err := LoadFile(path)
	if err == ErrConfigNotFound && !explicit {
		c, err = NewConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	return c, nil
}
