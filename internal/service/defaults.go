package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-geomap/internal/mapview"
)

// LoadDefaults reads panel defaults from a YAML file. Keys missing from the
// file keep the built-in defaults. An empty path returns the built-in set.
func LoadDefaults(path string) (mapview.ViewOptions, error) {
	opts := mapview.DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return mapview.DefaultOptions(), fmt.Errorf("parse defaults %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return mapview.DefaultOptions(), fmt.Errorf("defaults %s: %w", path, err)
	}
	return opts, nil
}

// MarshalDefaults renders opts as YAML, for the defaults subcommand.
func MarshalDefaults(opts mapview.ViewOptions) ([]byte, error) {
	return yaml.Marshal(opts)
}
