package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ParseFile decodes path on top of Defaults(). Keys present in the file win;
// absent keys keep their default.
func ParseFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, b)
}

// Parse decodes data as JSON, or YAML when name ends in .yaml/.yml.
func Parse(name string, data []byte) (*Config, error) {
	jb, format, err := coerceToJSONBytes(name, data)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if len(bytes.TrimSpace(jb)) == 0 || bytes.Equal(bytes.TrimSpace(jb), []byte("null")) {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s config %s: %w", format, name, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%s config %s: trailing data", format, name)
		}
		return nil, err
	}
	return cfg, nil
}

// Load builds the effective config: defaults, then the file when path is
// non-empty, then the environment.
func Load(path string, lookup LookupFunc) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		var err error
		if cfg, err = ParseFile(path); err != nil {
			return nil, err
		}
	}
	ApplyEnv(cfg, lookup)
	return cfg, nil
}
