package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indicates a document format other than YAML or JSON.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Decode unmarshals a YAML or JSON document into v. format is "yaml",
// "yml" or "json"; a leading dot is ignored so file extensions work too.
func Decode(data []byte, format string, v any) error {
	switch normalizeFormat(format) {
	case "yaml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return nil
}

// DecodeFile reads path and decodes it according to its extension.
func DecodeFile(path string, v any) error {
	ext := filepath.Ext(path)
	if normalizeFormat(ext) == "" {
		return fmt.Errorf("%w: file extension %q", ErrUnsupportedFormat, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return Decode(data, ext, v)
}

// normalizeFormat maps a format name or extension to "yaml" or "json", or
// "" when unsupported.
func normalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		return "yaml"
	case "json":
		return "json"
	default:
		return ""
	}
}

// FromFile loads a YAML (.yaml, .yml) or JSON (.json) file.
func FromFile(path string) (Config, error) {
	var m map[string]any
	if err := DecodeFile(path, &m); err != nil {
		return Config{}, err
	}
	return New(m), nil
}

// FromYAML parses a YAML mapping.
func FromYAML(data []byte) (Config, error) {
	return fromBytes(data, "yaml")
}

// FromJSON parses a JSON object.
func FromJSON(data []byte) (Config, error) {
	return fromBytes(data, "json")
}

func fromBytes(data []byte, format string) (Config, error) {
	var m map[string]any
	if err := Decode(data, format, &m); err != nil {
		return Config{}, err
	}
	return New(m), nil
}
