package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a batch file. The extension selects the format.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	return Parse(data, filepath.Ext(path))
}

// Parse decodes a batch file held in memory
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, ext)
	}

	applyDefaults(&f)

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func applyDefaults(f *File) {
	defaults := DefaultOptions()

	if f.Options.Output == "" {
		f.Options.Output = defaults.Output
	}
	if f.Options.Concurrency < 1 {
		f.Options.Concurrency = defaults.Concurrency
	}
}
