// Package configutil reads json5 configuration with optional local
// overrides.
package configutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath returns the override file that sits next to path:
// collector.json5 becomes collector.local.json5.
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// decodeFile parses path into out. found is false when the file does not
// exist or is empty.
func decodeFile[T any](path string, out *T) (found bool, err error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return false, nil
	}
	if err := json5.Unmarshal(contents, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads path and merges the matching LocalPath file over it, so
// a checked in config can be tuned per machine without edits. It returns
// os.ErrNotExist when neither file is present.
func ReadConfig[T any](path string) (T, error) {
	var cfg T
	baseFound, err := decodeFile(path, &cfg)
	if err != nil {
		return cfg, err
	}

	local := LocalPath(path)
	var override T
	localFound, err := decodeFile(local, &override)
	if err != nil {
		return cfg, err
	}
	if localFound {
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("merge %s: %w", local, err)
		}
		slog.Debug("applied local config overrides", "path", local)
	}

	if !baseFound && !localFound {
		return cfg, os.ErrNotExist
	}
	return cfg, nil
}

// ReadRecursively calls ReadConfig on name in the working directory and
// then in each parent until one is found.
func ReadRecursively[T any](name string) (T, error) {
	var zero T
	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		cfg, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return zero, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}

// WithDefaults fills every zero field of cfg with the value from defaults.
func WithDefaults[T any](cfg T, defaults T) (T, error) {
	err := mergo.Merge(&cfg, defaults)
	return cfg, err
}
