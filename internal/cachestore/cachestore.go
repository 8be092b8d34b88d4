// Package cachestore persists the cache document: a single JSON file
// holding the whole-run aggregate. Mutations are whole-file
// replacements through rundir's atomic-write primitive; the store is
// single-writer (init creates it, run-build finalization rewrites it) and
// has many readers (the renderer, the postprocessor, external tools).
package cachestore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/rundir"
)

// Create writes a freshly-initialized Run document. Returns an error if a
// cache file already exists: init on an existing directory is an error.
func Create(dir *rundir.Dir, run *litani.Run) error {
	if _, err := os.Stat(dir.CachePath()); err == nil {
		return fmt.Errorf("cache store already exists: %s", dir.CachePath())
	}
	return Save(dir, run)
}

// Save replaces the Cache Store document atomically.
func Save(dir *rundir.Dir, run *litani.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache store: %w", err)
	}
	if err := rundir.AtomicWrite(dir.CachePath(), data, 0o644); err != nil {
		return fmt.Errorf("write cache store: %w", err)
	}
	return nil
}

// Load reads the Cache Store document.
func Load(dir *rundir.Dir) (*litani.Run, error) {
	data, err := os.ReadFile(dir.CachePath())
	if err != nil {
		return nil, fmt.Errorf("read cache store %s: %w", dir.CachePath(), err)
	}
	var run litani.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse cache store %s: %w", dir.CachePath(), err)
	}
	return &run, nil
}
