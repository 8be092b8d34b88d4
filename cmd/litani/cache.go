package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caevv/litani/internal/rundir"
)

// cachePointerName is the process-wide pointer file naming the current
// cache directory, written by init and consumed by every later
// subcommand in the same checkout.
const cachePointerName = ".litani_cache_dir"

// cachePointerPath resolves the pointer file location. LITANI_CACHE_POINTER
// overrides it (used by tests and by builds that cannot touch $HOME);
// otherwise it lives in the user's home directory.
func cachePointerPath() (string, error) {
	if override := os.Getenv("LITANI_CACHE_POINTER"); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for cache pointer: %w", err)
	}
	return filepath.Join(home, cachePointerName), nil
}

// loadRunDir follows the cache pointer to the current run directory.
func loadRunDir() (*rundir.Dir, error) {
	pointer, err := cachePointerPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(pointer)
	if err != nil {
		return nil, fmt.Errorf("no current run; did you run `litani init`? (%w)", err)
	}
	root := strings.TrimSpace(string(data))
	if root == "" {
		return nil, fmt.Errorf("cache pointer %s is empty; re-run `litani init`", pointer)
	}
	return rundir.OpenPath(root)
}

// historyPathFor locates the cross-run history index relative to a run
// directory: <output-prefix>/litani/history.db when the run lives under
// the standard prefix layout, or a sibling file in --output-directory
// mode.
func historyPathFor(dir *rundir.Dir) string {
	runsParent := filepath.Dir(dir.Root)
	if filepath.Base(runsParent) == "runs" {
		return filepath.Join(filepath.Dir(runsParent), "history.db")
	}
	return filepath.Join(runsParent, "litani-history.db")
}

// reportDirFor is the staged report directory the html symlink points
// at: <output-prefix>/litani/reports/<run_id> under the standard prefix
// layout, or a reports/ subdirectory in --output-directory mode.
func reportDirFor(dir *rundir.Dir, runID string) string {
	runsParent := filepath.Dir(dir.Root)
	if filepath.Base(runsParent) == "runs" {
		return filepath.Join(filepath.Dir(runsParent), "reports", runID)
	}
	return filepath.Join(dir.Root, "reports", runID)
}
