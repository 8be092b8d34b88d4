// Package rundir provides the on-disk home for a single run: the atomic
// write primitive every other component builds on, directory layout
// creation, and the atomic "latest" symlink swap.
package rundir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Dir is the on-disk home of one run.
type Dir struct {
	Root  string // <output-prefix>/litani/runs/<run_id>
	RunID string
}

// New creates the run directory tree under outputPrefix. runID may be
// empty, in which case a fresh UUID is generated (the LITANI_RUN_ID
// environment override is applied by the caller before calling New).
func New(outputPrefix, runID string) (*Dir, error) {
	if runID == "" {
		runID = uuid.New().String()
	}

	root := filepath.Join(outputPrefix, "litani", "runs", runID)
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("run directory already exists: %s", root)
	}

	for _, sub := range []string{"", "jobs", "status", "artifacts"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create run directory %s: %w", filepath.Join(root, sub), err)
		}
	}

	return &Dir{Root: root, RunID: runID}, nil
}

// NewExact creates the run directory tree at exactly root (the
// --output-directory mode), rather than deriving the path from an output
// prefix. Fails if root already exists.
func NewExact(root, runID string) (*Dir, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("output directory already exists: %s", root)
	}
	for _, sub := range []string{"", "jobs", "status", "artifacts"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create run directory %s: %w", filepath.Join(root, sub), err)
		}
	}
	return &Dir{Root: root, RunID: runID}, nil
}

// OpenPath reattaches to an existing run directory by its absolute path,
// as recorded in the cache pointer file. The returned RunID is the
// directory basename; callers that need the authoritative run_id read it
// from the Cache Store.
func OpenPath(root string) (*Dir, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("run directory not found: %s: %w", root, err)
	}
	return &Dir{Root: root, RunID: filepath.Base(root)}, nil
}

// Open reattaches to an existing run directory under outputPrefix by run
// ID. The CLI subcommands reattach through OpenPath and the cache pointer
// instead.
func Open(outputPrefix, runID string) (*Dir, error) {
	root := filepath.Join(outputPrefix, "litani", "runs", runID)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("run directory not found: %s: %w", root, err)
	}
	return &Dir{Root: root, RunID: runID}, nil
}

// CachePath is the Cache Store document path.
func (d *Dir) CachePath() string { return filepath.Join(d.Root, "cache.json") }

// JobsDir is where the Job Registry writes one file per JobSpec.
func (d *Dir) JobsDir() string { return filepath.Join(d.Root, "jobs") }

// StatusDir is where the Job Executor writes one file per job run.
func (d *Dir) StatusDir() string { return filepath.Join(d.Root, "status") }

// ArtifactsDir is the root of the copied-output archive.
func (d *Dir) ArtifactsDir() string { return filepath.Join(d.Root, "artifacts") }

// NinjaPath is the dispatcher's internal build-file input.
func (d *Dir) NinjaPath() string { return filepath.Join(d.Root, "litani.ninja") }

// RunJSONPath is the consolidated snapshot the Report Renderer produces.
func (d *Dir) RunJSONPath() string { return filepath.Join(d.Root, "run.json") }

// AtomicWrite writes data to path by writing a sibling temporary file,
// fsyncing it, then renaming it over path. Readers of path therefore
// always see either the previous complete contents or the new complete
// contents, never a partial write.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

// SwapSymlink atomically points linkPath at target: it creates a
// uniquely-named sibling symlink, then renames it over linkPath. External
// tools following linkPath concurrently never observe a missing or
// half-swapped target.
func SwapSymlink(linkPath, target string) error {
	dir := filepath.Dir(linkPath)
	tmpLink := filepath.Join(dir, fmt.Sprintf(".tmp-%s-%s", filepath.Base(linkPath), uuid.NewString()))

	if err := os.Symlink(target, tmpLink); err != nil {
		return fmt.Errorf("create temp symlink for %s: %w", linkPath, err)
	}
	if err := os.Rename(tmpLink, linkPath); err != nil {
		os.Remove(tmpLink)
		return fmt.Errorf("rename temp symlink to %s: %w", linkPath, err)
	}
	return nil
}

// WritePointerFile records the process-wide pointer to the current cache
// directory, written once by init.
func WritePointerFile(pointerPath, cacheDir string) error {
	return AtomicWrite(pointerPath, []byte(cacheDir+"\n"), 0o644)
}
