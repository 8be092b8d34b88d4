// Package render implements the report renderer: a background worker
// that, at a fixed cadence, merges the job registry's specs with their
// current status files into a consolidated run.json, written via the
// atomic-write primitive, then swaps the html symlink to point at the
// freshly staged report directory.
//
// The renderer must tolerate partially-written or currently-being-written
// status files (an unparseable one is treated as "running") and must
// never bring down the dispatcher on a rendering failure.
package render

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caevv/litani/internal/cachestore"
	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/registry"
	"github.com/caevv/litani/internal/rundir"
)

// Interval is the renderer's fixed tick cadence.
const Interval = 2 * time.Second

// Snapshot is the consolidated view written to run.json: the Run
// document with each job's latest status merged in under jobs[*].status.
// The outer Jobs field shadows the embedded Run's spec-only list.
type Snapshot struct {
	litani.Run
	Jobs []JobView `json:"jobs"`
}

// JobView is one jobs[*] entry: the JobSpec's fields inline plus the
// most recently observed status, if any.
type JobView struct {
	litani.JobSpec
	Status *litani.JobStatus `json:"status,omitempty"`
}

// Renderer periodically snapshots a run directory to run.json and, if an
// HTML report directory is configured, swaps the html symlink atomically
// to point at it.
type Renderer struct {
	dir       *rundir.Dir
	logger    *slog.Logger
	reportDir string
}

// New returns a Renderer for dir. reportDir may be empty, in which case
// the html symlink swap is skipped.
func New(dir *rundir.Dir, logger *slog.Logger, reportDir string) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{dir: dir, logger: logger, reportDir: reportDir}
}

// Run ticks every Interval, rendering a snapshot each time, until ctx is
// cancelled, at which point it flushes one final render before returning.
func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.renderOnce()
			return
		case <-ticker.C:
			r.renderOnce()
		}
	}
}

// renderOnce performs a single render pass, isolating any failure so the
// tick loop (and the dispatcher it runs alongside) is never brought down
// by a rendering error.
func (r *Renderer) renderOnce() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("renderer panic recovered", "panic", rec)
		}
	}()

	if err := r.render(); err != nil {
		r.logger.Warn("render pass failed, will retry next tick", "error", err)
	}
}

func (r *Renderer) render() error {
	run, err := cachestore.Load(r.dir)
	if err != nil {
		return err
	}

	specs, err := registry.LoadAll(r.dir)
	if err != nil {
		return err
	}

	views := make([]JobView, 0, len(specs))
	for _, spec := range specs {
		view := JobView{JobSpec: *spec}
		if status := r.readStatusTolerant(spec.StatusFile); status != nil {
			view.Status = status
		}
		views = append(views, view)
	}

	snapshot := Snapshot{Run: *run, Jobs: views}
	data, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return err
	}
	if err := rundir.AtomicWrite(r.dir.RunJSONPath(), data, 0o644); err != nil {
		return err
	}

	if r.reportDir != "" {
		if err := os.MkdirAll(r.reportDir, 0o755); err != nil {
			return err
		}
		htmlLink := filepath.Join(r.dir.Root, "html")
		if err := rundir.SwapSymlink(htmlLink, r.reportDir); err != nil {
			return err
		}
	}

	return nil
}

// readStatusTolerant reads and parses a job's status file. A missing or
// unparseable file (one mid-write) is treated as "no status yet" rather
// than an error.
func (r *Renderer) readStatusTolerant(path string) *litani.JobStatus {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var status litani.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil
	}
	return &status
}
