// Package postprocess finalizes a run after the dispatcher returns: it
// walks every job's terminal state, computes per-pipeline and run-level
// outcome, seals the cache document with an end_time and the parallelism
// timeline, and writes the final run.json.
package postprocess

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/registry"
	"github.com/caevv/litani/internal/render"
	"github.com/caevv/litani/internal/rundir"
)

// PipelineOutcome is the classified result of one pipeline_name group.
type PipelineOutcome struct {
	Pipeline string           `json:"pipeline"`
	Status   litani.RunStatus `json:"status"`
}

// Finalize computes pipeline and run outcomes from each job's terminal
// dispatcher state, seals the run document, and atomically writes both
// the Cache Store and the final run.json. Returns the finalized run and
// the per-pipeline breakdown.
func Finalize(
	dir *rundir.Dir,
	run *litani.Run,
	specs []*litani.JobSpec,
	states map[string]litani.JobState,
	statuses map[string]*litani.JobStatus,
	timeline litani.Timeline,
) (*litani.Run, []PipelineOutcome, error) {
	pipelineOK := make(map[string]bool)
	for _, spec := range specs {
		if _, seen := pipelineOK[spec.PipelineName]; !seen {
			pipelineOK[spec.PipelineName] = true
		}
		state := states[spec.JobID]
		if state != litani.JobSucceeded && state != litani.JobFailedIgnored {
			pipelineOK[spec.PipelineName] = false
		}
	}

	names := make([]string, 0, len(pipelineOK))
	for name := range pipelineOK {
		names = append(names, name)
	}
	sort.Strings(names)

	outcomes := make([]PipelineOutcome, 0, len(names))
	runOK := true
	for _, name := range names {
		status := litani.RunSuccess
		if !pipelineOK[name] {
			status = litani.RunFailure
			runOK = false
		}
		outcomes = append(outcomes, PipelineOutcome{Pipeline: name, Status: status})
	}

	now := time.Now().UTC()
	run.EndTime = &now
	run.Jobs = jobSpecValues(specs)
	timeline.Seal()
	run.Parallelism = timeline
	if runOK {
		run.Status = litani.RunSuccess
	} else {
		run.Status = litani.RunFailure
	}

	if err := writeCacheStore(dir, run); err != nil {
		return nil, nil, err
	}
	if err := writeFinalSnapshot(dir, run, specs, statuses); err != nil {
		return nil, nil, err
	}

	return run, outcomes, nil
}

func jobSpecValues(specs []*litani.JobSpec) []litani.JobSpec {
	out := make([]litani.JobSpec, len(specs))
	for i, s := range specs {
		out[i] = *s
	}
	return out
}

func writeCacheStore(dir *rundir.Dir, run *litani.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal finalized cache store: %w", err)
	}
	return rundir.AtomicWrite(dir.CachePath(), data, 0o644)
}

// writeFinalSnapshot writes the terminal run.json, reusing the renderer's
// view shape so readers see the same schema whether they caught the run
// in flight or read it after completion.
func writeFinalSnapshot(dir *rundir.Dir, run *litani.Run, specs []*litani.JobSpec, statuses map[string]*litani.JobStatus) error {
	views := make([]render.JobView, 0, len(specs))
	for _, spec := range specs {
		views = append(views, render.JobView{JobSpec: *spec, Status: statuses[spec.JobID]})
	}
	snapshot := render.Snapshot{Run: *run, Jobs: views}
	data, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal final run.json: %w", err)
	}
	return rundir.AtomicWrite(dir.RunJSONPath(), data, 0o644)
}

// LoadSpecsForFinalize reloads job specs from the registry in the order
// Finalize expects (registry.LoadAll order).
func LoadSpecsForFinalize(dir *rundir.Dir) ([]*litani.JobSpec, error) {
	return registry.LoadAll(dir)
}
