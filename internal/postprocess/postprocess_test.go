package postprocess

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/render"
	"github.com/caevv/litani/internal/rundir"
)

func newDir(t *testing.T) *rundir.Dir {
	t.Helper()
	dir, err := rundir.New(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("rundir.New() error: %v", err)
	}
	return dir
}

func spec(id, pipeline string) *litani.JobSpec {
	return &litani.JobSpec{
		JobID:        id,
		PipelineName: pipeline,
		CIStage:      litani.StageBuild,
		Command:      litani.NewCommandSpec("true"),
	}
}

func baseRun() *litani.Run {
	return &litani.Run{
		RunID:     "run-1",
		Project:   "proj",
		StartTime: time.Now().UTC(),
		Status:    litani.RunInProgress,
	}
}

func TestFinalize_AllSucceeded(t *testing.T) {
	dir := newDir(t)
	specs := []*litani.JobSpec{spec("a", "one"), spec("b", "two")}
	states := map[string]litani.JobState{
		"a": litani.JobSucceeded,
		"b": litani.JobFailedIgnored,
	}

	run, outcomes, err := Finalize(dir, baseRun(), specs, states, nil, litani.Timeline{})
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	if run.Status != litani.RunSuccess {
		t.Errorf("run status = %v, want success (fail_ignored does not poison)", run.Status)
	}
	if run.EndTime == nil {
		t.Error("EndTime not set")
	}
	for _, outcome := range outcomes {
		if outcome.Status != litani.RunSuccess {
			t.Errorf("pipeline %s = %v, want success", outcome.Pipeline, outcome.Status)
		}
	}
}

func TestFinalize_FailurePoisonsPipelineAndRun(t *testing.T) {
	dir := newDir(t)
	specs := []*litani.JobSpec{spec("a", "one"), spec("b", "one"), spec("c", "two")}
	states := map[string]litani.JobState{
		"a": litani.JobFailed,
		"b": litani.JobSkipped,
		"c": litani.JobSucceeded,
	}

	run, outcomes, err := Finalize(dir, baseRun(), specs, states, nil, litani.Timeline{})
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	if run.Status != litani.RunFailure {
		t.Errorf("run status = %v, want failure", run.Status)
	}

	byName := make(map[string]litani.RunStatus)
	for _, outcome := range outcomes {
		byName[outcome.Pipeline] = outcome.Status
	}
	if byName["one"] != litani.RunFailure {
		t.Errorf("pipeline one = %v, want failure", byName["one"])
	}
	if byName["two"] != litani.RunSuccess {
		t.Errorf("pipeline two = %v, want success", byName["two"])
	}
}

func TestFinalize_WritesCacheAndSnapshot(t *testing.T) {
	dir := newDir(t)
	specs := []*litani.JobSpec{spec("a", "one")}
	states := map[string]litani.JobState{"a": litani.JobSucceeded}
	statuses := map[string]*litani.JobStatus{
		"a": {WrapperArguments: *specs[0], Complete: true, Outcome: litani.OutcomeSuccess},
	}

	if _, _, err := Finalize(dir, baseRun(), specs, states, statuses, litani.Timeline{}); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	cacheData, err := os.ReadFile(dir.CachePath())
	if err != nil {
		t.Fatalf("cache store not written: %v", err)
	}
	var cached litani.Run
	if err := json.Unmarshal(cacheData, &cached); err != nil {
		t.Fatalf("parse cache store: %v", err)
	}
	if len(cached.Jobs) != 1 {
		t.Errorf("cache store has %d jobs, want 1", len(cached.Jobs))
	}

	snapData, err := os.ReadFile(dir.RunJSONPath())
	if err != nil {
		t.Fatalf("run.json not written: %v", err)
	}
	var snap render.Snapshot
	if err := json.Unmarshal(snapData, &snap); err != nil {
		t.Fatalf("parse run.json: %v", err)
	}
	if len(snap.Jobs) != 1 || snap.Jobs[0].Status == nil {
		t.Error("run.json should merge the job's status under jobs[*].status")
	}
	if snap.Jobs[0].Status.Outcome != litani.OutcomeSuccess {
		t.Errorf("jobs[0].status.outcome = %v, want success", snap.Jobs[0].Status.Outcome)
	}
}

func TestFinalize_Deterministic(t *testing.T) {
	// Repeated finalizations on the same inputs produce the same
	// pipeline outcomes.
	dir := newDir(t)
	specs := []*litani.JobSpec{spec("a", "one"), spec("b", "two")}
	states := map[string]litani.JobState{
		"a": litani.JobSucceeded,
		"b": litani.JobSucceeded,
	}

	_, first, err := Finalize(dir, baseRun(), specs, states, nil, litani.Timeline{})
	if err != nil {
		t.Fatalf("first Finalize() error: %v", err)
	}
	_, second, err := Finalize(dir, baseRun(), specs, states, nil, litani.Timeline{})
	if err != nil {
		t.Fatalf("second Finalize() error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("outcome counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("outcome %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}
