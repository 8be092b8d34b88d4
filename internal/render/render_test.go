package render

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/caevv/litani/internal/cachestore"
	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/registry"
	"github.com/caevv/litani/internal/rundir"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seedRun(t *testing.T) (*rundir.Dir, *litani.JobSpec) {
	t.Helper()
	dir, err := rundir.New(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("rundir.New() error: %v", err)
	}
	run := &litani.Run{
		RunID:     "run-1",
		Project:   "proj",
		StartTime: time.Now().UTC(),
		Status:    litani.RunInProgress,
	}
	if err := cachestore.Create(dir, run); err != nil {
		t.Fatalf("cachestore.Create() error: %v", err)
	}
	spec, err := registry.AddJob(dir, litani.JobSpec{
		PipelineName: "p",
		CIStage:      litani.StageBuild,
		Command:      litani.NewCommandSpec("true"),
	}, nil)
	if err != nil {
		t.Fatalf("registry.AddJob() error: %v", err)
	}
	return dir, spec
}

func readSnapshot(t *testing.T, dir *rundir.Dir) *Snapshot {
	t.Helper()
	data, err := os.ReadFile(dir.RunJSONPath())
	if err != nil {
		t.Fatalf("read run.json: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("parse run.json: %v", err)
	}
	return &snap
}

func TestRender_JobWithoutStatus(t *testing.T) {
	dir, spec := seedRun(t)

	r := New(dir, testLogger(), "")
	if err := r.render(); err != nil {
		t.Fatalf("render() error: %v", err)
	}

	snap := readSnapshot(t, dir)
	if snap.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", snap.RunID)
	}
	if len(snap.Jobs) != 1 {
		t.Fatalf("snapshot has %d jobs, want 1", len(snap.Jobs))
	}
	if snap.Jobs[0].JobID != spec.JobID {
		t.Errorf("jobs[0].job_id = %q, want %q", snap.Jobs[0].JobID, spec.JobID)
	}
	if snap.Jobs[0].Status != nil {
		t.Error("job without a status file should have a nil status")
	}
}

func TestRender_MergesStatus(t *testing.T) {
	dir, spec := seedRun(t)

	status := litani.JobStatus{
		WrapperArguments: *spec,
		StartTime:        time.Now().UTC(),
		Complete:         true,
		Outcome:          litani.OutcomeSuccess,
	}
	data, _ := json.Marshal(&status)
	if err := os.WriteFile(spec.StatusFile, data, 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(dir, testLogger(), "")
	if err := r.render(); err != nil {
		t.Fatalf("render() error: %v", err)
	}

	snap := readSnapshot(t, dir)
	if snap.Jobs[0].Status == nil {
		t.Fatal("status not merged into snapshot")
	}
	if snap.Jobs[0].Status.Outcome != litani.OutcomeSuccess {
		t.Errorf("merged outcome = %v, want success", snap.Jobs[0].Status.Outcome)
	}
}

func TestRender_ToleratesPartialStatusFile(t *testing.T) {
	dir, spec := seedRun(t)

	// Simulate a status file caught mid-write.
	if err := os.WriteFile(spec.StatusFile, []byte(`{"complete": tr`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(dir, testLogger(), "")
	if err := r.render(); err != nil {
		t.Fatalf("render() should tolerate a partial status file, got: %v", err)
	}

	snap := readSnapshot(t, dir)
	if snap.Jobs[0].Status != nil {
		t.Error("unparseable status file should be treated as running (nil status)")
	}
}

func TestRun_FinalFlushOnCancel(t *testing.T) {
	dir, _ := seedRun(t)

	r := New(dir, testLogger(), "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("renderer did not stop after cancellation")
	}

	if _, err := os.Stat(dir.RunJSONPath()); err != nil {
		t.Errorf("final flush did not write run.json: %v", err)
	}
}

func TestRender_SwapsHTMLSymlink(t *testing.T) {
	dir, _ := seedRun(t)
	reportDir := t.TempDir()

	r := New(dir, testLogger(), reportDir)
	if err := r.render(); err != nil {
		t.Fatalf("render() error: %v", err)
	}

	link, err := os.Readlink(dir.Root + "/html")
	if err != nil {
		t.Fatalf("html symlink not created: %v", err)
	}
	if link != reportDir {
		t.Errorf("html symlink points at %q, want %q", link, reportDir)
	}
}
