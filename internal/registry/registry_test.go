package registry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/caevv/litani/internal/litani"
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

func TestAddJob_AssignsIdentity(t *testing.T) {
	dir := newDir(t)

	spec := litani.JobSpec{
		PipelineName: "compile",
		CIStage:      litani.StageBuild,
		Command:      litani.NewCommandSpec("true"),
	}
	added, err := AddJob(dir, spec, nil)
	if err != nil {
		t.Fatalf("AddJob() error: %v", err)
	}

	if added.JobID == "" {
		t.Error("AddJob() did not assign a job ID")
	}
	if added.StatusFile == "" {
		t.Error("AddJob() did not assign a status file")
	}
	if !strings.HasPrefix(added.StatusFile, dir.StatusDir()) {
		t.Errorf("status file %q not under %q", added.StatusFile, dir.StatusDir())
	}
	if filepath.Dir(added.StatusFile) != dir.StatusDir() {
		t.Errorf("status file %q not directly in the status directory", added.StatusFile)
	}
}

func TestAddJob_UnknownPoolRejected(t *testing.T) {
	dir := newDir(t)

	spec := litani.JobSpec{
		PipelineName: "compile",
		CIStage:      litani.StageBuild,
		Command:      litani.NewCommandSpec("true"),
		Description:  "link step",
		Pool:         "io",
	}
	_, err := AddJob(dir, spec, map[string]litani.Pool{})
	if err == nil {
		t.Fatal("AddJob() should reject a job referencing an unknown pool")
	}
	if !strings.Contains(err.Error(), "link step") || !strings.Contains(err.Error(), "io") {
		t.Errorf("diagnostic %q should name the job description and pool", err)
	}
}

func TestAddJob_MutuallyExclusiveTimeoutPolicy(t *testing.T) {
	dir := newDir(t)

	spec := litani.JobSpec{
		PipelineName:  "compile",
		CIStage:       litani.StageBuild,
		Command:       litani.NewCommandSpec("true"),
		TimeoutOk:     true,
		TimeoutIgnore: true,
	}
	if _, err := AddJob(dir, spec, nil); err == nil {
		t.Error("AddJob() should reject timeout_ok together with timeout_ignore")
	}
}

func TestLoadAll_InsertionOrder(t *testing.T) {
	dir := newDir(t)

	added := []string{"first", "second", "third"}
	for _, pipeline := range added {
		spec := litani.JobSpec{
			PipelineName: pipeline,
			CIStage:      litani.StageBuild,
			Command:      litani.NewCommandSpec("true"),
		}
		if _, err := AddJob(dir, spec, nil); err != nil {
			t.Fatalf("AddJob(%s) error: %v", pipeline, err)
		}
	}

	specs, err := LoadAll(dir)
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("LoadAll() returned %d specs, want 3", len(specs))
	}
	for i, spec := range specs {
		if spec.PipelineName != added[i] {
			t.Errorf("LoadAll()[%d] = %s, want %s (add-job order)", i, spec.PipelineName, added[i])
		}
		if spec.AddOrdinal != i {
			t.Errorf("LoadAll()[%d].AddOrdinal = %d, want %d", i, spec.AddOrdinal, i)
		}
	}
}

func TestValidateAll(t *testing.T) {
	specs := []*litani.JobSpec{
		{PipelineName: "p", CIStage: litani.StageBuild, Pool: "io", Description: "reader"},
	}

	pools := map[string]litani.Pool{"io": {Name: "io", Depth: 1}}
	if err := ValidateAll(specs, pools); err != nil {
		t.Errorf("ValidateAll() with known pool error: %v", err)
	}
	if err := ValidateAll(specs, map[string]litani.Pool{}); err == nil {
		t.Error("ValidateAll() should fail for an unknown pool")
	}
}
