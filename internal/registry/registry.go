// Package registry persists job submissions: add-job submissions each
// get a fresh UUID and a computed status-file path, and are stored as
// one file per job under the run directory's jobs/ subdirectory. At
// run-build start, LoadAll reads every file in that directory back; the
// run document's jobs list is filled from them at finalization.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/rundir"
)

// AddJob assigns a fresh job_id, status_file path, and add-ordinal to
// spec, validates it against the known pool set, and atomically persists
// it to <run>/jobs/<job_id>.json. Returns the finalized spec.
func AddJob(dir *rundir.Dir, spec litani.JobSpec, knownPools map[string]litani.Pool) (*litani.JobSpec, error) {
	if err := spec.Validate(knownPools); err != nil {
		return nil, err
	}

	ordinal, err := nextOrdinal(dir)
	if err != nil {
		return nil, err
	}

	spec.JobID = uuid.New().String()
	spec.StatusFile = filepath.Join(dir.StatusDir(), spec.JobID+".json")
	spec.AddOrdinal = ordinal

	data, err := json.MarshalIndent(&spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job spec: %w", err)
	}

	path := filepath.Join(dir.JobsDir(), spec.JobID+".json")
	if err := rundir.AtomicWrite(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write job spec %s: %w", path, err)
	}

	return &spec, nil
}

// nextOrdinal counts the job files already registered, so the next
// submission sorts after every earlier one. add-job submissions are
// sequential CLI invocations, so the count is race-free in practice.
func nextOrdinal(dir *rundir.Dir) (int, error) {
	entries, err := os.ReadDir(dir.JobsDir())
	if err != nil {
		return 0, fmt.Errorf("read jobs directory %s: %w", dir.JobsDir(), err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			count++
		}
	}
	return count, nil
}

// LoadAll reads every job spec file under the run directory's jobs/
// subdirectory, sorted by add-ordinal (the order the jobs were
// submitted), with job_id as the stable tie-break.
func LoadAll(dir *rundir.Dir) ([]*litani.JobSpec, error) {
	entries, err := os.ReadDir(dir.JobsDir())
	if err != nil {
		return nil, fmt.Errorf("read jobs directory %s: %w", dir.JobsDir(), err)
	}

	var specs []*litani.JobSpec
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir.JobsDir(), entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read job spec %s: %w", path, err)
		}
		var spec litani.JobSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse job spec %s: %w", path, err)
		}
		specs = append(specs, &spec)
	}

	sort.Slice(specs, func(i, j int) bool {
		if specs[i].AddOrdinal != specs[j].AddOrdinal {
			return specs[i].AddOrdinal < specs[j].AddOrdinal
		}
		return specs[i].JobID < specs[j].JobID
	})
	return specs, nil
}

// ValidateAll re-checks every loaded job against the known pool set: a
// job referencing a non-existent pool yields an error naming the job
// description and offending pool.
func ValidateAll(specs []*litani.JobSpec, knownPools map[string]litani.Pool) error {
	for _, spec := range specs {
		if err := spec.Validate(knownPools); err != nil {
			return err
		}
	}
	return nil
}
