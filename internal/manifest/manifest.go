// Package manifest loads the two YAML input files litani accepts: the
// bulk job manifest consumed by `add-job --from-file` and the
// pool-definition file consumed by `init --pools-file`. Both follow the
// same pipeline: parse, apply defaults, validate before use.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/caevv/litani/internal/litani"
)

// JobEntry is one entry in a bulk job manifest: the same shape add-job's
// flags populate, expressed as YAML.
type JobEntry struct {
	PipelineName           string             `yaml:"pipeline_name"`
	CIStage                litani.CIStage     `yaml:"ci_stage"`
	Inputs                 []string           `yaml:"inputs"`
	Outputs                []string           `yaml:"outputs"`
	Command                litani.CommandSpec `yaml:"command"`
	Cwd                    string             `yaml:"cwd"`
	TimeoutSec             int                `yaml:"timeout_sec"`
	StdoutFile             string             `yaml:"stdout_file"`
	StderrFile             string             `yaml:"stderr_file"`
	InterleaveStdoutStderr bool               `yaml:"interleave_stdout_stderr"`
	Description            string             `yaml:"description"`
	Pool                   string             `yaml:"pool"`
	IgnoreReturns          []int              `yaml:"ignore_returns"`
	OkReturns              []int              `yaml:"ok_returns"`
	TimeoutOk              bool               `yaml:"timeout_ok"`
	TimeoutIgnore          bool               `yaml:"timeout_ignore"`
	OutcomeTable           string             `yaml:"outcome_table"`
	ProfileMemory          bool               `yaml:"profile_memory"`
	ProfileMemoryInterval  int                `yaml:"profile_memory_interval"`
	Tags                   []string           `yaml:"tags"`
}

// jobManifestFile is the on-disk shape of a bulk job manifest.
type jobManifestFile struct {
	Jobs []JobEntry `yaml:"jobs"`
}

// LoadJobs reads a bulk job manifest and returns the equivalent JobSpecs
// (without job_id/status_file, which the Job Registry assigns on add).
func LoadJobs(path string) ([]litani.JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job manifest %s: %w", path, err)
	}

	var file jobManifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse job manifest %s: %w", path, err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("job manifest %s declares no jobs", path)
	}

	specs := make([]litani.JobSpec, 0, len(file.Jobs))
	for i, entry := range file.Jobs {
		if entry.PipelineName == "" {
			return nil, fmt.Errorf("job manifest %s entry %d: pipeline_name is required", path, i)
		}
		if entry.CIStage == "" {
			return nil, fmt.Errorf("job manifest %s entry %d: ci_stage is required", path, i)
		}
		if entry.Command.IsZero() {
			return nil, fmt.Errorf("job manifest %s entry %d: command is required", path, i)
		}
		if entry.ProfileMemoryInterval == 0 {
			entry.ProfileMemoryInterval = 1
		}

		specs = append(specs, litani.JobSpec{
			PipelineName:           entry.PipelineName,
			CIStage:                entry.CIStage,
			Inputs:                 entry.Inputs,
			Outputs:                entry.Outputs,
			Command:                entry.Command,
			Cwd:                    entry.Cwd,
			TimeoutSec:             entry.TimeoutSec,
			StdoutFile:             entry.StdoutFile,
			StderrFile:             entry.StderrFile,
			InterleaveStdoutStderr: entry.InterleaveStdoutStderr,
			Description:            entry.Description,
			Pool:                   entry.Pool,
			IgnoreReturns:          entry.IgnoreReturns,
			OkReturns:              entry.OkReturns,
			TimeoutOk:              entry.TimeoutOk,
			TimeoutIgnore:          entry.TimeoutIgnore,
			OutcomeTable:           entry.OutcomeTable,
			ProfileMemory:          entry.ProfileMemory,
			ProfileMemoryInterval:  entry.ProfileMemoryInterval,
			Tags:                   entry.Tags,
		})
	}
	return specs, nil
}

// poolsFile is the on-disk shape of a pool-definition file.
type poolsFile struct {
	Pools []litani.Pool `yaml:"pools"`
}

// LoadPools reads a pool-definition file, validating the same invariants
// flag-provided pools must satisfy (unique names, depth >= 1).
func LoadPools(path string) (map[string]litani.Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pools file %s: %w", path, err)
	}

	var file poolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pools file %s: %w", path, err)
	}

	pools := make(map[string]litani.Pool, len(file.Pools))
	for _, pool := range file.Pools {
		if pool.Name == "" {
			return nil, fmt.Errorf("pools file %s: pool with empty name", path)
		}
		if pool.Depth < 1 {
			return nil, fmt.Errorf("pools file %s: pool %q must have depth >= 1, got %d", path, pool.Name, pool.Depth)
		}
		if _, dup := pools[pool.Name]; dup {
			return nil, fmt.Errorf("pools file %s: duplicate pool name %q", path, pool.Name)
		}
		pools[pool.Name] = pool
	}
	return pools, nil
}
