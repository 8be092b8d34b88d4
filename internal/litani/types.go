// Package litani holds the data model shared across the scheduling and
// execution core: job specifications, the run document, job status, and the
// outcome algebra. Every other internal package imports this one; it
// imports none of them.
package litani

import (
	"time"
)

// CIStage is a coarse phase label used for filtering a build.
type CIStage string

const (
	StageBuild  CIStage = "build"
	StageTest   CIStage = "test"
	StageReport CIStage = "report"
)

// RunStatus is the terminal or in-progress state of a whole run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunSuccess    RunStatus = "success"
	RunFailure    RunStatus = "failure"
)

// Outcome is the classified result of a single job after outcome-policy
// rules (ignore/ok/timeout/table) have been applied.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFail        Outcome = "fail"
	OutcomeFailIgnored Outcome = "fail_ignored"
)

// JobState is a node's position in the dispatcher's per-job state machine.
type JobState string

const (
	JobPending  JobState = "pending"
	JobReady    JobState = "ready"
	JobRunning  JobState = "running"
	JobSkipped  JobState = "skipped"
	JobSucceeded    JobState = "succeeded"
	JobFailed       JobState = "failed"
	JobFailedIgnored JobState = "failed_ignored"
)

// Pool is a named, bounded-concurrency bucket. Depth must be >= 1.
type Pool struct {
	Name  string `json:"name" yaml:"name"`
	Depth int    `json:"depth" yaml:"depth"`
}

// JobSpec is the immutable record produced by add-job.
type JobSpec struct {
	// identity
	JobID        string  `json:"job_id"`
	PipelineName string  `json:"pipeline_name"`
	CIStage      CIStage `json:"ci_stage"`

	// graph
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`

	// execution
	Command                 CommandSpec `json:"command"`
	Cwd                     string      `json:"cwd,omitempty"`
	TimeoutSec              int         `json:"timeout_sec,omitempty"`
	StdoutFile              string      `json:"stdout_file,omitempty"`
	StderrFile              string      `json:"stderr_file,omitempty"`
	InterleaveStdoutStderr  bool        `json:"interleave_stdout_stderr"`
	Description             string      `json:"description,omitempty"`
	Pool                    string      `json:"pool,omitempty"`

	// outcome policy
	IgnoreReturns  []int  `json:"ignore_returns,omitempty"`
	OkReturns      []int  `json:"ok_returns,omitempty"`
	TimeoutOk      bool   `json:"timeout_ok"`
	TimeoutIgnore  bool   `json:"timeout_ignore"`
	OutcomeTable   string `json:"outcome_table,omitempty"`

	// observability
	ProfileMemory         bool     `json:"profile_memory"`
	ProfileMemoryInterval int      `json:"profile_memory_interval,omitempty"`
	Tags                  []string `json:"tags,omitempty"`

	// bookkeeping
	StatusFile string `json:"status_file"`
	// AddOrdinal is the position this job was added at, assigned by the
	// registry. It is the primary sort key when loading jobs back, so
	// ties among simultaneously-ready jobs break in add-job order.
	AddOrdinal int `json:"add_ordinal"`
}

// Validate checks the invariants a JobSpec must satisfy in isolation
// (pool membership against a known set, mutually-exclusive timeout
// policy). DAG-wide invariants (cycles) are checked by the graph
// assembler, not here.
func (j *JobSpec) Validate(knownPools map[string]Pool) error {
	if j.TimeoutOk && j.TimeoutIgnore {
		return &ValidationError{Job: j.Description, Reason: "timeout_ok and timeout_ignore are mutually exclusive"}
	}
	if j.Pool != "" {
		if _, ok := knownPools[j.Pool]; !ok {
			return &ValidationError{Job: j.Description, Reason: "references unknown pool " + j.Pool}
		}
	}
	if j.TimeoutSec < 0 {
		return &ValidationError{Job: j.Description, Reason: "timeout_sec must be non-negative"}
	}
	if j.ProfileMemoryInterval < 0 {
		return &ValidationError{Job: j.Description, Reason: "profile_memory_interval must be non-negative"}
	}
	return nil
}

// ValidationError names the offending job and the reason it was
// rejected.
type ValidationError struct {
	Job    string
	Reason string
}

func (e *ValidationError) Error() string {
	job := e.Job
	if job == "" {
		job = "(no description)"
	}
	return "job " + job + ": " + e.Reason
}

// TimelineSample is one point in the parallelism timeline.
type TimelineSample struct {
	TSeconds     float64 `json:"t_seconds"`
	RunningCount int     `json:"running_count"`
}

// Timeline is the sequence of running-job-count samples over a run's
// wall-clock, sealed at finalization.
type Timeline struct {
	Samples []TimelineSample `json:"samples"`
	sealed  bool
}

// Append records a sample. Coalesces with the previous sample if it has
// the same timestamp.
func (t *Timeline) Append(tSeconds float64, runningCount int) {
	if t.sealed {
		return
	}
	if n := len(t.Samples); n > 0 && t.Samples[n-1].TSeconds == tSeconds {
		t.Samples[n-1].RunningCount = runningCount
		return
	}
	t.Samples = append(t.Samples, TimelineSample{TSeconds: tSeconds, RunningCount: runningCount})
}

// Seal freezes the timeline against further appends.
func (t *Timeline) Seal() {
	t.sealed = true
}

// MemorySample is one RSS measurement taken during memory profiling.
type MemorySample struct {
	TSeconds float64 `json:"t_seconds"`
	RSSBytes int64   `json:"rss_bytes"`
}

// JobStatus is written atomically to a job's status_file twice: once as a
// start placeholder, once as the final record.
type JobStatus struct {
	WrapperArguments   JobSpec        `json:"wrapper_arguments"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time,omitempty"`
	Complete           bool           `json:"complete"`
	Outcome            Outcome        `json:"outcome,omitempty"`
	WrapperReturnCode  int            `json:"wrapper_return_code"`
	CommandReturnCode  *int           `json:"command_return_code,omitempty"`
	TimedOut           bool           `json:"timed_out,omitempty"`
	Stdout             []string       `json:"stdout,omitempty"`
	Stderr             []string       `json:"stderr,omitempty"`
	MemoryTrace        []MemorySample `json:"memory_trace,omitempty"`
}

// Run is the Cache Store document: the persistent aggregate of one build.
type Run struct {
	RunID        string           `json:"run_id"`
	Project      string           `json:"project"`
	Version      string           `json:"version,omitempty"`
	VersionMajor int              `json:"version_major"`
	VersionMinor int              `json:"version_minor"`
	VersionPatch int              `json:"version_patch"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	Status       RunStatus        `json:"status"`
	Pools        map[string]int   `json:"pools"`
	Jobs         []JobSpec        `json:"jobs"`
	Parallelism  Timeline         `json:"parallelism"`
	Aux          map[string]any   `json:"aux,omitempty"`
}

// ParsePositiveInt parses s as a strictly positive integer, raising a
// diagnostic that names the offending value.
func ParsePositiveInt(name, s string) (int, error) {
	v, err := parseInt(s)
	if err != nil {
		return 0, &PositiveIntError{Name: name, Value: s, Cause: err}
	}
	if v <= 0 {
		return 0, &PositiveIntError{Name: name, Value: s}
	}
	return v, nil
}

// PositiveIntError reports a non-positive or unparsable value passed
// where a positive integer was required.
type PositiveIntError struct {
	Name  string
	Value string
	Cause error
}

func (e *PositiveIntError) Error() string {
	if e.Cause != nil {
		return "invalid " + e.Name + ": " + e.Value + " is not an integer"
	}
	return "invalid " + e.Name + ": got " + e.Value + ", want a positive integer"
}

func (e *PositiveIntError) Unwrap() error { return e.Cause }
