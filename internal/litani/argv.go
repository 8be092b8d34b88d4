package litani

import (
	"strconv"
	"strings"
)

// ToExecutorArgv builds the exec-subcommand invocation that re-runs this
// job under the wrapper: every populated field expressed as the flags
// exec accepts, plus the bookkeeping --job-id/--status-file pair. List
// fields are passed as one space-separated argument per flag. The
// JobSpec is the single source of truth here; nothing is derived by
// reflection.
func (j *JobSpec) ToExecutorArgv(program string) []string {
	argv := []string{
		program, "exec",
		"--job-id", j.JobID,
		"--status-file", j.StatusFile,
		"--pipeline-name", j.PipelineName,
		"--ci-stage", string(j.CIStage),
		"--command", j.Command.String(),
	}

	if len(j.Inputs) > 0 {
		argv = append(argv, "--inputs", strings.Join(j.Inputs, " "))
	}
	if len(j.Outputs) > 0 {
		argv = append(argv, "--outputs", strings.Join(j.Outputs, " "))
	}
	if j.Cwd != "" {
		argv = append(argv, "--cwd", j.Cwd)
	}
	if j.TimeoutSec > 0 {
		argv = append(argv, "--timeout", strconv.Itoa(j.TimeoutSec))
	}
	if j.StdoutFile != "" {
		argv = append(argv, "--stdout-file", j.StdoutFile)
	}
	if j.StderrFile != "" {
		argv = append(argv, "--stderr-file", j.StderrFile)
	}
	if j.InterleaveStdoutStderr {
		argv = append(argv, "--interleave-stdout-stderr")
	}
	if j.Description != "" {
		argv = append(argv, "--description", j.Description)
	}
	if j.Pool != "" {
		argv = append(argv, "--pool", j.Pool)
	}
	if len(j.IgnoreReturns) > 0 {
		argv = append(argv, "--ignore-returns", strings.Join(intStrings(j.IgnoreReturns), " "))
	}
	if len(j.OkReturns) > 0 {
		argv = append(argv, "--ok-returns", strings.Join(intStrings(j.OkReturns), " "))
	}
	if j.TimeoutOk {
		argv = append(argv, "--timeout-ok")
	}
	if j.TimeoutIgnore {
		argv = append(argv, "--timeout-ignore")
	}
	if j.OutcomeTable != "" {
		argv = append(argv, "--outcome-table", j.OutcomeTable)
	}
	if j.ProfileMemory {
		argv = append(argv, "--profile-memory")
		argv = append(argv, "--profile-memory-interval", strconv.Itoa(j.ProfileMemoryInterval))
	}
	if len(j.Tags) > 0 {
		argv = append(argv, "--tags", strings.Join(j.Tags, " "))
	}

	return argv
}

func intStrings(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
