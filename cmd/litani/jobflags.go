package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caevv/litani/internal/litani"
)

// registerJobFlags attaches the add-job flag set to cmd. exec
// additionally needs --status-file/--job-id, registered by its own
// caller; registerJobFlags covers the fields the two commands share.
func registerJobFlags(cmd *cobra.Command) {
	cmd.Flags().String("pipeline-name", "", "pipeline this job belongs to (required)")
	cmd.Flags().String("ci-stage", "", "CI stage: build, test, or report (required)")
	cmd.Flags().StringSlice("inputs", nil, "space-separated list of input paths")
	cmd.Flags().StringSlice("outputs", nil, "space-separated list of output paths")
	cmd.Flags().String("command", "", "shell command to execute (required)")
	cmd.Flags().String("cwd", "", "working directory for the command")
	cmd.Flags().String("timeout", "", "timeout in seconds (positive integer)")
	cmd.Flags().String("stdout-file", "", "file to mirror stdout to")
	cmd.Flags().String("stderr-file", "", "file to mirror stderr to")
	cmd.Flags().Bool("interleave-stdout-stderr", false, "merge stderr into stdout's destination")
	cmd.Flags().String("description", "", "human-readable job description")
	cmd.Flags().String("pool", "", "pool this job runs in")
	cmd.Flags().StringSlice("ignore-returns", nil, "space-separated return codes that count as success")
	cmd.Flags().StringSlice("ok-returns", nil, "space-separated return codes that count as fail_ignored")
	cmd.Flags().Bool("timeout-ok", false, "a timeout counts as success")
	cmd.Flags().Bool("timeout-ignore", false, "a timeout counts as fail_ignored")
	cmd.Flags().String("outcome-table", "", "path to a JSON map<string,Outcome>")
	cmd.Flags().Bool("profile-memory", false, "sample the RSS of the job's top-level process while running (child processes are not counted)")
	cmd.Flags().String("profile-memory-interval", "1", "seconds between memory samples")
	cmd.Flags().StringSlice("tags", nil, "space-separated free-form tags")
}

// jobSpecFromFlags builds a litani.JobSpec from the flags registerJobFlags
// attached. It does not assign job_id or status_file; the Job Registry
// (add-job) or the caller (exec) does that.
func jobSpecFromFlags(cmd *cobra.Command) (litani.JobSpec, error) {
	var spec litani.JobSpec

	pipelineName, _ := cmd.Flags().GetString("pipeline-name")
	ciStage, _ := cmd.Flags().GetString("ci-stage")
	command, _ := cmd.Flags().GetString("command")
	if pipelineName == "" {
		return spec, fmt.Errorf("--pipeline-name is required")
	}
	if ciStage == "" {
		return spec, fmt.Errorf("--ci-stage is required")
	}
	if command == "" {
		return spec, fmt.Errorf("--command is required")
	}

	spec.PipelineName = pipelineName
	spec.CIStage = litani.CIStage(ciStage)
	spec.Command = litani.NewCommandSpec(command)

	inputs, _ := cmd.Flags().GetStringSlice("inputs")
	spec.Inputs = splitList(inputs)
	outputs, _ := cmd.Flags().GetStringSlice("outputs")
	spec.Outputs = splitList(outputs)
	spec.Cwd, _ = cmd.Flags().GetString("cwd")
	spec.StdoutFile, _ = cmd.Flags().GetString("stdout-file")
	spec.StderrFile, _ = cmd.Flags().GetString("stderr-file")
	spec.InterleaveStdoutStderr, _ = cmd.Flags().GetBool("interleave-stdout-stderr")
	spec.Description, _ = cmd.Flags().GetString("description")
	spec.Pool, _ = cmd.Flags().GetString("pool")
	spec.TimeoutOk, _ = cmd.Flags().GetBool("timeout-ok")
	spec.TimeoutIgnore, _ = cmd.Flags().GetBool("timeout-ignore")
	spec.OutcomeTable, _ = cmd.Flags().GetString("outcome-table")
	spec.ProfileMemory, _ = cmd.Flags().GetBool("profile-memory")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	spec.Tags = splitList(tags)

	if timeoutStr, _ := cmd.Flags().GetString("timeout"); timeoutStr != "" {
		v, err := litani.ParsePositiveInt("timeout", timeoutStr)
		if err != nil {
			return spec, err
		}
		spec.TimeoutSec = v
	}

	intervalStr, _ := cmd.Flags().GetString("profile-memory-interval")
	if intervalStr != "" {
		v, err := litani.ParsePositiveInt("profile-memory-interval", intervalStr)
		if err != nil {
			return spec, err
		}
		spec.ProfileMemoryInterval = v
	}

	ignoreReturns, _ := cmd.Flags().GetStringSlice("ignore-returns")
	ints, err := parseIntList(splitList(ignoreReturns))
	if err != nil {
		return spec, fmt.Errorf("--ignore-returns: %w", err)
	}
	spec.IgnoreReturns = ints

	okReturns, _ := cmd.Flags().GetStringSlice("ok-returns")
	ints, err = parseIntList(splitList(okReturns))
	if err != nil {
		return spec, fmt.Errorf("--ok-returns: %w", err)
	}
	spec.OkReturns = ints

	if spec.TimeoutOk && spec.TimeoutIgnore {
		return spec, fmt.Errorf("--timeout-ok and --timeout-ignore are mutually exclusive")
	}

	return spec, nil
}

// splitList flattens a flag's values so that both repeated flags and a
// single space-separated list are accepted.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Fields(v)...)
	}
	return out
}

func parseIntList(values []string) ([]int, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", v, err)
		}
		out = append(out, n)
	}
	return out, nil
}
