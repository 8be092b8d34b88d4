package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caevv/litani/internal/executor"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run a single job under the execution wrapper",
	Long: `Run one job under litani's execution wrapper: status-file double write,
timeout enforcement, memory sampling, outcome classification, and
artifact copying.

This is the per-job entry point run-build's build specification invokes;
it is rarely useful by hand but accepts every add-job flag plus the
bookkeeping pair --job-id and --status-file. The process exit code is
the classified wrapper return code.`,
	RunE: runExec,
}

func init() {
	registerJobFlags(execCmd)
	execCmd.Flags().String("status-file", "", "Path to write the job's status document to (required)")
	execCmd.Flags().String("job-id", "", "ID of the job being executed (required)")
	execCmd.MarkFlagRequired("status-file")
	execCmd.MarkFlagRequired("job-id")
}

func runExec(cmd *cobra.Command, args []string) error {
	spec, err := jobSpecFromFlags(cmd)
	if err != nil {
		return err
	}
	spec.JobID, _ = cmd.Flags().GetString("job-id")
	spec.StatusFile, _ = cmd.Flags().GetString("status-file")
	if spec.ProfileMemoryInterval == 0 {
		spec.ProfileMemoryInterval = 1
	}

	dir, err := loadRunDir()
	if err != nil {
		return err
	}

	runner := executor.New(dir, logger)
	status, err := runner.Run(cmd.Context(), &spec)
	if err != nil {
		return fmt.Errorf("execute job %s: %w", spec.JobID, err)
	}

	if status.WrapperReturnCode != 0 {
		os.Exit(status.WrapperReturnCode)
	}
	return nil
}
