package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// capabilities enumerates the features this build of litani supports, so
// wrapper tooling can probe before relying on a flag.
var capabilities = []string{
	"pools",
	"pools_file",
	"bulk_job_manifest",
	"outcome_table",
	"memory_profiling",
	"timeout_ok",
	"timeout_ignore",
	"dry_run",
	"pipeline_filtering",
	"ci_stage_filtering",
	"fail_on_pipeline_failure",
	"history_index",
	"graph_dot",
	"output_symlink",
}

var printCapabilitiesCmd = &cobra.Command{
	Use:   "print-capabilities",
	Short: "Enumerate the features this build supports",
	RunE:  runPrintCapabilities,
}

func init() {
	printCapabilitiesCmd.Flags().BoolP("machine-readable", "r", false, "Emit the capability list as JSON")
}

func runPrintCapabilities(cmd *cobra.Command, args []string) error {
	machineReadable, _ := cmd.Flags().GetBool("machine-readable")

	if machineReadable {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(capabilities)
	}

	for _, cap := range capabilities {
		fmt.Println(cap)
	}
	return nil
}
