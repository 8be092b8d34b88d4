package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/caevv/litani/internal/cachestore"
	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/manifest"
	"github.com/caevv/litani/internal/rundir"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a run directory and seed the cache",
	Long: `Create a fresh run directory, write the cache pointer, and seed the
Cache Store with an empty run document.

Pools declared here bound how many jobs may run concurrently in each
named pool. The run ID is a fresh UUID unless LITANI_RUN_ID is set.

Examples:
  litani init --project-name my-proj
  litani init --project-name my-proj --pools "io:1 cpu:4"
  litani init --project-name my-proj --output-prefix /tmp/ci`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("project-name", "", "Name of the project this run builds (required)")
	initCmd.MarkFlagRequired("project-name")
	initCmd.Flags().StringSlice("pools", nil, "Pool declarations as NAME:DEPTH (space-separated)")
	initCmd.Flags().String("pools-file", "", "YAML file of pool declarations")
	initCmd.Flags().String("output-directory", "", "Exact directory to use as the run directory")
	initCmd.Flags().String("output-prefix", "", "Directory under which litani/runs/<run_id> is created (default \".\")")
	initCmd.Flags().String("output-symlink", "", "Symlink to maintain pointing at the run directory (default <runs>/latest)")
	initCmd.Flags().Bool("no-print-out-dir", false, "Suppress printing the report location")
}

func runInit(cmd *cobra.Command, args []string) error {
	projectName, _ := cmd.Flags().GetString("project-name")
	outputDirectory, _ := cmd.Flags().GetString("output-directory")
	outputPrefix, _ := cmd.Flags().GetString("output-prefix")
	outputSymlink, _ := cmd.Flags().GetString("output-symlink")
	noPrint, _ := cmd.Flags().GetBool("no-print-out-dir")

	if outputDirectory != "" && outputPrefix != "" {
		return fmt.Errorf("--output-directory and --output-prefix are mutually exclusive")
	}

	pools, err := collectPools(cmd)
	if err != nil {
		return err
	}

	runID := os.Getenv("LITANI_RUN_ID")

	var dir *rundir.Dir
	if outputDirectory != "" {
		dir, err = rundir.NewExact(outputDirectory, runID)
	} else {
		if outputPrefix == "" {
			outputPrefix = "."
		}
		dir, err = rundir.New(outputPrefix, runID)
	}
	if err != nil {
		return err
	}

	if outputSymlink == "" {
		outputSymlink = filepath.Join(filepath.Dir(dir.Root), "latest")
	}
	if err := rundir.SwapSymlink(outputSymlink, dir.Root); err != nil {
		return err
	}

	pointer, err := cachePointerPath()
	if err != nil {
		return err
	}
	if err := rundir.WritePointerFile(pointer, dir.Root); err != nil {
		return err
	}

	major, minor, patch := versionComponents()
	poolDepths := make(map[string]int, len(pools))
	for name, pool := range pools {
		poolDepths[name] = pool.Depth
	}
	run := &litani.Run{
		RunID:        dir.RunID,
		Project:      projectName,
		Version:      version,
		VersionMajor: major,
		VersionMinor: minor,
		VersionPatch: patch,
		StartTime:    time.Now().UTC(),
		Status:       litani.RunInProgress,
		Pools:        poolDepths,
		Jobs:         []litani.JobSpec{},
	}
	if err := cachestore.Create(dir, run); err != nil {
		return err
	}

	logger.Info("run initialized",
		"run_id", dir.RunID,
		"project", projectName,
		"run_dir", dir.Root,
		"pools", len(pools))

	if !noPrint {
		fmt.Printf("Report will be rendered at file://%s\n",
			filepath.Join(dir.Root, "html", "index.html"))
	}
	return nil
}

// collectPools merges --pools NAME:DEPTH declarations with a --pools-file,
// rejecting duplicates across both sources.
func collectPools(cmd *cobra.Command) (map[string]litani.Pool, error) {
	pools := make(map[string]litani.Pool)

	if poolsFile, _ := cmd.Flags().GetString("pools-file"); poolsFile != "" {
		loaded, err := manifest.LoadPools(poolsFile)
		if err != nil {
			return nil, err
		}
		pools = loaded
	}

	declarations, _ := cmd.Flags().GetStringSlice("pools")
	for _, decl := range splitList(declarations) {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, depthStr, found := strings.Cut(decl, ":")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid pool declaration %q, want NAME:DEPTH", decl)
		}
		depth, err := litani.ParsePositiveInt("pool depth for "+name, depthStr)
		if err != nil {
			return nil, err
		}
		if _, dup := pools[name]; dup {
			return nil, fmt.Errorf("duplicate pool name %q", name)
		}
		pools[name] = litani.Pool{Name: name, Depth: depth}
	}

	return pools, nil
}
