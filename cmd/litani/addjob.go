package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caevv/litani/internal/cachestore"
	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/manifest"
	"github.com/caevv/litani/internal/registry"
	"github.com/caevv/litani/internal/rundir"
)

var addJobCmd = &cobra.Command{
	Use:   "add-job",
	Short: "Declare one job in the current run",
	Long: `Add a job to the current run's registry. The job is not executed until
run-build; add-job only persists the spec and assigns it a job ID.

Dependency edges are derived from --inputs/--outputs path matches against
other jobs' declarations; the paths are compared literally.

Examples:
  litani add-job --pipeline-name compile --ci-stage build \
    --command "make lib.a" --outputs lib.a

  litani add-job --pipeline-name compile --ci-stage test \
    --command "./run-tests lib.a" --inputs lib.a \
    --timeout 300 --timeout-ignore --pool io

  litani add-job --from-file jobs.yaml`,
	RunE: runAddJob,
}

func init() {
	registerJobFlags(addJobCmd)
	addJobCmd.Flags().String("from-file", "", "YAML manifest declaring multiple jobs at once")
}

func runAddJob(cmd *cobra.Command, args []string) error {
	dir, err := loadRunDir()
	if err != nil {
		return err
	}
	run, err := cachestore.Load(dir)
	if err != nil {
		return err
	}
	pools := knownPools(run)

	if fromFile, _ := cmd.Flags().GetString("from-file"); fromFile != "" {
		specs, err := manifest.LoadJobs(fromFile)
		if err != nil {
			return err
		}
		for _, spec := range specs {
			added, err := registry.AddJob(dir, spec, pools)
			if err != nil {
				return err
			}
			logger.Debug("job added", "job_id", added.JobID, "pipeline", added.PipelineName)
		}
		fmt.Printf("Added %d jobs from %s\n", len(specs), fromFile)
		return nil
	}

	spec, err := jobSpecFromFlags(cmd)
	if err != nil {
		return err
	}

	added, err := registry.AddJob(dir, spec, pools)
	if err != nil {
		return err
	}
	logger.Debug("job added",
		"job_id", added.JobID,
		"pipeline", added.PipelineName,
		"ci_stage", added.CIStage)
	return nil
}

func knownPools(run *litani.Run) map[string]litani.Pool {
	pools := make(map[string]litani.Pool, len(run.Pools))
	for name, depth := range run.Pools {
		pools[name] = litani.Pool{Name: name, Depth: depth}
	}
	return pools
}

// loadRunAndJobs is the shared preamble of run-build and graph: follow
// the cache pointer, load the run document, and load every registered
// job spec.
func loadRunAndJobs() (*rundir.Dir, *litani.Run, []*litani.JobSpec, error) {
	dir, err := loadRunDir()
	if err != nil {
		return nil, nil, nil, err
	}
	run, err := cachestore.Load(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	specs, err := registry.LoadAll(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	return dir, run, specs, nil
}
