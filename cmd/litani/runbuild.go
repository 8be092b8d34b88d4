package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/caevv/litani/internal/dispatcher"
	"github.com/caevv/litani/internal/executor"
	"github.com/caevv/litani/internal/graph"
	"github.com/caevv/litani/internal/history"
	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/postprocess"
	"github.com/caevv/litani/internal/render"
	"github.com/caevv/litani/internal/rundir"
)

var runBuildCmd = &cobra.Command{
	Use:   "run-build",
	Short: "Execute the dependency graph of the current run",
	Long: `Assemble the registered jobs into a dependency graph and execute it,
honoring the global parallelism cap and per-pool depths. A report
renderer runs concurrently, refreshing run.json while jobs execute.

Examples:
  litani run-build
  litani run-build -j 4
  litani run-build --pipelines compile,fuzz
  litani run-build --ci-stage test --fail-on-pipeline-failure`,
	RunE: runRunBuild,
}

func init() {
	runBuildCmd.Flags().BoolP("dry-run", "n", false, "Record every job as succeeded without running anything")
	runBuildCmd.Flags().IntP("parallel", "j", 0, "Global parallelism cap (0 = unbounded, default: CPU count)")
	runBuildCmd.Flags().StringP("out-file", "o", "", "Also write the final run.json to this file")
	runBuildCmd.Flags().Bool("fail-on-pipeline-failure", false, "Exit nonzero if any pipeline is not successful")
	runBuildCmd.Flags().StringSliceP("pipelines", "p", nil, "Only run jobs in these pipelines (and their ancestors)")
	runBuildCmd.Flags().StringP("ci-stage", "s", "", "Only run jobs in this CI stage (and their ancestors)")
}

func runRunBuild(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	parallel, _ := cmd.Flags().GetInt("parallel")
	if !cmd.Flags().Changed("parallel") {
		parallel = runtime.NumCPU()
	}
	outFile, _ := cmd.Flags().GetString("out-file")
	failOnPipelineFailure, _ := cmd.Flags().GetBool("fail-on-pipeline-failure")
	pipelines, _ := cmd.Flags().GetStringSlice("pipelines")
	ciStage, _ := cmd.Flags().GetString("ci-stage")

	if len(pipelines) > 0 && ciStage != "" {
		return fmt.Errorf("--pipelines and --ci-stage are mutually exclusive")
	}
	if parallel < 0 {
		return fmt.Errorf("--parallel must be non-negative, got %d", parallel)
	}

	dir, run, specs, err := loadRunAndJobs()
	if err != nil {
		return err
	}
	if run.EndTime != nil {
		return fmt.Errorf("run %s is already finalized; start a new run with `litani init`", run.RunID)
	}

	pools := knownPools(run)
	if err := dispatcher.ValidatePools(specs, pools); err != nil {
		return err
	}

	g, err := graph.Build(specs)
	if err != nil {
		return err
	}
	if err := graph.WriteNinja(dir, specs, pools, os.Args[0]); err != nil {
		return err
	}

	selected, err := g.Select(pipelines, ciStage)
	if err != nil {
		return err
	}

	logger.Info("starting build",
		"run_id", run.RunID,
		"jobs", len(selected),
		"parallel", parallel,
		"dry_run", dryRun)

	ctx := setupSignalHandler()

	renderCtx, stopRender := context.WithCancel(context.Background())
	renderer := render.New(dir, logger, reportDirFor(dir, run.RunID))
	var background errgroup.Group
	background.Go(func() error {
		renderer.Run(renderCtx)
		return nil
	})

	runner := executor.New(dir, logger)
	d := dispatcher.New(g, pools, runner, logger, dispatcher.Options{
		Parallel: parallel,
		DryRun:   dryRun,
	})
	result, runErr := d.Run(ctx, selected)

	stopRender()
	background.Wait()

	if runErr != nil {
		return fmt.Errorf("build interrupted: %w", runErr)
	}

	if dryRun {
		if err := writeDryRunStatuses(result.Statuses); err != nil {
			return err
		}
	}

	finalRun, outcomes, err := postprocess.Finalize(
		dir, run, specs, result.States, result.Statuses, result.Timeline)
	if err != nil {
		return err
	}

	if outFile != "" {
		if err := copyRunJSON(dir, outFile); err != nil {
			return err
		}
	}

	recordHistory(dir, finalRun)
	printBuildSummary(finalRun, outcomes)

	if failOnPipelineFailure && finalRun.Status != litani.RunSuccess {
		return fmt.Errorf("one or more pipelines failed")
	}
	return nil
}

// writeDryRunStatuses persists the synthesized dry-run statuses so the
// status-file invariant (one complete file per recorded job) holds even
// when nothing was executed.
func writeDryRunStatuses(statuses map[string]*litani.JobStatus) error {
	for _, status := range statuses {
		path := status.WrapperArguments.StatusFile
		if path == "" {
			continue
		}
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal dry-run status: %w", err)
		}
		if err := rundir.AtomicWrite(path, data, 0o644); err != nil {
			return fmt.Errorf("write dry-run status %s: %w", path, err)
		}
	}
	return nil
}

func copyRunJSON(dir *rundir.Dir, outFile string) error {
	data, err := os.ReadFile(dir.RunJSONPath())
	if err != nil {
		return fmt.Errorf("read final run.json: %w", err)
	}
	if err := rundir.AtomicWrite(outFile, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outFile, err)
	}
	return nil
}

// recordHistory indexes the finalized run in the cross-run history
// database. History failures are soft: the build already finished and
// its artifacts are on disk.
func recordHistory(dir *rundir.Dir, run *litani.Run) {
	idx, err := history.Open(historyPathFor(dir))
	if err != nil {
		logger.Warn("could not open history index", "error", err)
		return
	}
	defer idx.Close()

	rec := history.Record{
		RunID:     run.RunID,
		Project:   run.Project,
		StartTime: run.StartTime,
		Status:    run.Status,
		ReportDir: reportDirFor(dir, run.RunID),
	}
	if run.EndTime != nil {
		rec.EndTime = *run.EndTime
	}
	if err := idx.Record(rec); err != nil {
		logger.Warn("could not record run in history index", "error", err)
	}
}

func printBuildSummary(run *litani.Run, outcomes []postprocess.PipelineOutcome) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PIPELINE\tSTATUS")
	for _, outcome := range outcomes {
		fmt.Fprintf(w, "%s\t%s\n", outcome.Pipeline, outcome.Status)
	}
	w.Flush()

	var duration time.Duration
	if run.EndTime != nil {
		duration = run.EndTime.Sub(run.StartTime).Round(time.Millisecond)
	}
	fmt.Printf("\nRun %s: %s (%s)\n", run.RunID, run.Status, duration)
}
