// Package dispatcher implements the ready-queue scheduling loop that
// topologically walks the assembled DAG, honoring a global parallelism
// cap and per-pool depths, recording a parallelism timeline, and
// propagating failed-subtree skips. Admission control uses
// golang.org/x/sync/semaphore.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/caevv/litani/internal/graph"
	"github.com/caevv/litani/internal/litani"
)

// JobRunner is the interface the job executor satisfies; kept as an
// interface here (rather than a concrete dependency) so the dispatcher is
// unit-testable with a fake.
type JobRunner interface {
	Run(ctx context.Context, job *litani.JobSpec) (*litani.JobStatus, error)
}

// Options configures a dispatch run.
type Options struct {
	// Parallel is the global concurrency cap. 0 means unbounded.
	Parallel int
	// DryRun short-circuits every job to outcome=success without
	// invoking the JobRunner.
	DryRun bool
}

// Result is the terminal state of every job in the dispatched set plus
// the sealed parallelism timeline.
type Result struct {
	States    map[string]litani.JobState
	Statuses  map[string]*litani.JobStatus
	Timeline  litani.Timeline
	AnyFailed bool
}

// Dispatcher schedules and runs a set of jobs from a Graph honoring pool
// and global concurrency limits.
type Dispatcher struct {
	graph  *graph.Graph
	pools  map[string]litani.Pool
	runner JobRunner
	logger *slog.Logger
	opts   Options

	globalSem *semaphore.Weighted
	poolSems  map[string]*semaphore.Weighted

	mu       sync.Mutex
	states   map[string]litani.JobState
	statuses map[string]*litani.JobStatus
	timeline litani.Timeline
	running  int
	start    time.Time
}

// New builds a Dispatcher. The subset of jobs to execute is chosen per
// call by Run's selected argument.
func New(g *graph.Graph, pools map[string]litani.Pool, runner JobRunner, logger *slog.Logger, opts Options) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	parallel := opts.Parallel
	if parallel == 0 {
		parallel = runtime.NumCPU()
	}

	d := &Dispatcher{
		graph:    g,
		pools:    pools,
		runner:   runner,
		logger:   logger,
		opts:     opts,
		poolSems: make(map[string]*semaphore.Weighted),
		states:   make(map[string]litani.JobState),
		statuses: make(map[string]*litani.JobStatus),
	}
	// Parallel==0 means "unbounded" per spec; approximate with a very
	// large weight rather than skipping admission control entirely, so
	// the same code path (and its timeline bookkeeping) is exercised
	// whether or not a cap was requested.
	weight := int64(parallel)
	if opts.Parallel == 0 {
		weight = 1 << 30
	}
	d.globalSem = semaphore.NewWeighted(weight)
	for name, pool := range pools {
		d.poolSems[name] = semaphore.NewWeighted(int64(pool.Depth))
	}
	return d
}

// Run executes every job_id in selected (the result of Graph.Select), or
// the whole graph if selected is nil, blocking until all reachable terminal states are reached or ctx is
// cancelled.
func (d *Dispatcher) Run(ctx context.Context, selected map[string]bool) (*Result, error) {
	d.start = time.Now()

	active := make(map[string]*litani.JobSpec)
	for id, job := range d.graph.Jobs {
		if selected == nil || selected[id] {
			active[id] = job
			d.states[id] = litani.JobPending
		}
	}

	remaining := make(map[string]int, len(active))
	for id := range active {
		count := 0
		for _, dep := range d.graph.Dependencies(id) {
			if _, ok := active[dep]; ok {
				count++
			}
		}
		remaining[id] = count
	}

	type outcome struct {
		jobID  string
		status *litani.JobStatus
	}
	results := make(chan outcome, len(active))

	pending := len(active)
	if pending == 0 {
		return &Result{States: d.states, Statuses: d.statuses, Timeline: d.timeline}, nil
	}

	launched := make(map[string]bool)
	var launchReady func()
	launchReady = func() {
		ready := d.popReady(active, remaining, launched)
		for _, id := range ready {
			launched[id] = true
			d.setState(id, litani.JobReady)
			job := active[id]
			go func() {
				status := d.runOne(ctx, job)
				results <- outcome{jobID: id, status: status}
			}()
		}
	}
	launchReady()

	for pending > 0 {
		select {
		case <-ctx.Done():
			return &Result{States: d.states, Statuses: d.statuses, Timeline: d.timeline, AnyFailed: true}, ctx.Err()
		case res := <-results:
			pending--
			d.statuses[res.jobID] = res.status
			switch {
			case res.status.Outcome == litani.OutcomeFail:
				d.setState(res.jobID, litani.JobFailed)
				skipped := d.propagateSkip(res.jobID, active, launched)
				pending -= len(skipped)
			case res.status.Outcome == litani.OutcomeFailIgnored:
				d.setState(res.jobID, litani.JobFailedIgnored)
			default:
				d.setState(res.jobID, litani.JobSucceeded)
			}

			for _, dependent := range d.graph.Dependents(res.jobID) {
				if _, ok := active[dependent]; !ok || launched[dependent] {
					continue
				}
				if remaining[dependent] > 0 {
					remaining[dependent]--
				}
			}
			launchReady()
		}
	}

	d.timeline.Seal()
	anyFailed := false
	for _, st := range d.states {
		if st == litani.JobFailed {
			anyFailed = true
		}
	}
	return &Result{States: d.states, Statuses: d.statuses, Timeline: d.timeline, AnyFailed: anyFailed}, nil
}

// popReady returns every not-yet-launched job in active whose remaining
// dependency count is zero, in insertion order then job_id order.
func (d *Dispatcher) popReady(active map[string]*litani.JobSpec, remaining map[string]int, launched map[string]bool) []string {
	var ready []string
	d.mu.Lock()
	for id := range active {
		if launched[id] {
			continue
		}
		if d.states[id] == litani.JobSkipped {
			continue
		}
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}
	d.mu.Unlock()
	order := d.graph.InsertionOrder()
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.Slice(ready, func(i, j int) bool {
		ri, oki := rank[ready[i]]
		rj, okj := rank[ready[j]]
		if oki && okj && ri != rj {
			return ri < rj
		}
		return ready[i] < ready[j]
	})
	return ready
}

// propagateSkip marks every not-yet-launched transitive dependent of
// failedID as skipped: their inputs will never appear. Returns the set
// of job_ids it skipped so the caller can adjust its pending counter.
func (d *Dispatcher) propagateSkip(failedID string, active map[string]*litani.JobSpec, launched map[string]bool) []string {
	var skipped []string
	queue := []string{failedID}
	seen := map[string]bool{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dependent := range d.graph.Dependents(id) {
			if _, ok := active[dependent]; !ok {
				continue
			}
			if launched[dependent] || seen[dependent] {
				continue
			}
			seen[dependent] = true
			launched[dependent] = true
			d.setState(dependent, litani.JobSkipped)
			skipped = append(skipped, dependent)
			queue = append(queue, dependent)
		}
	}
	return skipped
}

// runOne acquires the job's global and (if any) pool slot, runs it
// (or synthesizes a dry-run success), and releases the slots.
func (d *Dispatcher) runOne(ctx context.Context, job *litani.JobSpec) *litani.JobStatus {
	var poolSem *semaphore.Weighted
	if job.Pool != "" {
		poolSem = d.poolSems[job.Pool]
	}

	if d.globalSem != nil {
		if err := d.globalSem.Acquire(ctx, 1); err != nil {
			return &litani.JobStatus{WrapperArguments: *job, Complete: true, Outcome: litani.OutcomeFail, WrapperReturnCode: 1}
		}
		defer d.globalSem.Release(1)
	}
	if poolSem != nil {
		if err := poolSem.Acquire(ctx, 1); err != nil {
			return &litani.JobStatus{WrapperArguments: *job, Complete: true, Outcome: litani.OutcomeFail, WrapperReturnCode: 1}
		}
		defer poolSem.Release(1)
	}

	d.setState(job.JobID, litani.JobRunning)
	d.recordDelta(+1)
	defer d.recordDelta(-1)

	if d.opts.DryRun {
		now := time.Now().UTC()
		rc := 0
		return &litani.JobStatus{
			WrapperArguments:  *job,
			StartTime:         now,
			EndTime:           now,
			Complete:          true,
			Outcome:           litani.OutcomeSuccess,
			WrapperReturnCode: 0,
			CommandReturnCode: &rc,
		}
	}

	status, err := d.runner.Run(ctx, job)
	if err != nil {
		d.logger.Error("job executor failed", "job_id", job.JobID, "error", err)
		if status == nil {
			status = &litani.JobStatus{WrapperArguments: *job, Complete: true, Outcome: litani.OutcomeFail, WrapperReturnCode: 1}
		}
	}
	return status
}

func (d *Dispatcher) setState(jobID string, state litani.JobState) {
	d.mu.Lock()
	d.states[jobID] = state
	d.mu.Unlock()
}

// recordDelta appends a timeline sample reflecting a +1/-1 change in the
// number of concurrently running jobs.
func (d *Dispatcher) recordDelta(delta int) {
	d.mu.Lock()
	d.running += delta
	d.timeline.Append(time.Since(d.start).Seconds(), d.running)
	d.mu.Unlock()
}

// ValidatePools checks that every pool named by a job exists, naming
// the job and the offending pool in the diagnostic.
func ValidatePools(jobs []*litani.JobSpec, pools map[string]litani.Pool) error {
	for _, job := range jobs {
		if job.Pool == "" {
			continue
		}
		if _, ok := pools[job.Pool]; !ok {
			desc := job.Description
			if desc == "" {
				desc = job.JobID
			}
			return fmt.Errorf("job %q references unknown pool %q", desc, job.Pool)
		}
	}
	return nil
}
