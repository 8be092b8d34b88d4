// Package graph assembles the job registry's flat job list into a
// dependency DAG: one rule+build-edge per job (with the status file
// folded into its outputs so every job has at least one output), plus
// phony aggregator edges per pipeline_name and ci_stage value for
// --pipelines/--ci-stage filtering. Dependency edges are computed from
// literal input/output path matches.
package graph

import (
	"fmt"
	"sort"

	"github.com/caevv/litani/internal/litani"
)

// phonyPipelinePrefix and phonyStagePrefix namespace synthetic
// aggregator targets away from any real
// path a job might declare as an input or output.
const (
	phonyPipelinePrefix = "__litani_pipeline_name_"
	phonyStagePrefix    = "__litani_ci_stage_"
)

// Graph is the assembled DAG: jobs keyed by job_id, plus the dependency
// edges derived from literal input/output path matches and the phony
// aggregator targets used for filtering.
type Graph struct {
	Jobs map[string]*litani.JobSpec

	// insertion is the order jobs were added, used to break ties among
	// simultaneously-ready jobs deterministically.
	insertion []string

	// deps[j] is the set of job_ids that must complete before j may run.
	deps map[string]map[string]bool
	// dependents[j] is the set of job_ids that depend on j.
	dependents map[string]map[string]bool

	// phonies maps a synthetic target name to the job_ids directly in
	// that pipeline/stage group. Phonies never carry a pool and never
	// themselves occupy a scheduling slot.
	phonies map[string][]string
}

// Build assembles a Graph from the flat job list loaded from the Job
// Registry. Returns an error if the declared inputs/outputs create a
// cycle.
func Build(specs []*litani.JobSpec) (*Graph, error) {
	g := &Graph{
		Jobs:       make(map[string]*litani.JobSpec, len(specs)),
		deps:       make(map[string]map[string]bool),
		dependents: make(map[string]map[string]bool),
		phonies:    make(map[string][]string),
	}

	producers := make(map[string][]string) // output path -> producing job_ids

	for _, spec := range specs {
		g.Jobs[spec.JobID] = spec
		g.insertion = append(g.insertion, spec.JobID)
		g.deps[spec.JobID] = make(map[string]bool)
		g.dependents[spec.JobID] = make(map[string]bool)

		for _, out := range spec.Outputs {
			producers[out] = append(producers[out], spec.JobID)
		}
		// Folding the status file into outputs guarantees every job has
		// at least one output and therefore participates in the DAG.
		if spec.StatusFile != "" {
			producers[spec.StatusFile] = append(producers[spec.StatusFile], spec.JobID)
		}
	}

	for _, spec := range specs {
		for _, in := range spec.Inputs {
			for _, producerID := range producers[in] {
				if producerID == spec.JobID {
					continue
				}
				g.deps[spec.JobID][producerID] = true
				g.dependents[producerID][spec.JobID] = true
			}
		}
	}

	if cyclePath := g.findCycle(); cyclePath != nil {
		return nil, fmt.Errorf("dependency cycle detected: %v", cyclePath)
	}

	g.buildPhonies(specs, producers)

	return g, nil
}

func (g *Graph) buildPhonies(specs []*litani.JobSpec, producers map[string][]string) {
	byPipeline := make(map[string][]string)
	byStage := make(map[litani.CIStage][]string)

	for _, spec := range specs {
		byPipeline[spec.PipelineName] = append(byPipeline[spec.PipelineName], spec.JobID)
		byStage[spec.CIStage] = append(byStage[spec.CIStage], spec.JobID)
	}

	for v, ids := range byPipeline {
		g.phonies[phonyPipelinePrefix+v] = ids
	}
	for v, ids := range byStage {
		g.phonies[phonyStagePrefix+string(v)] = ids
	}
}

// findCycle runs a DFS over the dependency edges and returns the first
// cycle found as a list of job_ids, or nil if the graph is acyclic.
func (g *Graph) findCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.Jobs))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = visiting
		stack = append(stack, id)

		deps := make([]string, 0, len(g.deps[id]))
		for dep := range g.deps[id] {
			deps = append(deps, dep)
		}
		sort.Strings(deps)

		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				return append(append([]string{}, stack...), dep)
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	ids := make([]string, 0, len(g.Jobs))
	for id := range g.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Dependencies returns the job_ids that must complete before jobID may run.
func (g *Graph) Dependencies(jobID string) []string {
	return setToSortedSlice(g.deps[jobID])
}

// Dependents returns the job_ids that depend on jobID.
func (g *Graph) Dependents(jobID string) []string {
	return setToSortedSlice(g.dependents[jobID])
}

// InsertionOrder returns all job_ids in the order they were added,
// the tie-break order for simultaneously-ready jobs.
func (g *Graph) InsertionOrder() []string {
	out := make([]string, len(g.insertion))
	copy(out, g.insertion)
	return out
}

// Select resolves --pipelines/--ci-stage filtering (mutually exclusive,
// enforced by the caller) into the set of job_ids to execute: the jobs
// directly tagged with the selected pipeline(s)/stage, plus every
// transitive ancestor of those jobs.
func (g *Graph) Select(pipelines []string, ciStage string) (map[string]bool, error) {
	if len(pipelines) == 0 && ciStage == "" {
		all := make(map[string]bool, len(g.Jobs))
		for id := range g.Jobs {
			all[id] = true
		}
		return all, nil
	}

	var roots []string
	if len(pipelines) > 0 {
		for _, p := range pipelines {
			target := phonyPipelinePrefix + p
			ids, ok := g.phonies[target]
			if !ok {
				return nil, fmt.Errorf("no jobs found for pipeline %q", p)
			}
			roots = append(roots, ids...)
		}
	} else {
		target := phonyStagePrefix + ciStage
		ids, ok := g.phonies[target]
		if !ok {
			return nil, fmt.Errorf("no jobs found for ci-stage %q", ciStage)
		}
		roots = append(roots, ids...)
	}

	selected := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if selected[id] {
			return
		}
		selected[id] = true
		for dep := range g.deps[id] {
			visit(dep)
		}
	}
	for _, root := range roots {
		visit(root)
	}
	return selected, nil
}

func setToSortedSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
