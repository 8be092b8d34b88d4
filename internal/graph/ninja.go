package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/rundir"
)

// WriteNinja serializes the assembled build specification to
// <run>/litani.ninja: pool declarations, one rule and one build edge per
// job (with the status file folded into the outputs), and the phony
// aggregator edges. The file is the persisted record of what the
// dispatcher executes; it is written atomically so concurrent readers
// never see a truncated build file.
//
// Phony edges never carry a pool: they are scheduling-free filter
// targets, not work.
func WriteNinja(dir *rundir.Dir, specs []*litani.JobSpec, pools map[string]litani.Pool, program string) error {
	var b strings.Builder

	poolNames := make([]string, 0, len(pools))
	for name := range pools {
		poolNames = append(poolNames, name)
	}
	sort.Strings(poolNames)
	for _, name := range poolNames {
		fmt.Fprintf(&b, "pool %s\n  depth = %d\n\n", name, pools[name].Depth)
	}

	for _, spec := range specs {
		fmt.Fprintf(&b, "rule %s\n", ruleName(spec.JobID))
		fmt.Fprintf(&b, "  command = %s\n", ninjaEscape(shellJoin(spec.ToExecutorArgv(program))))
		desc := spec.Description
		if desc == "" {
			desc = spec.Command.String()
		}
		fmt.Fprintf(&b, "  description = %s\n", ninjaEscape(desc))
		if spec.Pool != "" {
			fmt.Fprintf(&b, "  pool = %s\n", spec.Pool)
		}
		b.WriteString("\n")

		outputs := append([]string{}, spec.Outputs...)
		outputs = append(outputs, spec.StatusFile)
		fmt.Fprintf(&b, "build %s: %s", pathList(outputs), ruleName(spec.JobID))
		if len(spec.Inputs) > 0 {
			fmt.Fprintf(&b, " %s", pathList(spec.Inputs))
		}
		b.WriteString("\n\n")
	}

	phonyTargets := make([]string, 0)
	outputsByJob := make(map[string][]string, len(specs))
	for _, spec := range specs {
		outs := append([]string{}, spec.Outputs...)
		outs = append(outs, spec.StatusFile)
		outputsByJob[spec.JobID] = outs
	}
	byPipeline := make(map[string][]string)
	byStage := make(map[string][]string)
	for _, spec := range specs {
		byPipeline[spec.PipelineName] = append(byPipeline[spec.PipelineName], outputsByJob[spec.JobID]...)
		byStage[string(spec.CIStage)] = append(byStage[string(spec.CIStage)], outputsByJob[spec.JobID]...)
	}
	phonies := make(map[string][]string, len(byPipeline)+len(byStage))
	for v, outs := range byPipeline {
		phonies[phonyPipelinePrefix+v] = outs
	}
	for v, outs := range byStage {
		phonies[phonyStagePrefix+v] = outs
	}
	for target := range phonies {
		phonyTargets = append(phonyTargets, target)
	}
	sort.Strings(phonyTargets)
	for _, target := range phonyTargets {
		fmt.Fprintf(&b, "build %s: phony %s\n", ninjaEscapePath(target), pathList(phonies[target]))
	}

	return rundir.AtomicWrite(dir.NinjaPath(), []byte(b.String()), 0o644)
}

// ruleName derives a ninja-safe rule identifier from a job_id.
func ruleName(jobID string) string {
	return "job_" + strings.ReplaceAll(jobID, "-", "_")
}

func pathList(paths []string) string {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = ninjaEscapePath(p)
	}
	return strings.Join(escaped, " ")
}

// ninjaEscapePath escapes the characters ninja treats specially in a
// path position: '$', ' ', and ':'.
func ninjaEscapePath(p string) string {
	p = strings.ReplaceAll(p, "$", "$$")
	p = strings.ReplaceAll(p, " ", "$ ")
	p = strings.ReplaceAll(p, ":", "$:")
	return p
}

func ninjaEscape(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'\\$&|;<>()*?#~") {
			quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}
