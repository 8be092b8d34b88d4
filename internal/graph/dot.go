package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/caevv/litani/internal/litani"
)

// WriteDOT prints the dependency DAG in Graphviz DOT format: one node
// per job (labelled by description, falling back to the command), one
// edge per dependency. selected, if non-nil, restricts the output to
// that subset of job_ids (the result of Select).
func (g *Graph) WriteDOT(w io.Writer, selected map[string]bool) error {
	if _, err := fmt.Fprintln(w, "digraph litani {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  rankdir=LR;")

	ids := g.InsertionOrder()
	for _, id := range ids {
		if selected != nil && !selected[id] {
			continue
		}
		job := g.Jobs[id]
		fmt.Fprintf(w, "  %q [label=%q];\n", id, dotLabel(job))
	}

	for _, id := range ids {
		if selected != nil && !selected[id] {
			continue
		}
		deps := g.Dependencies(id)
		sort.Strings(deps)
		for _, dep := range deps {
			if selected != nil && !selected[dep] {
				continue
			}
			fmt.Fprintf(w, "  %q -> %q;\n", dep, id)
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

func dotLabel(job *litani.JobSpec) string {
	label := job.Description
	if label == "" {
		label = job.Command.String()
	}
	return strings.ReplaceAll(label, "\n", " ")
}
