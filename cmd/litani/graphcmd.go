package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/caevv/litani/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dependency graph in Graphviz DOT format",
	Long: `Print the current run's dependency graph as Graphviz DOT on stdout.

Example:
  litani graph | dot -Tsvg -o build-graph.svg
  litani graph -p compile`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringSliceP("pipelines", "p", nil, "Restrict the graph to these pipelines (and their ancestors)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	pipelines, _ := cmd.Flags().GetStringSlice("pipelines")

	_, _, specs, err := loadRunAndJobs()
	if err != nil {
		return err
	}

	g, err := graph.Build(specs)
	if err != nil {
		return err
	}

	var selected map[string]bool
	if len(pipelines) > 0 {
		selected, err = g.Select(pipelines, "")
		if err != nil {
			return err
		}
	}

	return g.WriteDOT(os.Stdout, selected)
}
