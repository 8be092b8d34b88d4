package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/caevv/litani/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs from the history index",
	Long: `List finalized runs recorded in the cross-run history index, newest
first.

Examples:
  litani history
  litani history --project my-proj --limit 5
  litani history prune --older-than 720h`,
	RunE: runHistoryList,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Expire and delete report directories of old runs",
	Long: `Mark report directories of runs older than the cutoff as expired, then
delete each one that is both expired and not currently locked by a
reader. Build artifacts under the run directory itself are never
touched.`,
	RunE: runHistoryPrune,
}

func init() {
	historyCmd.PersistentFlags().String("db", "", "Path to the history index (default: derived from the current run)")
	historyCmd.Flags().String("project", "", "Only list runs for this project")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = unbounded)")

	historyPruneCmd.Flags().String("older-than", "", "Cutoff age, e.g. 720h (required)")
	historyPruneCmd.MarkFlagRequired("older-than")

	historyCmd.AddCommand(historyPruneCmd)
}

func historyIndexPath(cmd *cobra.Command) (string, error) {
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		return db, nil
	}
	dir, err := loadRunDir()
	if err != nil {
		return "", fmt.Errorf("no history index given and no current run: %w", err)
	}
	return historyPathFor(dir), nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetString("project")
	limit, _ := cmd.Flags().GetInt("limit")

	path, err := historyIndexPath(cmd)
	if err != nil {
		return err
	}
	idx, err := history.Open(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	records, err := idx.List(project, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tPROJECT\tSTARTED\tDURATION\tSTATUS")
	for _, rec := range records {
		duration := "-"
		if !rec.EndTime.IsZero() {
			duration = rec.EndTime.Sub(rec.StartTime).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.RunID,
			rec.Project,
			rec.StartTime.Format(time.RFC3339),
			duration,
			rec.Status,
		)
	}
	w.Flush()
	fmt.Printf("\nTotal runs: %d\n", len(records))

	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetString("older-than")
	age, err := time.ParseDuration(olderThan)
	if err != nil {
		return fmt.Errorf("invalid --older-than %q: %w", olderThan, err)
	}

	path, err := historyIndexPath(cmd)
	if err != nil {
		return err
	}
	idx, err := history.Open(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	pruned, err := idx.Prune(time.Now().Add(-age), 5*time.Second)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d report directories\n", len(pruned))
	return nil
}
