package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradereach/outreach-cli/internal/model"
	"github.com/tradereach/outreach-cli/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the discovery task queue",
}

var queueBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate the full trade x city x session task matrix",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tables, err := queue.LoadTables(cfg.Queue.TablesPath)
		if err != nil {
			return eris.Wrap(err, "load trade tables")
		}

		tasks := queue.BuildQueue(tables, time.Now())
		inserted, err := st.InsertTasks(ctx, tasks)
		if err != nil {
			return eris.Wrap(err, "insert tasks")
		}

		zap.L().Info("queue built",
			zap.Int("generated", len(tasks)),
			zap.Int("inserted", inserted),
		)
		fmt.Printf("Generated %d tasks, inserted %d (duplicates skipped).\n", len(tasks), inserted)
		return nil
	},
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task counts by status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.TaskCounts(ctx)
		if err != nil {
			return eris.Wrap(err, "task counts")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATUS\tCOUNT")
		total := 0
		for _, status := range []model.TaskStatus{
			model.TaskPending, model.TaskInProgress, model.TaskCompleted,
			model.TaskFailed, model.TaskStale,
		} {
			fmt.Fprintf(w, "%s\t%d\n", status, counts[status])
			total += counts[status]
		}
		fmt.Fprintf(w, "total\t%d\n", total)
		return w.Flush()
	},
}

func init() {
	queueCmd.AddCommand(queueBuildCmd)
	queueCmd.AddCommand(queueStatusCmd)
	rootCmd.AddCommand(queueCmd)
}
