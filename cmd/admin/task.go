package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
)

var (
	taskFlags struct {
		taskType   string
		round      int
		entry      int
		tournament int
	}

	taskCmd = &cobra.Command{
		Use:   "task",
		Short: "Manage sync tasks",
	}

	taskEnqueueCmd = &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a sync task, deduplicated against scheduled work",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskType := task.Type(taskFlags.taskType)
			if !taskType.Valid() {
				return xerrors.Errorf("invalid task type: %v (known types: %v)", taskFlags.taskType, task.AllTypes())
			}

			var deps struct {
				fx.In
				Queue queue.Queue
			}
			app, err := startApp(
				queue.Module,
				fx.Populate(&deps),
			)
			if err != nil {
				return err
			}
			defer app.Close()

			handle, err := deps.Queue.Enqueue(cmd.Context(), queue.Request{
				Type: taskType,
				Subject: task.Subject{
					Round:      fpl.RoundID(taskFlags.round),
					Entry:      fpl.EntryID(taskFlags.entry),
					Tournament: fpl.TournamentID(taskFlags.tournament),
				},
				Source: task.SourceManual,
			})
			if err != nil {
				return xerrors.Errorf("failed to enqueue task: %w", err)
			}

			if handle.Deduplicated {
				fmt.Printf("already queued: %v\n", handle.DedupKey)
				return nil
			}
			fmt.Printf("enqueued: %v\n", handle.DedupKey)
			return nil
		},
	}

	taskCountsCmd = &cobra.Command{
		Use:   "counts",
		Short: "Show the number of tasks per lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var deps struct {
				fx.In
				Queue queue.Queue
			}
			app, err := startApp(
				queue.Module,
				fx.Populate(&deps),
			)
			if err != nil {
				return err
			}
			defer app.Close()

			counts, err := deps.Queue.Counts(cmd.Context())
			if err != nil {
				return xerrors.Errorf("failed to query counts: %w", err)
			}

			out, err := json.MarshalIndent(counts, "", "  ")
			if err != nil {
				return xerrors.Errorf("failed to marshal counts: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	taskEnqueueCmd.Flags().StringVar(&taskFlags.taskType, "type", "", "task type, e.g. round-results")
	taskEnqueueCmd.Flags().IntVar(&taskFlags.round, "round", 0, "round id the task operates on")
	taskEnqueueCmd.Flags().IntVar(&taskFlags.entry, "entry", 0, "entry id for entry-scoped tasks")
	taskEnqueueCmd.Flags().IntVar(&taskFlags.tournament, "tournament", 0, "tournament id for standings tasks")
	_ = taskEnqueueCmd.MarkFlagRequired("type")

	taskCmd.AddCommand(taskEnqueueCmd)
	taskCmd.AddCommand(taskCountsCmd)
	rootCmd.AddCommand(taskCmd)
}
